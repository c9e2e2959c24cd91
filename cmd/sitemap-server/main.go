package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/catalog-sitemap/pkg/config"
	"github.com/Sternrassler/catalog-sitemap/pkg/logging"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

func main() {
	var configPath, envFile string

	flagSet := pflag.NewFlagSet("sitemap-server", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", os.Getenv("SITEMAP_CONFIG"), "path to YAML config file")
	flagSet.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatal().Err(err).Msg("Invalid flags")
	}

	if err := run(configPath, envFile); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

func run(configPath, envFile string) error {
	// .env values override the process environment when present
	envErr := godotenv.Overload(envFile)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.LogLevel(cfg.Log.Level)
	logCfg.Pretty = cfg.Log.Pretty
	logger := logging.Setup(logCfg)

	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		logger.Warn().Err(envErr).Str("path", envFile).Msg("Failed to load env file")
	}

	if cfg.Log.Level != string(logging.LevelDebug) {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      a.handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().
			Str("addr", srv.Addr).
			Str("backend", cfg.Backend.URL).
			Str("base_url", cfg.Sitemap.BaseURL).
			Bool("cache", cfg.CacheEnabled()).
			Msg("Starting sitemap server")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		logger.Info().Msg("Shutting down sitemap server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
