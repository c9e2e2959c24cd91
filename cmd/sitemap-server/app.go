package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Sternrassler/catalog-sitemap/internal/httpapi"
	"github.com/Sternrassler/catalog-sitemap/pkg/cache"
	"github.com/Sternrassler/catalog-sitemap/pkg/client"
	"github.com/Sternrassler/catalog-sitemap/pkg/config"
	"github.com/Sternrassler/catalog-sitemap/pkg/estimate"
	"github.com/Sternrassler/catalog-sitemap/pkg/metrics"
	"github.com/Sternrassler/catalog-sitemap/pkg/pagination"
	"github.com/Sternrassler/catalog-sitemap/pkg/sitemap"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// app is the wired service.
type app struct {
	handler http.Handler
	server  *httpapi.Server
	backend *client.Client
	redis   *redis.Client
}

// newApp wires the backend client, generator and HTTP layer from cfg.
// Redis is optional; without it documents are rendered per request and the
// backend cooldown gate is disabled.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}

	if cfg.CacheEnabled() {
		opts, err := redis.ParseURL(cfg.Cache.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		a.redis = redis.NewClient(opts)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.redis.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
	}

	clientCfg := client.DefaultConfig(cfg.Backend.URL, cfg.Backend.UserAgent)
	clientCfg.Timeout = cfg.Backend.Timeout
	clientCfg.Redis = a.redis

	backend, err := client.New(clientCfg)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("create backend client: %w", err)
	}
	a.backend = backend

	estimator := estimate.NewEstimator(backend, estimate.Config{
		FallbackCount: cfg.Sitemap.FallbackCount,
		Timeout:       cfg.Backend.Timeout,
	})
	paginator := pagination.NewPaginator(backend, pagination.Config{
		Timeout: cfg.Backend.Timeout,
	})

	generator, err := sitemap.NewGenerator(estimator, paginator, sitemap.Config{
		BaseURL:        cfg.Sitemap.BaseURL,
		ChunkSize:      cfg.Sitemap.ChunkSize,
		PageLimit:      cfg.Sitemap.PageLimit,
		FallbackCount:  cfg.Sitemap.FallbackCount,
		ItemPathPrefix: cfg.Sitemap.ItemPathPrefix,
		StaticRoutes:   cfg.Sitemap.StaticRoutes,
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("create generator: %w", err)
	}

	checks := []httpapi.ReadyCheck{{
		Name: "backend",
		Check: func(ctx context.Context) error {
			_, err := backend.FetchCount(ctx)
			return err
		},
	}}

	var docCache httpapi.DocCache
	if a.redis != nil {
		docCache = cache.NewManager(a.redis)
		checks = append(checks, httpapi.ReadyCheck{
			Name: "redis",
			Check: func(ctx context.Context) error {
				return a.redis.Ping(ctx).Err()
			},
		})
	}

	httpCfg := httpapi.DefaultConfig(cfg.Sitemap.BaseURL)
	httpCfg.Policy = cache.Policy{
		MaxAge:               cfg.Cache.MaxAge,
		StaleWhileRevalidate: cfg.Cache.StaleWhileRevalidate,
	}

	server, err := httpapi.NewServer(generator, docCache, httpCfg, checks...)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("create http server: %w", err)
	}
	a.server = server

	router := server.Router()
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	a.handler = router

	return a, nil
}

// close waits for background refreshes and releases connections.
func (a *app) close() {
	if a.server != nil {
		a.server.Wait()
	}
	if a.backend != nil {
		_ = a.backend.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}
