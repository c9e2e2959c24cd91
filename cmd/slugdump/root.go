package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Sternrassler/catalog-sitemap/pkg/catalog"
	"github.com/Sternrassler/catalog-sitemap/pkg/client"
	"github.com/Sternrassler/catalog-sitemap/pkg/config"
	"github.com/Sternrassler/catalog-sitemap/pkg/estimate"
	"github.com/Sternrassler/catalog-sitemap/pkg/logging"
	"github.com/Sternrassler/catalog-sitemap/pkg/pagination"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	formatJSONL = "jsonl"
	formatCSV   = "csv"
)

type options struct {
	configPath    string
	envFile       string
	format        string
	pageLimit     int
	maxIterations int
	logLevel      string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "slugdump",
		Short: "Dump every catalog slug record from the backend",
		Long: `Walks the backend listing endpoint page by page, the same way sitemap
chunks are filled, and prints one record per line to stdout.

A summary line (outcome, iterations, records) goes to stderr. A failed or
capped walk still prints the records fetched so far and exits non-zero.

Example:
  SITEMAP_BACKEND_URL=https://api.example.com/v1 slugdump --format csv > slugs.csv`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(cmd, opts)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", os.Getenv("SITEMAP_CONFIG"), "path to YAML config file")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.Flags().StringVar(&opts.format, "format", formatJSONL, "output format (jsonl, csv)")
	root.Flags().IntVar(&opts.pageLimit, "limit", 0, "records per listing request (default: config page_limit)")
	root.Flags().IntVar(&opts.maxIterations, "max-iterations", 0, "listing request cap (default: config max_iterations)")

	root.AddCommand(newCountCmd(opts))

	return root
}

func newCountCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the catalog size estimate",
		Long: `Asks the backend count endpoint once and prints the estimate. When the
backend is unreachable the configured fallback count is printed with the
captured error on stderr.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCount(cmd, opts)
		},
	}
}

// setup loads configuration and builds the backend client.
func setup(opts *options) (*config.Config, *client.Client, error) {
	if err := godotenv.Overload(opts.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("load env file: %w", err)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateBackend(); err != nil {
		return nil, nil, err
	}

	if err := logging.ValidateLevel(logging.LogLevel(opts.logLevel)); err != nil {
		return nil, nil, err
	}
	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.LogLevel(opts.logLevel)
	logCfg.Pretty = true
	logging.Setup(logCfg)

	clientCfg := client.DefaultConfig(cfg.Backend.URL, cfg.Backend.UserAgent)
	clientCfg.Timeout = cfg.Backend.Timeout

	c, err := client.New(clientCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create backend client: %w", err)
	}
	return cfg, c, nil
}

func runDump(cmd *cobra.Command, opts *options) error {
	if opts.format != formatJSONL && opts.format != formatCSV {
		return fmt.Errorf("unknown format %q (want %s or %s)", opts.format, formatJSONL, formatCSV)
	}

	cfg, c, err := setup(opts)
	if err != nil {
		return err
	}
	defer c.Close()

	limit := opts.pageLimit
	if limit <= 0 {
		limit = cfg.Sitemap.PageLimit
	}
	maxIterations := opts.maxIterations
	if maxIterations <= 0 {
		maxIterations = cfg.Sitemap.MaxIterations
	}

	paginator := pagination.NewPaginator(c, pagination.Config{Timeout: cfg.Backend.Timeout})
	result := paginator.Paginate(cmd.Context(), limit, maxIterations)

	if err := writeRecords(cmd.OutOrStdout(), opts.format, result.Records); err != nil {
		return fmt.Errorf("write records: %w", err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "outcome=%s iterations=%d records=%d\n",
		result.Outcome, result.Iterations, len(result.Records))

	switch result.Outcome {
	case pagination.OutcomeFailed:
		return fmt.Errorf("listing walk failed after %d records: %w", len(result.Records), result.Err)
	case pagination.OutcomeIterationCap:
		return fmt.Errorf("listing walk stopped at %d requests; raise --max-iterations", maxIterations)
	}
	return nil
}

func runCount(cmd *cobra.Command, opts *options) error {
	cfg, c, err := setup(opts)
	if err != nil {
		return err
	}
	defer c.Close()

	estimator := estimate.NewEstimator(c, estimate.Config{
		FallbackCount: cfg.Sitemap.FallbackCount,
		Timeout:       cfg.Backend.Timeout,
	})
	est := estimator.Estimate(cmd.Context())

	fmt.Fprintf(cmd.OutOrStdout(), "%d\n", est.Count)
	fmt.Fprintf(cmd.ErrOrStderr(), "kind=%s\n", est.Kind)

	if est.IsFallback() {
		return fmt.Errorf("count unavailable, printed fallback: %s", est.Err)
	}
	return nil
}

func writeRecords(w io.Writer, format string, records []catalog.SlugRecord) error {
	if format == formatCSV {
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"slug", "title", "consoleName", "genre"}); err != nil {
			return err
		}
		for _, r := range records {
			if err := cw.Write([]string{r.Slug, r.Title, r.ConsoleName, r.Genre}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	}

	enc := json.NewEncoder(w)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}
