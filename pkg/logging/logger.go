// Package logging configures the zerolog loggers of the sitemap service.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Service is attached to every line when set.
	Service string

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:   LevelInfo,
		Pretty:  false,
		Service: "catalog-sitemap",
		Output:  os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	var output io.Writer = cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	ctx := zerolog.New(output).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	logger := ctx.Logger()

	log.Logger = logger

	return logger
}

// ValidateLevel reports whether level is one of the supported levels.
func ValidateLevel(level LogLevel) error {
	switch strings.ToLower(string(level)) {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("unknown log level %q (want debug, info, warn or error)", level)
	}
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Listing batches (skip, batch size, iteration)
//   - Document cache operations (hit/miss, key, freshness)
//   - Index assembly details
//
// Info: Normal operation events
//   - Index and chunk documents generated
//   - Pagination summaries (including capped chunk fills)
//   - 304 Not Modified answers
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Count fallback used (estimate_kind=fallback)
//   - Listing request failed (partial chunk served)
//   - Backend cooldown activated or blocking
//   - Document cache errors (served uncached)
//
// Error: Error conditions requiring attention
//   - Document rendering failures (minimal index served)
//   - Server failures
//   - Configuration errors
//
// Context Fields:
//   - component: estimator, paginator, sitemap, httpapi, doc-cache, backend-client
//   - endpoint: backend endpoint path
//   - status_code: HTTP status code
//   - duration: Request or build duration
//   - error_class: Error classification (client, server, rate_limit, network, malformed, cooldown)
//   - estimate_kind: authoritative or fallback
//   - chunk: chunk index
//   - outcome: pagination outcome (exhausted, failed, iteration_cap)
//   - request_id: HTTP request id
