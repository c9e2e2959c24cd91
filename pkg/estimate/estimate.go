// Package estimate derives the catalog size used to plan sitemap chunks.
//
// The estimator never fails: when the backend count endpoint cannot be
// reached it substitutes a conservative fallback count and keeps the failure
// message so the sitemap index can surface it as a diagnostic entry.
package estimate

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/catalog-sitemap/pkg/catalog"
	"github.com/Sternrassler/catalog-sitemap/pkg/client"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var estimatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sitemap_estimate_total",
	Help: "Catalog size estimates by kind (authoritative, fallback)",
}, []string{"kind"})

// Kind tells whether an estimate came from the backend.
type Kind string

const (
	// Authoritative estimates were fetched from the count endpoint.
	Authoritative Kind = "authoritative"

	// Fallback estimates use the configured default after a failure.
	Fallback Kind = "fallback"
)

// Estimate is the catalog size used for chunk planning.
// Err is non-empty if and only if Kind is Fallback.
type Estimate struct {
	Count int
	Kind  Kind
	Err   string
}

// NewAuthoritative returns an estimate fetched from the backend.
func NewAuthoritative(count int) Estimate {
	if count < 0 {
		count = 0
	}
	return Estimate{Count: count, Kind: Authoritative}
}

// NewFallback returns the default estimate with the captured failure.
func NewFallback(count int, errMsg string) Estimate {
	if count < 0 {
		count = 0
	}
	if errMsg == "" {
		errMsg = "unknown error"
	}
	return Estimate{Count: count, Kind: Fallback, Err: errMsg}
}

// IsFallback reports whether the estimate substitutes a failed lookup.
func (e Estimate) IsFallback() bool {
	return e.Kind == Fallback
}

// Config holds estimator configuration.
type Config struct {
	// FallbackCount is used whenever the backend count cannot be obtained.
	// It should exceed the real catalog size.
	FallbackCount int

	// Timeout bounds the count request.
	Timeout time.Duration
}

// DefaultConfig returns the default estimator configuration.
func DefaultConfig() Config {
	return Config{
		FallbackCount: 10000,
		Timeout:       8 * time.Second,
	}
}

// Estimator asks the backend for the catalog size.
type Estimator struct {
	source catalog.CountSource
	config Config
	logger zerolog.Logger
}

// NewEstimator creates a new estimator.
func NewEstimator(source catalog.CountSource, cfg Config) *Estimator {
	if cfg.FallbackCount < 0 {
		cfg.FallbackCount = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}

	return &Estimator{
		source: source,
		config: cfg,
		logger: log.With().Str("component", "estimator").Logger(),
	}
}

// Estimate performs a single bounded count request. Failures are converted
// into a Fallback estimate; this method never returns an error or panics.
func (e *Estimator) Estimate(ctx context.Context) (est Estimate) {
	defer func() {
		if r := recover(); r != nil {
			est = e.fallback(fmt.Errorf("count source panic: %v", r))
		}
		estimatesTotal.WithLabelValues(string(est.Kind)).Inc()
	}()

	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	start := time.Now()
	count, err := e.source.FetchCount(ctx)
	if err != nil {
		return e.fallback(err)
	}
	if count < 0 {
		return e.fallback(fmt.Errorf("negative catalog count %d", count))
	}

	e.logger.Debug().
		Int("count", count).
		Dur("duration", time.Since(start)).
		Msg("Catalog count fetched")

	return NewAuthoritative(count)
}

func (e *Estimator) fallback(err error) Estimate {
	e.logger.Warn().
		Err(err).
		Str("error_class", string(client.ClassOf(err))).
		Int("fallback_count", e.config.FallbackCount).
		Msg("Catalog count unavailable - using fallback estimate")

	return NewFallback(e.config.FallbackCount, err.Error())
}
