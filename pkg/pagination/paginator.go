package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/catalog-sitemap/pkg/catalog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for pagination runs.
var (
	paginationRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sitemap_pagination_runs_total",
		Help: "Pagination runs by terminal outcome",
	}, []string{"outcome"})

	paginationRecords = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sitemap_pagination_records",
		Help:    "Records accumulated per pagination run",
		Buckets: prometheus.ExponentialBuckets(10, 4, 8),
	})
)

// Outcome describes why a pagination run stopped.
type Outcome string

const (
	// OutcomeExhausted means a short or empty batch ended the listing.
	OutcomeExhausted Outcome = "exhausted"

	// OutcomeFailed means a request failed; records hold the partial result.
	OutcomeFailed Outcome = "failed"

	// OutcomeIterationCap means the safety bound stopped the run.
	OutcomeIterationCap Outcome = "iteration_cap"
)

// Result is the terminal state of a pagination run.
type Result struct {
	// Records in backend delivery order
	Records []catalog.SlugRecord

	Outcome Outcome

	// Iterations counts successful non-empty batches
	Iterations int

	// Err is set when Outcome is OutcomeFailed
	Err error
}

// Config holds paginator configuration.
type Config struct {
	// Timeout per batch request
	Timeout time.Duration
}

// DefaultConfig returns the default paginator configuration.
func DefaultConfig() Config {
	return Config{
		Timeout: 8 * time.Second,
	}
}

// Paginator fetches the catalog listing batch by batch.
type Paginator struct {
	source catalog.ListingSource
	config Config
	logger zerolog.Logger
}

// NewPaginator creates a new paginator.
func NewPaginator(source catalog.ListingSource, config Config) *Paginator {
	if config.Timeout <= 0 {
		config.Timeout = 8 * time.Second
	}

	return &Paginator{
		source: source,
		config: config,
		logger: log.With().Str("component", "paginator").Logger(),
	}
}

// Paginate walks the whole listing from the beginning. Hitting maxIterations
// means the listing was not exhausted and is logged as a warning.
func (p *Paginator) Paginate(ctx context.Context, limit, maxIterations int) Result {
	return p.paginate(ctx, 0, limit, maxIterations, true)
}

// PaginateFrom reads a window of the listing starting at skip, requesting
// limit records per batch and issuing at most maxIterations requests.
func (p *Paginator) PaginateFrom(ctx context.Context, skip, limit, maxIterations int) Result {
	return p.paginate(ctx, skip, limit, maxIterations, false)
}

func (p *Paginator) paginate(ctx context.Context, skip, limit, maxIterations int, fullWalk bool) Result {
	start := time.Now()

	result := p.run(ctx, skip, limit, maxIterations)

	paginationRunsTotal.WithLabelValues(string(result.Outcome)).Inc()
	paginationRecords.Observe(float64(len(result.Records)))

	var event *zerolog.Event
	switch result.Outcome {
	case OutcomeFailed:
		event = p.logger.Warn().Err(result.Err)
	case OutcomeIterationCap:
		// A window read ends at its cap; a full walk should not.
		if fullWalk {
			event = p.logger.Warn()
		} else {
			event = p.logger.Info()
		}
		event = event.Bool("capped", true).Int("max_iterations", maxIterations)
	default:
		event = p.logger.Info()
	}
	event.
		Int("skip", skip).
		Int("limit", limit).
		Int("iterations", result.Iterations).
		Int("records", len(result.Records)).
		Str("outcome", string(result.Outcome)).
		Dur("duration", time.Since(start)).
		Msg("Pagination finished")

	return result
}

func (p *Paginator) run(ctx context.Context, skip, limit, maxIterations int) Result {
	cursor := catalog.FetchCursor{Skip: skip, Limit: limit}
	if err := cursor.Validate(); err != nil {
		return Result{Outcome: OutcomeFailed, Err: err}
	}
	if maxIterations <= 0 {
		return Result{
			Outcome: OutcomeFailed,
			Err:     fmt.Errorf("max iterations must be > 0 (got %d)", maxIterations),
		}
	}

	var records []catalog.SlugRecord
	iterations := 0

	for iterations < maxIterations {
		batch, err := p.fetch(ctx, cursor)
		if err != nil {
			return Result{
				Records:    records,
				Outcome:    OutcomeFailed,
				Iterations: iterations,
				Err:        fmt.Errorf("fetch batch at skip %d: %w", cursor.Skip, err),
			}
		}

		if len(batch) == 0 {
			return Result{Records: records, Outcome: OutcomeExhausted, Iterations: iterations}
		}

		records = append(records, batch...)
		cursor = cursor.Next()
		iterations++

		p.logger.Debug().
			Int("batch", len(batch)).
			Int("next_skip", cursor.Skip).
			Int("iteration", iterations).
			Msg("Batch fetched")

		// A short batch is the end of data; never probe past it.
		if len(batch) < limit {
			return Result{Records: records, Outcome: OutcomeExhausted, Iterations: iterations}
		}
	}

	return Result{Records: records, Outcome: OutcomeIterationCap, Iterations: iterations}
}

// fetch issues one bounded request. A panicking source counts as a failure.
func (p *Paginator) fetch(ctx context.Context, cursor catalog.FetchCursor) (batch []catalog.SlugRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			batch, err = nil, fmt.Errorf("listing source panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	return p.source.FetchSlugs(ctx, cursor)
}
