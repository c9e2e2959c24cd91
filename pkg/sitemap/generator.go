package sitemap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/catalog-sitemap/pkg/estimate"
	"github.com/Sternrassler/catalog-sitemap/pkg/pagination"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for document generation.
var (
	indexBuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sitemap_index_builds_total",
		Help: "Sitemap index documents built by mode (authoritative, fallback, minimal)",
	}, []string{"mode"})

	indexChunks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sitemap_index_chunks",
		Help: "Number of chunk entries in the last built sitemap index",
	})

	chunkBuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sitemap_chunk_builds_total",
		Help: "Chunk urlset documents built by pagination outcome",
	}, []string{"outcome"})
)

// ErrChunkOutOfRange is returned for chunk indices whose listing offset
// cannot be represented.
var ErrChunkOutOfRange = errors.New("chunk index out of range")

// CountEstimator provides the catalog size estimate.
type CountEstimator interface {
	Estimate(ctx context.Context) estimate.Estimate
}

// ListingPaginator walks the catalog listing from an offset.
type ListingPaginator interface {
	PaginateFrom(ctx context.Context, skip, limit, maxIterations int) pagination.Result
}

// Config holds generator configuration.
type Config struct {
	// BaseURL is the public site URL documents point to
	BaseURL string

	// ChunkSize is the number of catalog entries per chunk document
	ChunkSize int

	// PageLimit is the listing batch size used when filling a chunk
	PageLimit int

	// FallbackCount is the estimate used when the backend count fails. Empty
	// chunks beyond its plan are never listed by an index.
	FallbackCount int

	// ItemPathPrefix is the path under which catalog entries live, e.g. "/games"
	ItemPathPrefix string

	// StaticRoutes are listed in the static-routes document
	StaticRoutes []string
}

// DefaultConfig returns the default generator configuration.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:        baseURL,
		ChunkSize:      500,
		PageLimit:      100,
		FallbackCount:  10000,
		ItemPathPrefix: "/games",
		StaticRoutes:   []string{"/", "/games", "/about"},
	}
}

// Document is a rendered sitemap document. Degraded marks documents built
// from a fallback estimate or a failed listing fetch. OutOfPlan marks an
// empty chunk that no index can reference.
type Document struct {
	Body      []byte
	Degraded  bool
	OutOfPlan bool
}

// Cacheable reports whether the document may be stored for later requests.
func (d Document) Cacheable() bool {
	return !d.Degraded && !d.OutOfPlan
}

// Generator composes the estimator, planner, builders and paginator into
// the documents served to crawlers. Every method returns a well-formed
// document; backend failures only degrade content.
type Generator struct {
	estimator CountEstimator
	paginator ListingPaginator
	index     *IndexBuilder
	urlset    *URLSetBuilder
	config    Config
	logger    zerolog.Logger
}

// NewGenerator creates a new generator.
func NewGenerator(estimator CountEstimator, paginator ListingPaginator, cfg Config) (*Generator, error) {
	if estimator == nil {
		return nil, fmt.Errorf("estimator is required")
	}
	if paginator == nil {
		return nil, fmt.Errorf("paginator is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be > 0 (got %d)", cfg.ChunkSize)
	}
	if cfg.PageLimit <= 0 {
		return nil, fmt.Errorf("page limit must be > 0 (got %d)", cfg.PageLimit)
	}
	if cfg.FallbackCount < 0 {
		return nil, fmt.Errorf("fallback count must be >= 0 (got %d)", cfg.FallbackCount)
	}

	return &Generator{
		estimator: estimator,
		paginator: paginator,
		index:     NewIndexBuilder(),
		urlset:    NewURLSetBuilder(),
		config:    cfg,
		logger:    log.With().Str("component", "sitemap").Logger(),
	}, nil
}

// SetClock overrides the build time source of both builders (for testing).
func (g *Generator) SetClock(now func() time.Time) {
	g.index.SetClock(now)
	g.urlset.SetClock(now)
}

// Index estimates the catalog size, plans the chunks and renders the index.
func (g *Generator) Index(ctx context.Context) []byte {
	return g.IndexDocument(ctx).Body
}

// IndexDocument is Index with the degradation flag.
func (g *Generator) IndexDocument(ctx context.Context) Document {
	start := time.Now()

	est := g.estimator.Estimate(ctx)
	chunks := Plan(est.Count, g.config.ChunkSize)
	doc := g.index.Build(est, chunks, g.config.BaseURL)

	indexBuildsTotal.WithLabelValues(string(est.Kind)).Inc()
	indexChunks.Set(float64(len(chunks)))

	g.logger.Info().
		Str("estimate_kind", string(est.Kind)).
		Int("estimate_count", est.Count).
		Int("chunks", len(chunks)).
		Dur("duration", time.Since(start)).
		Msg("Sitemap index generated")

	return Document{Body: doc, Degraded: est.IsFallback()}
}

// Minimal renders the degraded index without contacting the backend.
func (g *Generator) Minimal() []byte {
	indexBuildsTotal.WithLabelValues("minimal").Inc()
	return g.index.BuildMinimal(g.config.BaseURL)
}

// Static renders the static-routes urlset.
func (g *Generator) Static() []byte {
	return g.urlset.BuildStatic(g.config.StaticRoutes, g.config.BaseURL)
}

// Chunk renders the urlset of chunk index. The listing is read from
// index*ChunkSize with at most ceil(ChunkSize/PageLimit) requests; a failed
// or short listing yields a smaller (possibly empty) document. Indices above
// MaxChunkIndex fail with ErrChunkOutOfRange.
func (g *Generator) Chunk(ctx context.Context, index int) ([]byte, error) {
	doc, err := g.ChunkDocument(ctx, index)
	return doc.Body, err
}

// ChunkDocument is Chunk with the degradation flag.
func (g *Generator) ChunkDocument(ctx context.Context, index int) (Document, error) {
	if index < 0 || index > MaxChunkIndex(g.config.ChunkSize) {
		return Document{}, fmt.Errorf("%w: %d", ErrChunkOutOfRange, index)
	}

	chunk := Chunk{Index: index, Size: g.config.ChunkSize}

	limit := g.config.PageLimit
	if limit > chunk.Size {
		limit = chunk.Size
	}
	maxIterations := (chunk.Size + limit - 1) / limit

	result := g.paginator.PaginateFrom(ctx, chunk.Offset(), limit, maxIterations)

	records := result.Records
	if len(records) > chunk.Size {
		records = records[:chunk.Size]
	}

	chunkBuildsTotal.WithLabelValues(string(result.Outcome)).Inc()

	var event *zerolog.Event
	if result.Outcome == pagination.OutcomeFailed {
		event = g.logger.Warn().Err(result.Err)
	} else {
		event = g.logger.Info()
	}
	event.
		Int("chunk", index).
		Int("records", len(records)).
		Str("outcome", string(result.Outcome)).
		Msg("Sitemap chunk generated")

	return Document{
		Body:      g.urlset.BuildRecords(records, g.config.BaseURL, g.config.ItemPathPrefix),
		Degraded:  result.Outcome == pagination.OutcomeFailed,
		OutOfPlan: len(records) == 0 && index >= chunkCount(g.config.FallbackCount, chunk.Size),
	}, nil
}

// Config returns the generator configuration.
func (g *Generator) Config() Config {
	return g.config
}
