// Package httpapi serves the sitemap documents over HTTP with gin.
package httpapi

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/catalog-sitemap/pkg/cache"
	"github.com/Sternrassler/catalog-sitemap/pkg/sitemap"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Documents renders sitemap documents.
type Documents interface {
	IndexDocument(ctx context.Context) sitemap.Document
	Minimal() []byte
	Static() []byte
	ChunkDocument(ctx context.Context, index int) (sitemap.Document, error)
}

// DocCache stores rendered documents.
type DocCache interface {
	Get(ctx context.Context, key cache.CacheKey) (*cache.CacheEntry, error)
	Set(ctx context.Context, key cache.CacheKey, entry *cache.CacheEntry) error
}

// ReadyCheck is one dependency probe of the /ready endpoint.
type ReadyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Config holds server configuration.
type Config struct {
	// BaseURL is the public site URL used in robots.txt
	BaseURL string

	// Policy sets Cache-Control and the cache freshness window
	Policy cache.Policy

	// RenderTimeout bounds one document render, shared by all requests
	// waiting on it and by background refreshes
	RenderTimeout time.Duration

	// ReadyTimeout bounds each readiness check
	ReadyTimeout time.Duration
}

// DefaultConfig returns the default server configuration.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:       baseURL,
		Policy:        cache.DefaultPolicy(),
		RenderTimeout: 30 * time.Second,
		ReadyTimeout:  2 * time.Second,
	}
}

// Server serves sitemap documents, optionally through a document cache.
type Server struct {
	docs   Documents
	cache  DocCache
	checks []ReadyCheck
	config Config
	logger zerolog.Logger
	now    func() time.Time

	renders    singleflight.Group
	refreshing sync.WaitGroup
}

// NewServer creates a new server. cache may be nil to render every request.
func NewServer(docs Documents, docCache DocCache, cfg Config, checks ...ReadyCheck) (*Server, error) {
	if docs == nil {
		return nil, fmt.Errorf("documents are required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if cfg.RenderTimeout <= 0 {
		cfg.RenderTimeout = 30 * time.Second
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 2 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Server{
		docs:   docs,
		cache:  docCache,
		checks: checks,
		config: cfg,
		logger: log.With().Str("component", "httpapi").Logger(),
		now:    time.Now,
	}, nil
}

// Router builds the gin engine with all routes and middleware.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), AccessLog(s.logger), Metrics())

	router.GET("/health", s.health)
	router.GET("/ready", s.ready)
	router.GET("/robots.txt", s.robots)
	router.GET(sitemap.DiagnosticPath, s.diagnostic)

	docs := router.Group("", Gzip())
	docs.GET(sitemap.IndexPath, s.index)
	docs.GET(sitemap.LegacyPath, s.legacy)
	docs.GET("/sitemap/:name", s.sitemapDocument)

	return router
}

// Wait blocks until background refreshes have finished.
func (s *Server) Wait() {
	s.refreshing.Wait()
}
