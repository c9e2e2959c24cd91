package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Sternrassler/catalog-sitemap/pkg/cache"
	"github.com/Sternrassler/catalog-sitemap/pkg/sitemap"
	"github.com/gin-gonic/gin"
)

// X-Cache values
const (
	cacheHit    = "hit"
	cacheStale  = "stale"
	cacheMiss   = "miss"
	cacheBypass = "bypass"
)

type renderFunc func(ctx context.Context) (sitemap.Document, error)

func (s *Server) index(c *gin.Context) {
	s.serveDocument(c, cache.CacheKey{Path: sitemap.IndexPath}, func(ctx context.Context) (sitemap.Document, error) {
		return s.docs.IndexDocument(ctx), nil
	})
}

// legacy serves the static-only index without touching the backend.
func (s *Server) legacy(c *gin.Context) {
	s.writeEntry(c, cache.NewEntry(s.docs.Minimal(), cache.ContentTypeXML, s.config.Policy, s.now()), cacheBypass)
}

func (s *Server) sitemapDocument(c *gin.Context) {
	name := c.Param("name")
	if name == "static.xml" {
		s.writeEntry(c, cache.NewEntry(s.docs.Static(), cache.ContentTypeXML, s.config.Policy, s.now()), cacheBypass)
		return
	}

	index, ok := sitemap.ParseChunkName(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	s.serveDocument(c, cache.CacheKey{Path: sitemap.ChunkPath(index)}, func(ctx context.Context) (sitemap.Document, error) {
		return s.docs.ChunkDocument(ctx, index)
	})
}

func (s *Server) diagnostic(c *gin.Context) {
	s.logger.Warn().
		Str("request_id", GetRequestID(c)).
		Str("message", c.Query(sitemap.DiagnosticParam)).
		Msg("Sitemap diagnostic entry requested")

	c.Header("X-Robots-Tag", "noindex")
	c.Status(http.StatusNoContent)
}

func (s *Server) robots(c *gin.Context) {
	c.String(http.StatusOK, "User-agent: *\nDisallow: %s\n\nSitemap: %s%s\n",
		"/_diagnostics/", s.config.BaseURL, sitemap.IndexPath)
}

func (s *Server) health(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

func (s *Server) ready(c *gin.Context) {
	for _, check := range s.checks {
		ctx, cancel := context.WithTimeout(c.Request.Context(), s.config.ReadyTimeout)
		err := check.Check(ctx)
		cancel()

		if err != nil {
			s.logger.Warn().Err(err).Str("check", check.Name).Msg("Readiness check failed")
			c.String(http.StatusServiceUnavailable, "%s: %v", check.Name, err)
			return
		}
	}
	c.String(http.StatusOK, "OK")
}

// serveDocument answers from the cache when possible. A stale entry is served
// immediately and refreshed in the background; a miss renders in the request.
// Concurrent renders of the same document are collapsed.
func (s *Server) serveDocument(c *gin.Context, key cache.CacheKey, render renderFunc) {
	ctx := c.Request.Context()

	if s.cache != nil {
		entry, err := s.cache.Get(ctx, key)
		switch {
		case err == nil:
			status := cacheHit
			if !entry.IsFresh(s.now()) {
				status = cacheStale
				s.refreshInBackground(key, render)
			}
			s.writeEntry(c, entry, status)
			return
		case !errors.Is(err, cache.ErrCacheMiss):
			s.logger.Warn().Err(err).Str("key", key.String()).Msg("Document cache read failed - rendering")
		}
	}

	entry, err := s.renderEntry(ctx, key, render)
	if errors.Is(err, sitemap.ErrChunkOutOfRange) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str("key", key.String()).Msg("Document rendering failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "render failed"})
		return
	}
	s.writeEntry(c, entry, cacheMiss)
}

// renderEntry renders a document once per key at a time and stores it
// when it is cacheable. The render is detached from ctx cancellation since
// its result is shared with every request waiting on the same key.
func (s *Server) renderEntry(ctx context.Context, key cache.CacheKey, render renderFunc) (*cache.CacheEntry, error) {
	v, err, _ := s.renders.Do(key.String(), func() (any, error) {
		renderCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.RenderTimeout)
		defer cancel()

		doc, err := render(renderCtx)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", key.Path, err)
		}

		entry := cache.NewEntry(doc.Body, cache.ContentTypeXML, s.config.Policy, s.now())

		if !doc.Cacheable() {
			s.logger.Debug().
				Str("key", key.String()).
				Bool("degraded", doc.Degraded).
				Bool("out_of_plan", doc.OutOfPlan).
				Msg("Document not cached")
		} else if s.cache != nil {
			if err := s.cache.Set(renderCtx, key, entry); err != nil {
				s.logger.Warn().Err(err).Str("key", key.String()).Msg("Document cache write failed")
			}
		}

		return entry, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*cache.CacheEntry), nil
}

func (s *Server) refreshInBackground(key cache.CacheKey, render renderFunc) {
	s.refreshing.Add(1)
	go func() {
		defer s.refreshing.Done()

		if _, err := s.renderEntry(context.Background(), key, render); err != nil {
			s.logger.Warn().Err(err).Str("key", key.String()).Msg("Background refresh failed")
			return
		}
		s.logger.Debug().Str("key", key.String()).Msg("Stale document refreshed")
	}()
}

func (s *Server) writeEntry(c *gin.Context, entry *cache.CacheEntry, status string) {
	cache.ApplyHeaders(c.Writer.Header(), entry, s.config.Policy, s.now())
	c.Header("X-Cache", status)

	if cache.MatchesETag(c.GetHeader("If-None-Match"), entry.ETag) {
		cache.NotModified.Inc()
		c.Status(http.StatusNotModified)
		return
	}

	c.Data(http.StatusOK, entry.ContentType, entry.Data)
}
