package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/catalog-sitemap/pkg/cache"
	"github.com/Sternrassler/catalog-sitemap/pkg/sitemap"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	goleak.VerifyTestMain(m)
}

const indexXML = `<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9"></sitemapindex>
`

type stubDocs struct {
	mu           sync.Mutex
	index        sitemap.Document
	chunk        sitemap.Document
	indexCalls   int
	chunkIndices []int
}

func (d *stubDocs) IndexDocument(ctx context.Context) sitemap.Document {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.indexCalls++
	return d.index
}

func (d *stubDocs) Minimal() []byte { return []byte("<minimal/>") }

func (d *stubDocs) Static() []byte { return []byte("<static/>") }

func (d *stubDocs) ChunkDocument(ctx context.Context, index int) (sitemap.Document, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.chunkIndices = append(d.chunkIndices, index)
	return d.chunk, nil
}

func (d *stubDocs) IndexCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.indexCalls
}

type memCache struct {
	mu      sync.Mutex
	entries map[string]*cache.CacheEntry
	getErr  error
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]*cache.CacheEntry)}
}

func (m *memCache) Get(ctx context.Context, key cache.CacheKey) (*cache.CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	entry, ok := m.entries[key.String()]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	copied := *entry
	return &copied, nil
}

func (m *memCache) Set(ctx context.Context, key cache.CacheKey, entry *cache.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key.String()] = entry
	return nil
}

func (m *memCache) lookup(key cache.CacheKey) (*cache.CacheEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key.String()]
	return entry, ok
}

func newTestServer(t *testing.T, docs Documents, docCache DocCache, checks ...ReadyCheck) (*Server, http.Handler) {
	t.Helper()

	srv, err := NewServer(docs, docCache, DefaultConfig("https://shop.example.com/"), checks...)
	require.NoError(t, err)
	t.Cleanup(srv.Wait)

	return srv, srv.Router()
}

func do(h http.Handler, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNewServer_Validation(t *testing.T) {
	_, err := NewServer(nil, nil, DefaultConfig("https://shop.example.com"))
	assert.ErrorContains(t, err, "documents are required")

	_, err = NewServer(&stubDocs{}, nil, DefaultConfig(""))
	assert.ErrorContains(t, err, "base url is required")
}

func TestIndex_ServesXMLWithCacheHeaders(t *testing.T) {
	docs := &stubDocs{index: sitemap.Document{Body: []byte(indexXML)}}
	_, h := newTestServer(t, docs, nil)

	rec := do(h, http.MethodGet, "/sitemap_index.xml", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, indexXML, rec.Body.String())
	assert.Equal(t, cache.ContentTypeXML, rec.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=3600, stale-while-revalidate=86400", rec.Header().Get("Cache-Control"))
	assert.Equal(t, cache.ComputeETag([]byte(indexXML)), rec.Header().Get("ETag"))
	assert.Equal(t, cacheMiss, rec.Header().Get("X-Cache"))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestIndex_NotModified(t *testing.T) {
	docs := &stubDocs{index: sitemap.Document{Body: []byte(indexXML)}}
	_, h := newTestServer(t, docs, nil)

	first := do(h, http.MethodGet, "/sitemap_index.xml", nil)
	etag := first.Header().Get("ETag")
	require.NotEmpty(t, etag)

	second := do(h, http.MethodGet, "/sitemap_index.xml", map[string]string{"If-None-Match": etag})
	assert.Equal(t, http.StatusNotModified, second.Code)
	assert.Empty(t, second.Body.String())
	assert.Equal(t, etag, second.Header().Get("ETag"))

	other := do(h, http.MethodGet, "/sitemap_index.xml", map[string]string{"If-None-Match": `"other"`})
	assert.Equal(t, http.StatusOK, other.Code)
}

func TestLegacyAndStatic(t *testing.T) {
	docs := &stubDocs{}
	_, h := newTestServer(t, docs, nil)

	rec := do(h, http.MethodGet, "/sitemap.xml", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<minimal/>", rec.Body.String())

	rec = do(h, http.MethodGet, "/sitemap/static.xml", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<static/>", rec.Body.String())
	assert.Equal(t, cacheBypass, rec.Header().Get("X-Cache"))

	assert.Zero(t, docs.IndexCalls(), "legacy and static documents must not build the index")
}

func TestChunkRoutes(t *testing.T) {
	tests := []struct {
		path      string
		wantCode  int
		wantIndex int
	}{
		{path: "/sitemap/0.xml", wantCode: http.StatusOK, wantIndex: 0},
		{path: "/sitemap/17.xml", wantCode: http.StatusOK, wantIndex: 17},
		{path: "/sitemap/-1.xml", wantCode: http.StatusNotFound},
		{path: "/sitemap/abc.xml", wantCode: http.StatusNotFound},
		{path: "/sitemap/01.xml", wantCode: http.StatusNotFound},
		{path: "/sitemap/3", wantCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			docs := &stubDocs{chunk: sitemap.Document{Body: []byte("<urlset/>")}}
			_, h := newTestServer(t, docs, nil)

			rec := do(h, http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.wantCode, rec.Code)

			if tt.wantCode == http.StatusOK {
				assert.Equal(t, []int{tt.wantIndex}, docs.chunkIndices)
				assert.Equal(t, "<urlset/>", rec.Body.String())
			} else {
				assert.Empty(t, docs.chunkIndices)
			}
		})
	}
}

func TestDiagnostic(t *testing.T) {
	_, h := newTestServer(t, &stubDocs{}, nil)

	rec := do(h, http.MethodGet, "/_diagnostics/sitemap-error?message=backend+down", nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "noindex", rec.Header().Get("X-Robots-Tag"))
	assert.Empty(t, rec.Body.String())
}

func TestRobots(t *testing.T) {
	_, h := newTestServer(t, &stubDocs{}, nil)

	rec := do(h, http.MethodGet, "/robots.txt", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Disallow: /_diagnostics/")
	assert.Contains(t, rec.Body.String(), "Sitemap: https://shop.example.com/sitemap_index.xml")
}

func TestHealthAndReady(t *testing.T) {
	healthy := ReadyCheck{Name: "backend", Check: func(ctx context.Context) error { return nil }}
	failing := ReadyCheck{Name: "redis", Check: func(ctx context.Context) error { return errors.New("connection refused") }}

	_, h := newTestServer(t, &stubDocs{}, nil, healthy)

	rec := do(h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = do(h, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	_, h = newTestServer(t, &stubDocs{}, nil, healthy, failing)
	rec = do(h, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "redis: connection refused", rec.Body.String())
}

func TestRequestID(t *testing.T) {
	_, h := newTestServer(t, &stubDocs{}, nil)

	incoming := uuid.NewString()
	rec := do(h, http.MethodGet, "/health", map[string]string{RequestIDHeader: incoming})
	assert.Equal(t, incoming, rec.Header().Get(RequestIDHeader))

	rec = do(h, http.MethodGet, "/health", map[string]string{RequestIDHeader: "<script>"})
	got := rec.Header().Get(RequestIDHeader)
	assert.NotEqual(t, "<script>", got)
	_, err := uuid.Parse(got)
	assert.NoError(t, err)
}

func TestGzip(t *testing.T) {
	docs := &stubDocs{index: sitemap.Document{Body: []byte(indexXML)}}
	_, h := newTestServer(t, docs, nil)

	rec := do(h, http.MethodGet, "/sitemap_index.xml", map[string]string{"Accept-Encoding": "gzip, deflate"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	assert.Contains(t, rec.Header().Get("Vary"), "Accept-Encoding")

	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, indexXML, string(body))

	notModified := do(h, http.MethodGet, "/sitemap_index.xml", map[string]string{
		"Accept-Encoding": "gzip",
		"If-None-Match":   rec.Header().Get("ETag"),
	})
	assert.Equal(t, http.StatusNotModified, notModified.Code)
	assert.Empty(t, notModified.Header().Get("Content-Encoding"))
	assert.Zero(t, notModified.Body.Len())

	plain := do(h, http.MethodGet, "/sitemap_index.xml", map[string]string{"Accept-Encoding": "gzip;q=0"})
	assert.Empty(t, plain.Header().Get("Content-Encoding"))
	assert.Equal(t, indexXML, plain.Body.String())
}

func TestAcceptsGzip(t *testing.T) {
	tests := map[string]bool{
		"":                  false,
		"gzip":              true,
		"GZIP":              true,
		"br, gzip;q=0.8":    true,
		"gzip; q=0":         false,
		"deflate, identity": false,
	}
	for header, want := range tests {
		assert.Equal(t, want, acceptsGzip(header), "Accept-Encoding %q", header)
	}
}

func TestCache_MissThenHit(t *testing.T) {
	docs := &stubDocs{index: sitemap.Document{Body: []byte(indexXML)}}
	mc := newMemCache()
	_, h := newTestServer(t, docs, mc)

	first := do(h, http.MethodGet, "/sitemap_index.xml", nil)
	assert.Equal(t, cacheMiss, first.Header().Get("X-Cache"))

	second := do(h, http.MethodGet, "/sitemap_index.xml", nil)
	assert.Equal(t, cacheHit, second.Header().Get("X-Cache"))
	assert.Equal(t, indexXML, second.Body.String())
	assert.Equal(t, first.Header().Get("ETag"), second.Header().Get("ETag"))

	assert.Equal(t, 1, docs.IndexCalls())
}

func TestCache_DegradedNotStored(t *testing.T) {
	docs := &stubDocs{index: sitemap.Document{Body: []byte(indexXML), Degraded: true}}
	mc := newMemCache()
	_, h := newTestServer(t, docs, mc)

	do(h, http.MethodGet, "/sitemap_index.xml", nil)
	do(h, http.MethodGet, "/sitemap_index.xml", nil)

	_, stored := mc.lookup(cache.CacheKey{Path: sitemap.IndexPath})
	assert.False(t, stored)
	assert.Equal(t, 2, docs.IndexCalls())
}

func TestCache_ReadErrorRenders(t *testing.T) {
	docs := &stubDocs{index: sitemap.Document{Body: []byte(indexXML)}}
	mc := newMemCache()
	mc.getErr = errors.New("redis get: connection reset")
	_, h := newTestServer(t, docs, mc)

	rec := do(h, http.MethodGet, "/sitemap_index.xml", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, cacheMiss, rec.Header().Get("X-Cache"))
}

func TestCache_StaleServedAndRefreshed(t *testing.T) {
	fresh := []byte(strings.Replace(indexXML, "></sitemapindex>", "><!-- new --></sitemapindex>", 1))
	docs := &stubDocs{index: sitemap.Document{Body: fresh}}
	mc := newMemCache()

	key := cache.CacheKey{Path: sitemap.IndexPath}
	old := cache.NewEntry([]byte(indexXML), cache.ContentTypeXML, cache.DefaultPolicy(), time.Now().Add(-2*time.Hour))
	require.NoError(t, mc.Set(context.Background(), key, old))

	srv, h := newTestServer(t, docs, mc)

	rec := do(h, http.MethodGet, "/sitemap_index.xml", nil)
	assert.Equal(t, cacheStale, rec.Header().Get("X-Cache"))
	assert.Equal(t, indexXML, rec.Body.String())

	srv.Wait()

	entry, ok := mc.lookup(key)
	require.True(t, ok)
	assert.Equal(t, string(fresh), string(entry.Data))
	assert.Equal(t, 1, docs.IndexCalls())
}
