package main

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Sternrassler/catalog-sitemap/internal/testutil"
	"github.com/Sternrassler/catalog-sitemap/pkg/config"
)

func testConfig(backendURL string) *config.Config {
	cfg := config.Default()
	cfg.Backend.URL = backendURL
	cfg.Sitemap.BaseURL = "https://shop.example.com"
	cfg.Sitemap.ChunkSize = 10
	cfg.Sitemap.PageLimit = 5
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *app {
	t.Helper()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("invalid test config: %v", err)
	}

	a, err := newApp(context.Background(), cfg)
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	t.Cleanup(a.close)
	return a
}

func get(t *testing.T, h http.Handler, target string) (*http.Response, string) {
	t.Helper()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", target, nil))

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func TestHealthEndpoint(t *testing.T) {
	mock := testutil.NewMockBackend()
	defer mock.Close()

	a := newTestApp(t, testConfig(mock.URL()))

	resp, body := get(t, a.handler, "/health")

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if body != "OK" {
		t.Errorf("Expected body 'OK', got %s", body)
	}
}

func TestReadyEndpoint(t *testing.T) {
	mock := testutil.NewMockBackend()
	defer mock.Close()

	a := newTestApp(t, testConfig(mock.URL()))

	t.Run("ready", func(t *testing.T) {
		resp, body := get(t, a.handler, "/ready")
		if resp.StatusCode != http.StatusOK {
			t.Errorf("Expected status 200, got %d (%s)", resp.StatusCode, body)
		}
	})

	t.Run("not_ready_backend_down", func(t *testing.T) {
		mock.SetResponse("/products/count", testutil.NewServerErrorResponse())

		resp, body := get(t, a.handler, "/ready")
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("Expected status 503, got %d", resp.StatusCode)
		}
		if !strings.HasPrefix(body, "backend:") {
			t.Errorf("Expected failing check name in body, got %q", body)
		}
	})
}

func TestSitemapFlow(t *testing.T) {
	mock := testutil.NewMockBackend()
	defer mock.Close()

	records := testutil.MakeRecords(0, 14)
	mock.SetCount(len(records))
	mock.SetListingCatalog(records)

	a := newTestApp(t, testConfig(mock.URL()))

	resp, body := get(t, a.handler, "/sitemap_index.xml")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("index status = %d", resp.StatusCode)
	}

	var index struct {
		Sitemaps []struct {
			Loc string `xml:"loc"`
		} `xml:"sitemap"`
	}
	if err := xml.Unmarshal([]byte(body), &index); err != nil {
		t.Fatalf("index is not well-formed: %v", err)
	}
	if len(index.Sitemaps) != 3 {
		t.Fatalf("index entries = %d, want static + 2 chunks", len(index.Sitemaps))
	}

	resp, body = get(t, a.handler, "/sitemap/1.xml")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chunk status = %d", resp.StatusCode)
	}
	if strings.Count(body, "<url>") != 4 {
		t.Errorf("chunk 1 urls = %d, want 4", strings.Count(body, "<url>"))
	}
	if !strings.Contains(body, "https://shop.example.com/games/game-13") {
		t.Error("chunk 1 should contain the last record")
	}
}

func TestSitemapFlow_BackendDown(t *testing.T) {
	mock := testutil.NewMockBackend()
	defer mock.Close()

	mock.SetResponse("/products/count", testutil.NewServerErrorResponse())

	a := newTestApp(t, testConfig(mock.URL()))

	resp, body := get(t, a.handler, "/sitemap_index.xml")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("index status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, "/_diagnostics/sitemap-error?message=") {
		t.Error("fallback index should carry the diagnostic entry")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	mock := testutil.NewMockBackend()
	defer mock.Close()

	a := newTestApp(t, testConfig(mock.URL()))

	// Generate some traffic so the vectors have samples
	get(t, a.handler, "/sitemap_index.xml")

	resp, body := get(t, a.handler, "/metrics")

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	if !strings.Contains(body, "# HELP") || !strings.Contains(body, "# TYPE") {
		t.Error("Expected Prometheus format metrics output")
	}

	for _, name := range []string{
		"sitemap_estimate_total",
		"sitemap_index_builds_total",
		"sitemap_backend_requests_total",
		"sitemap_http_requests_total",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("Expected metrics output to contain %s", name)
		}
	}
}

func TestNewApp_RedisUnavailable(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Cache.RedisURL = "redis://127.0.0.1:1/0"

	if _, err := newApp(context.Background(), cfg); err == nil {
		t.Error("newApp should fail when Redis is configured but unreachable")
	}
}
