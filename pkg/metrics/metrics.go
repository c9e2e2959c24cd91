// Package metrics exposes the Prometheus registry of the sitemap service.
// All metrics are defined in their respective packages (client, estimate,
// pagination, sitemap, cache, ratelimit, httpapi) via promauto and land in
// the default registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry all packages register with.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer matching Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the /metrics handler for Gatherer.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Backend Metrics (pkg/client):
//   - sitemap_backend_requests_total{endpoint, status} (Counter): Backend requests by endpoint and status
//   - sitemap_backend_request_duration_seconds{endpoint} (Histogram): Backend request duration
//   - sitemap_backend_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network, malformed, cooldown)
//
// Cooldown Metrics (pkg/ratelimit):
//   - sitemap_backend_cooldown_activations_total{status} (Counter): Cooldowns started by 429/503
//   - sitemap_backend_cooldown_blocks_total (Counter): Requests skipped while cooling down
//   - sitemap_backend_rate_limit_remaining (Gauge): Last X-RateLimit-Remaining seen
//
// Generation Metrics (pkg/estimate, pkg/pagination, pkg/sitemap):
//   - sitemap_estimate_total{kind} (Counter): Estimates by kind (authoritative, fallback)
//   - sitemap_pagination_runs_total{outcome} (Counter): Pagination runs by outcome
//   - sitemap_pagination_records (Histogram): Records per pagination run
//   - sitemap_index_builds_total{mode} (Counter): Index builds (authoritative, fallback, minimal)
//   - sitemap_index_chunks (Gauge): Chunk entries in the last index
//   - sitemap_chunk_builds_total{outcome} (Counter): Chunk documents by pagination outcome
//
// Document Cache Metrics (pkg/cache):
//   - sitemap_doc_cache_hits_total{freshness} (Counter): Hits by freshness (fresh, stale)
//   - sitemap_doc_cache_misses_total (Counter): Misses
//   - sitemap_doc_cache_entry_bytes (Histogram): Stored document size
//   - sitemap_doc_cache_not_modified_total (Counter): 304 Not Modified answers
//   - sitemap_doc_cache_errors_total{operation} (Counter): Cache operation errors
//
// HTTP Metrics (internal/httpapi):
//   - sitemap_http_requests_total{route, status} (Counter): Requests served
//   - sitemap_http_request_duration_seconds{route} (Histogram): Serving latency
//
// Example Prometheus Queries:
//
//   # Share of indexes built from the fallback count
//   sum(rate(sitemap_index_builds_total{mode="fallback"}[1h])) /
//   sum(rate(sitemap_index_builds_total[1h]))
//
//   # Failed chunk fills
//   rate(sitemap_chunk_builds_total{outcome="failed"}[5m])
//
//   # Document cache hit rate
//   sum(rate(sitemap_doc_cache_hits_total[5m])) /
//   (sum(rate(sitemap_doc_cache_hits_total[5m])) + sum(rate(sitemap_doc_cache_misses_total[5m])))
//
//   # P95 backend latency
//   histogram_quantile(0.95, rate(sitemap_backend_request_duration_seconds_bucket[5m]))
