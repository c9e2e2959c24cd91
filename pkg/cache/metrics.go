package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by freshness
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitemap_doc_cache_hits_total",
			Help: "Total number of sitemap document cache hits",
		},
		[]string{"freshness"}, // "fresh", "stale"
	)

	// CacheMisses tracks cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sitemap_doc_cache_misses_total",
			Help: "Total number of sitemap document cache misses",
		},
	)

	// EntryBytes tracks the size of stored documents
	EntryBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sitemap_doc_cache_entry_bytes",
			Help:    "Size of sitemap documents written to the cache",
			Buckets: prometheus.ExponentialBuckets(512, 4, 8),
		},
	)

	// NotModified tracks 304 answers served from a matching ETag
	NotModified = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sitemap_doc_cache_not_modified_total",
			Help: "Total number of 304 Not Modified answers",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitemap_doc_cache_errors_total",
			Help: "Total number of document cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
