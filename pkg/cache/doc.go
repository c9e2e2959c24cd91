// Package cache stores rendered sitemap documents in Redis.
//
// Every entry carries a content hash ETag, a freshness deadline (max-age)
// and a stale deadline (stale-while-revalidate). Redis expires the key at
// the stale deadline, so Get only ever returns fresh or stale entries.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient)
//	key := cache.CacheKey{Path: "/sitemap/3.xml"}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		entry = cache.NewEntry(render(), cache.ContentTypeXML, cache.DefaultPolicy(), time.Now())
//		_ = manager.Set(ctx, key, entry)
//	}
//
// # Conditional Requests
//
//	if cache.MatchesETag(r.Header.Get("If-None-Match"), entry.ETag) {
//		// answer 304 Not Modified
//	}
//
// # Metrics
//
//   - sitemap_doc_cache_hits_total{freshness} - fresh and stale hits
//   - sitemap_doc_cache_misses_total - misses
//   - sitemap_doc_cache_entry_bytes - size of stored documents
//   - sitemap_doc_cache_not_modified_total - 304 answers from a matching ETag
//   - sitemap_doc_cache_errors_total{operation} - Redis and decode errors
package cache
