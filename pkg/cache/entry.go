package cache

import (
	"time"
)

// CacheEntry is a rendered document stored in the cache.
type CacheEntry struct {
	// Data is the rendered document
	Data []byte `json:"data"`

	// ETag is the strong validator derived from Data
	ETag string `json:"etag"`

	// ContentType of the document
	ContentType string `json:"content_type"`

	// Expires is when the entry stops being fresh
	Expires time.Time `json:"expires"`

	// StaleUntil is when the entry may no longer be served at all
	StaleUntil time.Time `json:"stale_until"`

	// CachedAt is when the document was rendered
	CachedAt time.Time `json:"cached_at"`
}

// IsFresh reports whether the entry can be served without a refresh.
func (e *CacheEntry) IsFresh(now time.Time) bool {
	return now.Before(e.Expires)
}

// IsExpired reports whether the entry is past its stale window.
func (e *CacheEntry) IsExpired(now time.Time) bool {
	return !now.Before(e.StaleUntil)
}

// TTL returns how long Redis should keep the entry.
// Returns 0 if already expired.
func (e *CacheEntry) TTL(now time.Time) time.Duration {
	ttl := e.StaleUntil.Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Age returns the entry age in whole seconds, as sent in the Age header.
func (e *CacheEntry) Age(now time.Time) int {
	age := now.Sub(e.CachedAt)
	if age < 0 {
		return 0
	}
	return int(age / time.Second)
}
