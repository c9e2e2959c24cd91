package cache

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/zeebo/blake3"
)

const (
	// ContentTypeXML is the media type of sitemap documents
	ContentTypeXML = "application/xml; charset=utf-8"

	// DefaultMaxAge is how long a document is served fresh
	DefaultMaxAge = time.Hour

	// DefaultStaleWhileRevalidate is how long a stale document may still be served
	DefaultStaleWhileRevalidate = 24 * time.Hour
)

// Policy controls document freshness.
type Policy struct {
	MaxAge               time.Duration
	StaleWhileRevalidate time.Duration
}

// DefaultPolicy returns the default freshness policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxAge:               DefaultMaxAge,
		StaleWhileRevalidate: DefaultStaleWhileRevalidate,
	}
}

// CacheControl renders the Cache-Control header value for the policy.
func (p Policy) CacheControl() string {
	return fmt.Sprintf("public, max-age=%d, stale-while-revalidate=%d",
		int(p.MaxAge/time.Second), int(p.StaleWhileRevalidate/time.Second))
}

// ComputeETag returns a strong ETag for data.
func ComputeETag(data []byte) string {
	sum := blake3.Sum256(data)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

// NewEntry wraps a rendered document into a cache entry.
func NewEntry(data []byte, contentType string, policy Policy, now time.Time) *CacheEntry {
	expires := now.Add(policy.MaxAge)
	return &CacheEntry{
		Data:        data,
		ETag:        ComputeETag(data),
		ContentType: contentType,
		Expires:     expires,
		StaleUntil:  expires.Add(policy.StaleWhileRevalidate),
		CachedAt:    now,
	}
}

// MatchesETag reports whether an If-None-Match header value matches etag.
// Comparison is weak, as required for If-None-Match.
func MatchesETag(ifNoneMatch, etag string) bool {
	ifNoneMatch = strings.TrimSpace(ifNoneMatch)
	if ifNoneMatch == "" || etag == "" {
		return false
	}
	if ifNoneMatch == "*" {
		return true
	}

	want := strings.TrimPrefix(etag, "W/")
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		if strings.TrimPrefix(strings.TrimSpace(candidate), "W/") == want {
			return true
		}
	}
	return false
}

// ApplyHeaders sets the validator and freshness headers of entry on h.
func ApplyHeaders(h http.Header, entry *CacheEntry, policy Policy, now time.Time) {
	if entry == nil || h == nil {
		return
	}

	if entry.ContentType != "" {
		h.Set("Content-Type", entry.ContentType)
	}
	h.Set("ETag", entry.ETag)
	h.Set("Cache-Control", policy.CacheControl())
	h.Set("Last-Modified", entry.CachedAt.UTC().Format(http.TimeFormat))
	h.Set("Age", strconv.Itoa(entry.Age(now)))
}
