package cache

import "strings"

// KeyPrefix namespaces all document keys in Redis.
const KeyPrefix = "sitemap:doc"

// CacheKey identifies a rendered document by its public path.
type CacheKey struct {
	// Path is the public document path (e.g., "/sitemap/3.xml")
	Path string
}

// String generates the Redis key of the document.
// Format: sitemap:doc:path
//
// Example:
//
//	sitemap:doc:sitemap/3.xml
func (k CacheKey) String() string {
	path := strings.Trim(k.Path, "/")
	if path == "" {
		return KeyPrefix
	}
	return KeyPrefix + ":" + path
}
