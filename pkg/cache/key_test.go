package cache

import "testing"

func TestCacheKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  CacheKey
		want string
	}{
		{
			name: "index",
			key:  CacheKey{Path: "/sitemap_index.xml"},
			want: "sitemap:doc:sitemap_index.xml",
		},
		{
			name: "chunk",
			key:  CacheKey{Path: "/sitemap/3.xml"},
			want: "sitemap:doc:sitemap/3.xml",
		},
		{
			name: "trailing slash normalized",
			key:  CacheKey{Path: "sitemap/static.xml/"},
			want: "sitemap:doc:sitemap/static.xml",
		},
		{
			name: "distinct chunks",
			key:  CacheKey{Path: "/sitemap/30.xml"},
			want: "sitemap:doc:sitemap/30.xml",
		},
		{
			name: "empty",
			key:  CacheKey{},
			want: "sitemap:doc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}
