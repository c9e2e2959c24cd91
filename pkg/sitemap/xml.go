// Package sitemap plans catalog chunks and renders the sitemap index and
// urlset documents served to crawlers.
package sitemap

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Namespace is the sitemap protocol schema namespace.
const Namespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

// Document paths relative to the public base URL.
const (
	IndexPath      = "/sitemap_index.xml"
	LegacyPath     = "/sitemap.xml"
	StaticPath     = "/sitemap/static.xml"
	DiagnosticPath = "/_diagnostics/sitemap-error"

	// DiagnosticParam carries the captured error message.
	DiagnosticParam = "message"
)

// Entry is one <sitemap> element of an index document.
type Entry struct {
	Location     string
	LastModified time.Time
}

type sitemapIndex struct {
	XMLName  xml.Name       `xml:"sitemapindex"`
	Xmlns    string         `xml:"xmlns,attr"`
	Sitemaps []sitemapEntry `xml:"sitemap"`
}

type sitemapEntry struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

type urlSet struct {
	XMLName xml.Name   `xml:"urlset"`
	Xmlns   string     `xml:"xmlns,attr"`
	URLs    []urlEntry `xml:"url"`
}

type urlEntry struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

// ChunkPath returns the document path of chunk index.
func ChunkPath(index int) string {
	return fmt.Sprintf("/sitemap/%d.xml", index)
}

// ParseChunkName parses a chunk document name such as "12.xml".
// Only canonical non-negative decimal indices are accepted.
func ParseChunkName(name string) (int, bool) {
	digits, ok := strings.CutSuffix(name, ".xml")
	if !ok || digits == "" {
		return 0, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
	}

	n, err := strconv.Atoi(digits)
	if err != nil || strconv.Itoa(n) != digits {
		return 0, false
	}
	return n, true
}

// formatLastMod renders a W3C datetime in UTC.
func formatLastMod(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// joinURL joins a base URL and an absolute path without doubling slashes.
func joinURL(baseURL, path string) string {
	return strings.TrimRight(baseURL, "/") + path
}

// render marshals v as an indented XML document with the XML header.
func render(v any) ([]byte, error) {
	body, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal sitemap xml: %w", err)
	}

	out := make([]byte, 0, len(xml.Header)+len(body)+1)
	out = append(out, xml.Header...)
	out = append(out, body...)
	out = append(out, '\n')
	return out, nil
}
