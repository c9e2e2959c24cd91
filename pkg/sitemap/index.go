package sitemap

import (
	"encoding/xml"
	"net/url"
	"sort"
	"time"

	"github.com/Sternrassler/catalog-sitemap/pkg/estimate"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// IndexBuilder renders sitemap index documents.
type IndexBuilder struct {
	now    func() time.Time
	logger zerolog.Logger
}

// NewIndexBuilder creates a new index builder.
func NewIndexBuilder() *IndexBuilder {
	return &IndexBuilder{
		now:    time.Now,
		logger: log.With().Str("component", "sitemap").Logger(),
	}
}

// SetClock overrides the build time source (for testing).
func (b *IndexBuilder) SetClock(now func() time.Time) {
	b.now = now
}

// Entries lists the index entries in document order: the static routes, one
// per chunk in ascending index order, and a diagnostic entry iff the
// estimate is a fallback.
func (b *IndexBuilder) Entries(est estimate.Estimate, chunks []Chunk, baseURL string) []Entry {
	builtAt := b.now()

	ordered := make([]Chunk, len(chunks))
	copy(ordered, chunks)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	entries := make([]Entry, 0, len(ordered)+2)
	entries = append(entries, Entry{Location: joinURL(baseURL, StaticPath), LastModified: builtAt})

	for _, c := range ordered {
		entries = append(entries, Entry{Location: joinURL(baseURL, ChunkPath(c.Index)), LastModified: builtAt})
	}

	if est.IsFallback() {
		entries = append(entries, Entry{Location: DiagnosticURL(baseURL, est.Err), LastModified: builtAt})
	}

	return entries
}

// Build renders the sitemap index. It never fails: if rendering ever went
// wrong the minimal static-only index is returned instead.
func (b *IndexBuilder) Build(est estimate.Estimate, chunks []Chunk, baseURL string) []byte {
	doc, err := renderIndex(b.Entries(est, chunks, baseURL))
	if err != nil {
		b.logger.Error().Err(err).Msg("Failed to render sitemap index - serving minimal index")
		return b.BuildMinimal(baseURL)
	}

	b.logger.Debug().
		Int("chunks", len(chunks)).
		Str("estimate_kind", string(est.Kind)).
		Int("estimate_count", est.Count).
		Msg("Sitemap index built")

	return doc
}

// BuildMinimal renders the degraded index referencing only the static routes.
func (b *IndexBuilder) BuildMinimal(baseURL string) []byte {
	entries := []Entry{{Location: joinURL(baseURL, StaticPath), LastModified: b.now()}}

	doc, err := renderIndex(entries)
	if err != nil {
		// Unreachable for plain strings; keep the document well-formed regardless.
		return []byte(xml.Header + `<sitemapindex xmlns="` + Namespace + `"></sitemapindex>` + "\n")
	}
	return doc
}

// DiagnosticURL returns the non-crawlable location carrying errMsg.
func DiagnosticURL(baseURL, errMsg string) string {
	return joinURL(baseURL, DiagnosticPath) + "?" + DiagnosticParam + "=" + url.QueryEscape(errMsg)
}

func renderIndex(entries []Entry) ([]byte, error) {
	doc := sitemapIndex{
		Xmlns:    Namespace,
		Sitemaps: make([]sitemapEntry, 0, len(entries)),
	}
	for _, e := range entries {
		doc.Sitemaps = append(doc.Sitemaps, sitemapEntry{
			Loc:     e.Location,
			LastMod: formatLastMod(e.LastModified),
		})
	}
	return render(doc)
}
