package sitemap

import (
	"encoding/xml"
	"net/url"
	"strings"
	"time"

	"github.com/Sternrassler/catalog-sitemap/pkg/catalog"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// URLSetBuilder renders <urlset> documents for chunks and static routes.
type URLSetBuilder struct {
	now    func() time.Time
	logger zerolog.Logger
}

// NewURLSetBuilder creates a new urlset builder.
func NewURLSetBuilder() *URLSetBuilder {
	return &URLSetBuilder{
		now:    time.Now,
		logger: log.With().Str("component", "sitemap").Logger(),
	}
}

// SetClock overrides the build time source (for testing).
func (b *URLSetBuilder) SetClock(now func() time.Time) {
	b.now = now
}

// BuildRecords renders one urlset entry per record at
// {baseURL}{itemPrefix}{slug}. Records without a slug are skipped.
func (b *URLSetBuilder) BuildRecords(records []catalog.SlugRecord, baseURL, itemPrefix string) []byte {
	lastMod := formatLastMod(b.now())
	prefix := joinURL(baseURL, "/"+strings.Trim(itemPrefix, "/")+"/")
	if strings.Trim(itemPrefix, "/") == "" {
		prefix = joinURL(baseURL, "/")
	}

	urls := make([]urlEntry, 0, len(records))
	skipped := 0
	for _, rec := range records {
		slug := strings.TrimSpace(rec.Slug)
		if slug == "" {
			skipped++
			continue
		}
		urls = append(urls, urlEntry{
			Loc:     prefix + url.PathEscape(slug),
			LastMod: lastMod,
		})
	}

	if skipped > 0 {
		b.logger.Warn().Int("skipped", skipped).Msg("Skipped records without slug")
	}

	return b.renderURLSet(urls)
}

// BuildStatic renders the static-routes urlset.
func (b *URLSetBuilder) BuildStatic(paths []string, baseURL string) []byte {
	lastMod := formatLastMod(b.now())

	urls := make([]urlEntry, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		urls = append(urls, urlEntry{
			Loc:        joinURL(baseURL, p),
			LastMod:    lastMod,
			ChangeFreq: "weekly",
		})
	}

	return b.renderURLSet(urls)
}

func (b *URLSetBuilder) renderURLSet(urls []urlEntry) []byte {
	doc, err := render(urlSet{Xmlns: Namespace, URLs: urls})
	if err != nil {
		b.logger.Error().Err(err).Msg("Failed to render urlset - serving empty urlset")
		return []byte(xml.Header + `<urlset xmlns="` + Namespace + `"></urlset>` + "\n")
	}
	return doc
}
