// Package webscraper ingests configured news sites. Each site definition
// names a headline list selector and per-field extraction rules; items
// are deduplicated downstream through synthesized external ids.
package webscraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/UkraineNow-Intel/autoSA-backend/common/models"
	"github.com/UkraineNow-Intel/autoSA-backend/providers"
)

// Scraper ingests one configured site.
type Scraper struct {
	key       string
	site      providers.SiteConfig
	fetch     FetchFunc
	converter *md.Converter
	now       func() time.Time
}

// New builds a scraper for one site entry. Sites flagged render_js are
// fetched through a headless browser, the rest over plain HTTP.
func New(key string, site providers.SiteConfig, timeout time.Duration) *Scraper {
	fetch := newHTTPFetch(timeout)
	if site.RenderJS {
		fetch = fetchRendered
	}
	return &Scraper{
		key:       key,
		site:      site,
		fetch:     fetch,
		converter: md.NewConverter("", true, nil),
		now:       time.Now,
	}
}

func (s *Scraper) Key() string {
	return s.key
}

// Fetch loads the site page, extracts every configured item, and emits
// the ones that normalize cleanly and fall inside the window.
func (s *Scraper) Fetch(ctx context.Context, win providers.TimeWindow, emit providers.EmitFunc) (int, error) {
	html, err := s.fetch(ctx, s.site.URL)
	if err != nil {
		return 0, fmt.Errorf("fetching %s: %w", s.site.URL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", s.site.URL, err)
	}

	dropped := 0
	var emitErr error
	doc.Find(s.site.ItemSelector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		item, ok := s.normalize(sel)
		if !ok || !win.Contains(item.Timestamp) {
			dropped++
			return true
		}
		if emitErr = emit(item); emitErr != nil {
			return false
		}
		return true
	})
	if emitErr != nil {
		return dropped, emitErr
	}

	log.Debug().Str("site", s.key).Int("dropped", dropped).Msg("Site scrape finished")
	return dropped, nil
}

// normalize projects one item node into the canonical shape. Items
// without a parseable timestamp or without any content are dropped.
func (s *Scraper) normalize(sel *goquery.Selection) (models.NormalizedItem, bool) {
	headline := extractField(sel, s.site.Fields["headline"])
	text := s.extractText(sel)
	if headline == "" && text == "" {
		return models.NormalizedItem{}, false
	}

	ts, ok := parseTimestamp(extractField(sel, s.site.Fields["timestamp"]), s.now())
	if !ok {
		return models.NormalizedItem{}, false
	}

	itemURL := resolveURL(s.site.URL, extractField(sel, s.site.Fields["url"]))
	if itemURL == "" {
		itemURL = s.site.URL
	}

	lang := s.site.Language
	if !models.SupportedLanguage(lang) {
		lang = models.LanguageEN
	}

	return models.NormalizedItem{
		ExternalID: ExternalID(s.key, ts, headline),
		Interface:  models.InterfaceWebsite,
		Origin:     s.key,
		URL:        itemURL,
		MediaURL:   resolveURL(s.site.URL, extractField(sel, s.site.Fields["media_url"])),
		Headline:   headline,
		Text:       text,
		Language:   lang,
		Timestamp:  ts,
	}, true
}

func (s *Scraper) extractText(sel *goquery.Selection) string {
	rule, ok := s.site.Fields["text"]
	if !ok {
		return ""
	}
	if s.site.TextMarkdown && rule.Attribute == "" && rule.Pattern == "" {
		node := sel.Find(rule.Selector).First()
		if node.Length() == 0 {
			return ""
		}
		html, err := node.Html()
		if err != nil {
			return strings.TrimSpace(node.Text())
		}
		markdown, err := s.converter.ConvertString(html)
		if err != nil {
			return strings.TrimSpace(node.Text())
		}
		return strings.TrimSpace(markdown)
	}
	return extractField(sel, rule)
}
