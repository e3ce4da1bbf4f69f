package webscraper

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/UkraineNow-Intel/autoSA-backend/providers"
)

// headlineIDLen caps the headline fragment embedded in a synthesized
// external id.
const headlineIDLen = 50

// ExternalID synthesizes a stable id for a scraped item. Sites expose no
// native ids, so the site key, timestamp, and headline prefix stand in.
func ExternalID(site string, ts time.Time, headline string) string {
	runes := []rune(headline)
	if len(runes) > headlineIDLen {
		runes = runes[:headlineIDLen]
	}
	return fmt.Sprintf("%s|%s|%s", site, ts.UTC().Format(time.RFC3339), string(runes))
}

// extractField applies one configured rule to an item node. Returns the
// empty string when the rule matches nothing.
func extractField(sel *goquery.Selection, rule providers.FieldRule) string {
	node := sel.Find(rule.Selector).First()
	if node.Length() == 0 {
		return ""
	}

	switch {
	case rule.Attribute != "":
		value, _ := node.Attr(rule.Attribute)
		return strings.TrimSpace(value)
	case rule.Pattern != "":
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return ""
		}
		m := re.FindStringSubmatch(node.Text())
		if len(m) < 2 {
			return ""
		}
		return strings.TrimSpace(m[1])
	default:
		return strings.TrimSpace(node.Text())
	}
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"02.01.2006 15:04",
	"January 2, 2006 15:04",
	"Jan 2, 2006 15:04",
}

var humanParser = func() *when.Parser {
	p := when.New(nil)
	p.Add(en.All...)
	p.Add(common.All...)
	return p
}()

// parseTimestamp reads a site timestamp. Absolute layouts are tried
// first; humanized phrases like "2 hours ago" are resolved against now
// and rounded down to the minute, since they carry no better precision.
func parseTimestamp(s string, now time.Time) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}

	r, err := humanParser.Parse(s, now)
	if err != nil || r == nil {
		return time.Time{}, false
	}
	return r.Time.UTC().Truncate(time.Minute), true
}

// resolveURL turns a possibly relative href into an absolute one.
func resolveURL(base, href string) string {
	if href == "" {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(ref).String()
}
