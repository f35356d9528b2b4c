// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package connector

import (
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// cleanText strips inline markup, decodes entities, and collapses whitespace.
// Providers return JATS/HTML fragments in titles and abstracts.
func cleanText(s string) string {
	if s == "" {
		return ""
	}
	if strings.Contains(s, "<") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			s = doc.Text()
		}
	} else if strings.Contains(s, "&") {
		s = html.UnescapeString(s)
	}
	return strings.Join(strings.Fields(s), " ")
}

// dateLayouts are tried in order by parseDate.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"2006-01",
	"January 2, 2006",
	"Jan 2, 2006",
	"January 2006",
	"Jan 2006",
	"2006",
}

// parseDate parses the date formats academic providers use. It returns the
// zero time when nothing matches.
func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// yearDate returns January 1 of year, or zero for a non-positive year.
func yearDate(year int) time.Time {
	if year <= 0 {
		return time.Time{}
	}
	return time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
}

var doiPrefixes = []string{
	"https://doi.org/",
	"http://doi.org/",
	"https://dx.doi.org/",
	"http://dx.doi.org/",
	"doi:",
}

// normalizeDOI strips resolver prefixes and surrounding whitespace.
func normalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	lower := strings.ToLower(doi)
	for _, p := range doiPrefixes {
		if strings.HasPrefix(lower, p) {
			return strings.TrimSpace(doi[len(p):])
		}
	}
	return doi
}

var doiPattern = regexp.MustCompile(`10\.\d{4,9}/[^\s"<>?#]+`)

// extractDOI finds the first DOI embedded in text (for example a URL).
func extractDOI(text string) string {
	m := doiPattern.FindString(text)
	return strings.TrimRight(m, ".,;)")
}

// finalize enforces the Document invariants for a connector's output.
func finalize(docs []types.Document, provider string) []types.Document {
	if docs == nil {
		return []types.Document{}
	}
	for i := range docs {
		docs[i].Fill(provider)
	}
	return docs
}

// dedupeStrings drops empty and repeated entries, keeping order.
func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
