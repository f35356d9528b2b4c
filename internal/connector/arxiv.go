// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package connector

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

const arxivMaxResults = 100

// Arxiv queries the arXiv Atom API. Every arXiv document is an open-access preprint.
type Arxiv struct {
	Client    *http.Client
	UserAgent string
}

// NewArxiv returns an arXiv connector.
func NewArxiv(client *http.Client, userAgent string) *Arxiv {
	return &Arxiv{Client: client, UserAgent: userAgent}
}

// Name returns the connector identifier.
func (a *Arxiv) Name() string { return "arxiv" }

// Search queries the arXiv API.
func (a *Arxiv) Search(ctx context.Context, r Request) ([]types.Document, error) {
	q := buildArxivQuery(r)
	if q == "" {
		return nil, fmt.Errorf("empty arXiv query")
	}

	params := url.Values{
		"search_query": {q},
		"start":        {"0"},
		"max_results":  {strconv.Itoa(r.limit(arxivMaxResults))},
		"sortBy":       {"relevance"},
		"sortOrder":    {"descending"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, arxivAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", a.UserAgent)

	resp, err := a.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w", err)
	}

	docs := make([]types.Document, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		arxivID := extractArxivID(entry.ID)
		if arxivID == "" {
			continue
		}
		docs = append(docs, entry.toDocument(arxivID))
	}
	return finalize(docs, a.Name()), nil
}

// Health runs a one-result search.
func (a *Arxiv) Health(ctx context.Context) types.HealthReport {
	return searchProbe(ctx, a, "machine learning")
}

func (e arxivEntry) toDocument(arxivID string) types.Document {
	d := types.Document{
		ID:              arxivID,
		Title:           cleanText(e.Title),
		Abstract:        cleanText(e.Summary),
		PublicationDate: parseDate(e.Published),
		Venue:           "arXiv",
		Journal:         strings.TrimSpace(e.JournalRef),
		DOI:             normalizeDOI(e.DOI),
		URL:             strings.TrimSpace(e.ID),
		Access:          types.AccessOpen,
		DocumentType:    "preprint",
	}

	for _, au := range e.Authors {
		d.Authors = append(d.Authors, types.Author{
			Name:        strings.TrimSpace(au.Name),
			Affiliation: strings.TrimSpace(au.Affiliation),
		})
	}

	for _, l := range e.Links {
		if l.Title == "pdf" || l.Type == "application/pdf" {
			d.PDFURL = l.Href
			break
		}
	}

	var cats []string
	for _, c := range e.Categories {
		cats = append(cats, c.Term)
	}
	d.Subjects = dedupeStrings(cats)

	d.RawMetadata = map[string]any{
		"arxiv_id":         arxivID,
		"categories":       d.Subjects,
		"primary_category": e.PrimaryCategory.Term,
		"comment":          strings.TrimSpace(e.Comment),
		"journal_ref":      d.Journal,
		"updated":          e.Updated,
	}
	return d
}

// buildArxivQuery turns free text and a year window into a search_query value.
func buildArxivQuery(r Request) string {
	var terms []string
	for _, t := range strings.Fields(r.Query) {
		t = strings.Map(func(c rune) rune {
			switch c {
			case '(', ')', '[', ']', '"', ':', '+':
				return -1
			}
			return c
		}, t)
		if t != "" {
			terms = append(terms, t)
		}
	}
	if len(terms) == 0 {
		return ""
	}

	q := "all:" + strings.Join(terms, " ")
	if r.YearMin > 0 || r.YearMax > 0 {
		from, to := "190001010000", "299912312359"
		if r.YearMin > 0 {
			from = fmt.Sprintf("%04d01010000", r.YearMin)
		}
		if r.YearMax > 0 {
			to = fmt.Sprintf("%04d12312359", r.YearMax)
		}
		q += fmt.Sprintf(" AND submittedDate:[%s TO %s]", from, to)
	}
	return q
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID              string          `xml:"id"`
	Title           string          `xml:"title"`
	Summary         string          `xml:"summary"`
	Published       string          `xml:"published"`
	Updated         string          `xml:"updated"`
	Authors         []arxivAuthor   `xml:"author"`
	Links           []arxivLink     `xml:"link"`
	Categories      []arxivCategory `xml:"category"`
	PrimaryCategory arxivCategory   `xml:"http://arxiv.org/schemas/atom primary_category"`
	DOI             string          `xml:"http://arxiv.org/schemas/atom doi"`
	JournalRef      string          `xml:"http://arxiv.org/schemas/atom journal_ref"`
	Comment         string          `xml:"http://arxiv.org/schemas/atom comment"`
}

type arxivAuthor struct {
	Name        string `xml:"name"`
	Affiliation string `xml:"http://arxiv.org/schemas/atom affiliation"`
}

type arxivLink struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
}

type arxivCategory struct {
	Term string `xml:"term,attr"`
}

// extractArxivID pulls the arXiv ID from the entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" → "2301.07041").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	id := strings.TrimSpace(idURL[idx+len(prefix):])

	// Strip version suffix (e.g. "v1", "v2").
	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}
