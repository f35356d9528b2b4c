// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pdiddy/research-assistant/internal/httputil"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// semanticAPIBase is the Semantic Scholar paper search endpoint. Declared
// as a var so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1/paper/search"

const semanticFields = "paperId,title,abstract,authors,year,publicationDate,citationCount,url," +
	"journal,venue,publicationTypes,publicationVenue,externalIds,isOpenAccess,openAccessPdf,fieldsOfStudy"

const semanticMaxResults = 100

// SemanticScholar queries the Semantic Scholar Graph API. Throttled
// responses are retried with backoff.
type SemanticScholar struct {
	Retrier   *httputil.Retrier
	APIKey    string
	UserAgent string
}

// NewSemanticScholar returns a Semantic Scholar connector. apiKey is optional.
func NewSemanticScholar(retrier *httputil.Retrier, apiKey, userAgent string) *SemanticScholar {
	return &SemanticScholar{Retrier: retrier, APIKey: apiKey, UserAgent: userAgent}
}

// Name returns the connector identifier.
func (s *SemanticScholar) Name() string { return "semantic_scholar" }

// Search queries the Semantic Scholar API.
func (s *SemanticScholar) Search(ctx context.Context, r Request) ([]types.Document, error) {
	q := strings.TrimSpace(r.Query)
	if q == "" {
		return nil, fmt.Errorf("empty Semantic Scholar query")
	}

	params := url.Values{
		"query":  {q},
		"limit":  {strconv.Itoa(r.limit(semanticMaxResults))},
		"offset": {"0"},
		"fields": {semanticFields},
	}
	if yr := buildYearRange(r.YearMin, r.YearMax); yr != "" {
		params.Set("year", yr)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, semanticAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", s.UserAgent)
	if s.APIKey != "" {
		req.Header.Set("x-api-key", s.APIKey)
	}

	resp, err := s.Retrier.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Semantic Scholar API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Semantic Scholar API returned HTTP %d", resp.StatusCode)
	}

	var sr semanticResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("parsing Semantic Scholar response: %w", err)
	}

	docs := make([]types.Document, 0, len(sr.Data))
	for _, paper := range sr.Data {
		if strings.TrimSpace(paper.Title) == "" {
			continue
		}
		docs = append(docs, paper.toDocument())
	}
	return finalize(docs, s.Name()), nil
}

// Health runs a one-result search.
func (s *SemanticScholar) Health(ctx context.Context) types.HealthReport {
	return searchProbe(ctx, s, "machine learning")
}

func (p semanticPaper) toDocument() types.Document {
	d := types.Document{
		ID:            p.PaperID,
		Title:         cleanText(p.Title),
		Abstract:      cleanText(p.Abstract),
		Venue:         p.venue(),
		DOI:           normalizeDOI(p.ExternalIDs.DOI),
		URL:           p.URL,
		CitationCount: p.CitationCount,
		DocumentType:  semanticDocumentType(p.PublicationTypes),
		Subjects:      dedupeStrings(p.FieldsOfStudy),
	}
	if p.Journal != nil {
		d.Journal = strings.TrimSpace(p.Journal.Name)
	}

	d.PublicationDate = parseDate(p.PublicationDate)
	if d.PublicationDate.IsZero() {
		d.PublicationDate = yearDate(p.Year)
	}

	for _, a := range p.Authors {
		if a.Name != "" {
			d.Authors = append(d.Authors, types.Author{Name: a.Name})
		}
	}

	if p.OpenAccessPDF != nil {
		d.PDFURL = p.OpenAccessPDF.URL
	}
	arxivLike := strings.Contains(strings.ToLower(p.URL), "arxiv.org") || p.ExternalIDs.ArXiv != ""
	if p.IsOpenAccess || d.PDFURL != "" || arxivLike {
		d.Access = types.AccessOpen
	} else {
		d.Access = types.AccessRestricted
	}

	d.RawMetadata = map[string]any{
		"paper_id":          p.PaperID,
		"external_ids":      p.ExternalIDs,
		"publication_types": p.PublicationTypes,
	}
	return d
}

// venue prefers the structured publication venue, then the journal, then the free-text venue.
func (p semanticPaper) venue() string {
	if p.PublicationVenue != nil && p.PublicationVenue.Name != "" {
		return p.PublicationVenue.Name
	}
	if p.Journal != nil && p.Journal.Name != "" {
		return p.Journal.Name
	}
	return strings.TrimSpace(p.Venue)
}

func semanticDocumentType(pubTypes []string) string {
	has := func(t string) bool {
		for _, p := range pubTypes {
			if p == t {
				return true
			}
		}
		return false
	}
	switch {
	case has("JournalArticle"):
		return "journal_article"
	case has("Conference"):
		return "conference_paper"
	case has("Review"):
		return "review"
	case has("Book"):
		return "book"
	case has("BookSection"):
		return "book_chapter"
	default:
		return "article"
	}
}

// buildYearRange returns a Semantic Scholar year filter string (e.g. "2020-2023").
func buildYearRange(from, to int) string {
	switch {
	case from > 0 && to > 0:
		return fmt.Sprintf("%d-%d", from, to)
	case from > 0:
		return fmt.Sprintf("%d-", from)
	case to > 0:
		return fmt.Sprintf("-%d", to)
	default:
		return ""
	}
}

// Semantic Scholar API JSON structures.
type semanticResponse struct {
	Total  int             `json:"total"`
	Offset int             `json:"offset"`
	Data   []semanticPaper `json:"data"`
}

type semanticPaper struct {
	PaperID          string              `json:"paperId"`
	Title            string              `json:"title"`
	Abstract         string              `json:"abstract"`
	Year             int                 `json:"year"`
	PublicationDate  string              `json:"publicationDate"`
	URL              string              `json:"url"`
	Venue            string              `json:"venue"`
	CitationCount    int                 `json:"citationCount"`
	IsOpenAccess     bool                `json:"isOpenAccess"`
	OpenAccessPDF    *semanticPDF        `json:"openAccessPdf"`
	Journal          *semanticNamed      `json:"journal"`
	PublicationVenue *semanticNamed      `json:"publicationVenue"`
	PublicationTypes []string            `json:"publicationTypes"`
	FieldsOfStudy    []string            `json:"fieldsOfStudy"`
	Authors          []semanticAuthor    `json:"authors"`
	ExternalIDs      semanticExternalIDs `json:"externalIds"`
}

type semanticAuthor struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
}

type semanticPDF struct {
	URL    string `json:"url"`
	Status string `json:"status"`
}

type semanticNamed struct {
	Name string `json:"name"`
}

type semanticExternalIDs struct {
	DOI      string `json:"DOI,omitempty"`
	ArXiv    string `json:"ArXiv,omitempty"`
	CorpusID int    `json:"CorpusId,omitempty"`
}
