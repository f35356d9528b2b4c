// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/research-assistant/internal/httputil"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// openAlexSearchBase is the OpenAlex Works search endpoint. Declared as a
// var so tests can substitute an httptest server.
var openAlexSearchBase = "https://api.openalex.org/works"

const openAlexMaxResults = 200

// OpenAlex queries the OpenAlex Works API.
type OpenAlex struct {
	Retrier *httputil.Retrier
	// Email is sent as mailto parameter for polite pool access.
	Email     string
	UserAgent string
}

// NewOpenAlex returns an OpenAlex connector. email is optional.
func NewOpenAlex(retrier *httputil.Retrier, email, userAgent string) *OpenAlex {
	return &OpenAlex{Retrier: retrier, Email: email, UserAgent: userAgent}
}

// Name returns the connector identifier.
func (o *OpenAlex) Name() string { return "openalex" }

// Search queries the OpenAlex API.
func (o *OpenAlex) Search(ctx context.Context, r Request) ([]types.Document, error) {
	searchText := strings.TrimSpace(r.Query)
	if searchText == "" {
		return nil, fmt.Errorf("empty OpenAlex query")
	}

	params := url.Values{
		"search":   {searchText},
		"per_page": {strconv.Itoa(r.limit(openAlexMaxResults))},
		"page":     {"1"},
	}
	if f := buildOpenAlexFilter(r.YearMin, r.YearMax); f != "" {
		params.Set("filter", f)
	}
	if o.Email != "" {
		params.Set("mailto", o.Email)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, openAlexSearchBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", o.UserAgent)

	resp, err := o.Retrier.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("OpenAlex API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OpenAlex API returned HTTP %d", resp.StatusCode)
	}

	var oar openAlexResponse
	if err := json.NewDecoder(resp.Body).Decode(&oar); err != nil {
		return nil, fmt.Errorf("parsing OpenAlex response: %w", err)
	}

	docs := make([]types.Document, 0, len(oar.Results))
	for _, work := range oar.Results {
		if strings.TrimSpace(work.Title) == "" {
			continue
		}
		docs = append(docs, work.toDocument())
	}
	return finalize(docs, o.Name()), nil
}

// Health runs a one-result search.
func (o *OpenAlex) Health(ctx context.Context) types.HealthReport {
	return searchProbe(ctx, o, "machine learning")
}

func (w openAlexWork) toDocument() types.Document {
	d := types.Document{
		ID:            w.ID,
		Title:         cleanText(w.Title),
		Abstract:      cleanText(reconstructAbstract(w.AbstractInvertedIndex)),
		DOI:           normalizeDOI(w.DOI),
		URL:           w.ID,
		CitationCount: w.CitedByCount,
		DocumentType:  w.Type,
	}
	if d.DOI != "" {
		d.URL = "https://doi.org/" + d.DOI
	}

	d.PublicationDate = parseDate(w.PublicationDate)
	if d.PublicationDate.IsZero() {
		d.PublicationDate = yearDate(w.PublicationYear)
	}

	for _, authorship := range w.Authorships {
		if authorship.Author.DisplayName == "" {
			continue
		}
		a := types.Author{
			Name:  authorship.Author.DisplayName,
			ORCID: strings.TrimPrefix(authorship.Author.ORCID, "https://orcid.org/"),
		}
		if len(authorship.Institutions) > 0 {
			a.Affiliation = authorship.Institutions[0].DisplayName
		}
		d.Authors = append(d.Authors, a)
	}

	if src := w.PrimaryLocation.Source; src != nil {
		d.Venue = src.DisplayName
		if src.Type == "journal" {
			d.Journal = src.DisplayName
		}
	}
	d.PDFURL = w.PrimaryLocation.PDFURL

	if w.OpenAccess.IsOA {
		d.Access = types.AccessOpen
		if d.PDFURL == "" {
			d.PDFURL = w.OpenAccess.OAURL
		}
	} else {
		d.Access = types.AccessRestricted
	}

	var keywords []string
	for _, k := range w.Keywords {
		keywords = append(keywords, k.DisplayName)
	}
	d.Keywords = dedupeStrings(keywords)

	var subjects []string
	for _, c := range w.Concepts {
		if c.Level <= 1 {
			subjects = append(subjects, c.DisplayName)
		}
	}
	d.Subjects = dedupeStrings(subjects)

	d.RawMetadata = map[string]any{
		"openalex_id": w.ID,
		"oa_status":   w.OpenAccess.OAStatus,
		"type":        w.Type,
	}
	return d
}

// buildOpenAlexFilter returns a publication_year filter (e.g. "publication_year:2020-2023").
func buildOpenAlexFilter(from, to int) string {
	switch {
	case from > 0 && to > 0:
		return fmt.Sprintf("publication_year:%d-%d", from, to)
	case from > 0:
		return fmt.Sprintf("publication_year:>%d", from-1)
	case to > 0:
		return fmt.Sprintf("publication_year:<%d", to+1)
	default:
		return ""
	}
}

// reconstructAbstract converts OpenAlex's abstract_inverted_index back to
// plain text. The inverted index maps each word to a list of positions
// where that word appears.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}

// OpenAlex API JSON structures.
type openAlexResponse struct {
	Meta    openAlexMeta   `json:"meta"`
	Results []openAlexWork `json:"results"`
}

type openAlexMeta struct {
	Count   int `json:"count"`
	PerPage int `json:"per_page"`
	Page    int `json:"page"`
}

type openAlexWork struct {
	ID                    string               `json:"id"`
	Title                 string               `json:"title"`
	DOI                   string               `json:"doi"`
	Type                  string               `json:"type"`
	PublicationDate       string               `json:"publication_date"`
	PublicationYear       int                  `json:"publication_year"`
	CitedByCount          int                  `json:"cited_by_count"`
	Authorships           []openAlexAuthorship `json:"authorships"`
	AbstractInvertedIndex map[string][]int     `json:"abstract_inverted_index"`
	OpenAccess            openAlexOpenAccess   `json:"open_access"`
	PrimaryLocation       openAlexLocation     `json:"primary_location"`
	Keywords              []openAlexNamed      `json:"keywords"`
	Concepts              []openAlexConcept    `json:"concepts"`
}

type openAlexAuthorship struct {
	Author       openAlexAuthor  `json:"author"`
	Institutions []openAlexNamed `json:"institutions"`
}

type openAlexAuthor struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	ORCID       string `json:"orcid"`
}

type openAlexNamed struct {
	DisplayName string `json:"display_name"`
}

type openAlexConcept struct {
	DisplayName string `json:"display_name"`
	Level       int    `json:"level"`
}

type openAlexLocation struct {
	PDFURL string          `json:"pdf_url"`
	Source *openAlexSource `json:"source"`
}

type openAlexSource struct {
	DisplayName string `json:"display_name"`
	Type        string `json:"type"`
}

type openAlexOpenAccess struct {
	IsOA     bool   `json:"is_oa"`
	OAStatus string `json:"oa_status"`
	OAURL    string `json:"oa_url"`
}
