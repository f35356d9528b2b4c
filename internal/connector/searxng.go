// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// SearxNG queries a self-hosted SearxNG meta search instance in the
// science category. SearxNG carries no licensing data, so the access
// classification for every result comes from configuration.
type SearxNG struct {
	Client    *http.Client
	BaseURL   string
	UserAgent string
	Config    types.SearxNGConfig
}

// NewSearxNG returns a SearxNG connector. cfg.BaseURL is required.
func NewSearxNG(client *http.Client, cfg types.SearxNGConfig, userAgent string) (*SearxNG, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("searxng base_url is required when searxng is enabled")
	}
	switch cfg.Access {
	case "":
		cfg.Access = types.AccessUnknown
	case types.AccessOpen, types.AccessRestricted, types.AccessLicensed, types.AccessUnknown:
	default:
		return nil, fmt.Errorf("searxng access %q: want open_access, restricted, licensed, or unknown", cfg.Access)
	}
	return &SearxNG{Client: client, BaseURL: base, UserAgent: userAgent, Config: cfg}, nil
}

// Name returns the connector identifier.
func (s *SearxNG) Name() string { return "searxng" }

// Search queries the SearxNG JSON API.
func (s *SearxNG) Search(ctx context.Context, r Request) ([]types.Document, error) {
	q := strings.TrimSpace(r.Query)
	if q == "" {
		return nil, fmt.Errorf("empty SearxNG query")
	}

	params := url.Values{
		"q":          {q},
		"categories": {"science"},
		"pageno":     {"1"},
		"language":   {"all"},
		"safesearch": {"0"},
		"format":     {"json"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", s.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("SearxNG request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("SearxNG returned HTTP %d", resp.StatusCode)
	}

	var sr searxResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("parsing SearxNG response: %w", err)
	}

	limit := r.limit(0)
	docs := make([]types.Document, 0, len(sr.Results))
	for _, res := range sr.Results {
		if len(docs) >= limit {
			break
		}
		if !s.keep(res) {
			continue
		}
		d := s.toDocument(res)
		if !inYears(d, r) {
			continue
		}
		docs = append(docs, d)
	}
	return finalize(docs, s.Name()), nil
}

// Health checks the instance's /healthz endpoint.
func (s *SearxNG) Health(ctx context.Context) types.HealthReport {
	return probe(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"/healthz", nil)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		resp, err := s.Client.Do(req)
		if err != nil {
			return fmt.Errorf("searxng health check failed: %w", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("searxng health check returned HTTP %d", resp.StatusCode)
		}
		return nil
	})
}

func (s *SearxNG) keep(r searxResult) bool {
	if strings.TrimSpace(r.Title) == "" {
		return false
	}
	if s.Config.RequireAuthors && len(r.Authors) == 0 {
		return false
	}
	if s.Config.RequireAbstract && strings.TrimSpace(r.Content) == "" {
		return false
	}
	if s.Config.RequirePublisher && strings.TrimSpace(r.Publisher) == "" {
		return false
	}
	return true
}

func (s *SearxNG) toDocument(r searxResult) types.Document {
	d := types.Document{
		ID:              r.URL,
		Title:           cleanText(r.Title),
		Abstract:        cleanText(r.Content),
		PublicationDate: parseDate(r.PublishedDate),
		Venue:           strings.TrimSpace(r.Publisher),
		Journal:         strings.TrimSpace(r.Journal),
		DOI:             normalizeDOI(r.DOI),
		URL:             r.URL,
		PDFURL:          r.PDFURL,
		Access:          s.Config.Access,
		DocumentType:    r.Type,
		Keywords:        dedupeStrings(r.Tags),
	}
	if d.DOI == "" {
		d.DOI = extractDOI(r.URL)
	}
	if d.Venue == "" {
		d.Venue = d.Journal
	}
	for _, name := range r.Authors {
		if name = strings.TrimSpace(name); name != "" {
			d.Authors = append(d.Authors, types.Author{Name: name})
		}
	}
	d.RawMetadata = map[string]any{
		"engine":    r.Engine,
		"publisher": r.Publisher,
		"isbn":      r.ISBN,
	}
	return d
}

// inYears applies the request's year window. SearxNG has no server-side
// date filter; undated results are kept.
func inYears(d types.Document, r Request) bool {
	y := d.Year()
	if y == 0 {
		return true
	}
	return (r.YearMin == 0 || y >= r.YearMin) && (r.YearMax == 0 || y <= r.YearMax)
}

// SearxNG JSON API structures.
type searxResponse struct {
	Results []searxResult `json:"results"`
}

type searxResult struct {
	URL           string   `json:"url"`
	Title         string   `json:"title"`
	Content       string   `json:"content"`
	PublishedDate string   `json:"publishedDate"`
	DOI           string   `json:"doi"`
	Authors       []string `json:"authors"`
	Journal       string   `json:"journal"`
	Publisher     string   `json:"publisher"`
	Tags          []string `json:"tags"`
	PDFURL        string   `json:"pdf_url"`
	Type          string   `json:"type"`
	ISBN          []string `json:"isbn"`
	Engine        string   `json:"engine"`
}
