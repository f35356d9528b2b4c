// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the data structures shared by the retrieval,
// ranking, and streaming layers of research-assistant.
//
// Every value here is created per request. Process-wide state (connector
// registry, backend clients) lives in the packages that own it.
package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxQueryLength is the longest query text accepted.
const MaxQueryLength = 1000

// MaxResultsLimit bounds Query.MaxResults.
const MaxResultsLimit = 100

// ErrInvalidQuery is wrapped by every Query validation failure.
var ErrInvalidQuery = errors.New("invalid query")

// AccessFilter restricts results by access classification.
type AccessFilter string

const (
	// AccessFilterAny keeps every document.
	AccessFilterAny AccessFilter = ""
	// AccessFilterOpen keeps only open-access documents.
	AccessFilterOpen AccessFilter = "open"
	// AccessFilterRestricted keeps everything that is not open access.
	AccessFilterRestricted AccessFilter = "restricted"
)

// Allows reports whether d passes the filter.
func (f AccessFilter) Allows(d Document) bool {
	switch f {
	case AccessFilterOpen:
		return d.IsOpenAccess()
	case AccessFilterRestricted:
		return !d.IsOpenAccess()
	default:
		return true
	}
}

// Query is an immutable search request.
type Query struct {
	Text string `json:"query" yaml:"query"`

	// Databases is an optional provider allowlist. Empty means the configured defaults.
	Databases []string `json:"databases,omitempty" yaml:"databases,omitempty"`

	// MaxResults caps the returned list. Zero means the configured default.
	MaxResults int `json:"max_results,omitempty" yaml:"max_results,omitempty"`

	AccessFilter AccessFilter `json:"access_filter,omitempty" yaml:"access_filter,omitempty"`

	// YearMin and YearMax bound the publication year; zero leaves the side open.
	YearMin int `json:"year_min,omitempty" yaml:"year_min,omitempty"`
	YearMax int `json:"year_max,omitempty" yaml:"year_max,omitempty"`

	Expand   bool `json:"enable_expansion" yaml:"enable_expansion"`
	Semantic bool `json:"enable_semantic" yaml:"enable_semantic"`
}

// IsEmpty reports whether the query has no searchable text.
func (q Query) IsEmpty() bool {
	return strings.TrimSpace(q.Text) == ""
}

// Validate checks the query against the request limits.
func (q Query) Validate() error {
	if q.IsEmpty() {
		return fmt.Errorf("%w: query is empty", ErrInvalidQuery)
	}
	if utf8.RuneCountInString(q.Text) > MaxQueryLength {
		return fmt.Errorf("%w: query exceeds %d characters", ErrInvalidQuery, MaxQueryLength)
	}
	if q.MaxResults < 0 || q.MaxResults > MaxResultsLimit {
		return fmt.Errorf("%w: max_results must be between 1 and %d", ErrInvalidQuery, MaxResultsLimit)
	}
	switch q.AccessFilter {
	case AccessFilterAny, AccessFilterOpen, AccessFilterRestricted:
	default:
		return fmt.Errorf("%w: unknown access_filter %q", ErrInvalidQuery, q.AccessFilter)
	}
	if q.YearMin > 0 && q.YearMax > 0 && q.YearMin > q.YearMax {
		return fmt.Errorf("%w: year_min %d is after year_max %d", ErrInvalidQuery, q.YearMin, q.YearMax)
	}
	return nil
}

// InYearRange reports whether d falls inside the query's year bounds.
// Documents without a date are kept.
func (q Query) InYearRange(d Document) bool {
	y := d.Year()
	if y == 0 {
		return true
	}
	if q.YearMin > 0 && y < q.YearMin {
		return false
	}
	if q.YearMax > 0 && y > q.YearMax {
		return false
	}
	return true
}

// SearchStats summarizes one federated search.
type SearchStats struct {
	// TotalResults is the size of the pool after deduplication, before truncation.
	TotalResults int `json:"total_results" yaml:"total_results"`

	// ResultsPerDatabase counts documents each provider contributed after filtering.
	ResultsPerDatabase map[string]int `json:"results_per_database" yaml:"results_per_database"`

	// FailedDatabases maps provider name to its error message.
	FailedDatabases map[string]string `json:"failed_databases" yaml:"failed_databases"`

	ProvidersQueried   int   `json:"providers_queried" yaml:"providers_queried"`
	ProvidersSucceeded int   `json:"providers_succeeded" yaml:"providers_succeeded"`
	SearchTimeMS       int64 `json:"search_time_ms" yaml:"search_time_ms"`

	QueryExpansionUsed bool `json:"query_expansion_used" yaml:"query_expansion_used"`
	ExpansionDegraded  bool `json:"expansion_degraded" yaml:"expansion_degraded"`
	SemanticSearchUsed bool `json:"semantic_search_used" yaml:"semantic_search_used"`
	SemanticDegraded   bool `json:"semantic_degraded" yaml:"semantic_degraded"`

	DuplicatesRemoved int `json:"duplicates_removed" yaml:"duplicates_removed"`
}

// Degraded reports whether any optional stage fell back.
func (s SearchStats) Degraded() bool {
	return s.ExpansionDegraded || s.SemanticDegraded || len(s.FailedDatabases) > 0
}

// SearchResponse is the ranked result of a federated search.
type SearchResponse struct {
	Query          string           `json:"query" yaml:"query"`
	Results        []ScoredDocument `json:"results" yaml:"results"`
	Stats          SearchStats      `json:"stats" yaml:"stats"`
	RelatedQueries []string         `json:"related_queries,omitempty" yaml:"related_queries,omitempty"`
}

// QueryExpansion holds the alternative phrasings derived from a query.
type QueryExpansion struct {
	Original         string   `json:"original_query" yaml:"original_query"`
	ExpandedQueries  []string `json:"expanded_queries" yaml:"expanded_queries"`
	Synonyms         []string `json:"synonyms" yaml:"synonyms"`
	RelatedTerms     []string `json:"related_terms" yaml:"related_terms"`
	SemanticVariants []string `json:"semantic_variations" yaml:"semantic_variations"`

	// Degraded is set when the generative step failed and only thesaurus output is present.
	Degraded bool `json:"degraded" yaml:"degraded"`
}

// HealthReport is what a connector's health probe observed.
type HealthReport struct {
	Available bool
	Latency   time.Duration
	Err       error
}

// DatabaseStatus is the externally reported health of one provider.
type DatabaseStatus struct {
	Name           string    `json:"name" yaml:"name"`
	Available      bool      `json:"available" yaml:"available"`
	ResponseTimeMS int64     `json:"response_time_ms" yaml:"response_time_ms"`
	ErrorMessage   string    `json:"error_message,omitempty" yaml:"error_message,omitempty"`
	LastChecked    time.Time `json:"last_checked" yaml:"last_checked"`
}

// SearchRecord is one entry in the search history log.
type SearchRecord struct {
	ID                  string    `json:"id" yaml:"id"`
	Query               string    `json:"query" yaml:"query"`
	Timestamp           time.Time `json:"timestamp" yaml:"timestamp"`
	TotalResults        int       `json:"total_results" yaml:"total_results"`
	ResponseTimeMS      int64     `json:"response_time_ms" yaml:"response_time_ms"`
	DatabasesQueried    []string  `json:"databases_queried" yaml:"databases_queried"`
	SuccessfulDatabases []string  `json:"successful_databases" yaml:"successful_databases"`
	FailedDatabases     []string  `json:"failed_databases" yaml:"failed_databases"`
}
