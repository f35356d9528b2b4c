// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"strings"
	"time"
)

// Unknown is the sentinel stored in optional string fields that a provider
// did not supply.
const Unknown = "unknown"

// AccessType classifies how a document can be read.
type AccessType string

const (
	AccessOpen       AccessType = "open_access"
	AccessLicensed   AccessType = "licensed"
	AccessRestricted AccessType = "restricted"
	AccessUnknown    AccessType = "unknown"
)

// Author is a single document author as reported by a provider.
type Author struct {
	Name        string `json:"name" yaml:"name"`
	Affiliation string `json:"affiliation,omitempty" yaml:"affiliation,omitempty"`
	ORCID       string `json:"orcid,omitempty" yaml:"orcid,omitempty"`
}

// Document is the provider-agnostic representation of one academic work.
// Connectors build Documents from their native schema; every Document
// leaving a connector has SourceProvider and RawMetadata set and uses
// Unknown for missing venue, document type, and access.
type Document struct {
	// ID is the provider's own identifier (arXiv ID, S2 paper ID, OpenAlex work ID, URL).
	ID string `json:"id" yaml:"id"`

	Title    string   `json:"title" yaml:"title"`
	Authors  []Author `json:"authors" yaml:"authors"`
	Abstract string   `json:"abstract" yaml:"abstract"`

	// PublicationDate is zero when the provider gave no usable date.
	PublicationDate time.Time `json:"publication_date,omitzero" yaml:"publication_date,omitempty"`

	Venue   string `json:"venue" yaml:"venue"`
	Journal string `json:"journal,omitempty" yaml:"journal,omitempty"`

	// DOI is bare (no resolver prefix) and may be empty.
	DOI    string `json:"doi,omitempty" yaml:"doi,omitempty"`
	URL    string `json:"url" yaml:"url"`
	PDFURL string `json:"pdf_url,omitempty" yaml:"pdf_url,omitempty"`

	SourceProvider string     `json:"source_provider" yaml:"source_provider"`
	Access         AccessType `json:"access" yaml:"access"`
	CitationCount  int        `json:"citation_count" yaml:"citation_count"`

	Keywords     []string `json:"keywords" yaml:"keywords"`
	Subjects     []string `json:"subjects" yaml:"subjects"`
	DocumentType string   `json:"document_type" yaml:"document_type"`

	// RawMetadata carries provider-specific fields through untouched.
	RawMetadata map[string]any `json:"raw_metadata" yaml:"raw_metadata"`
}

// Year returns the publication year, or 0 when the date is unknown.
func (d Document) Year() int {
	if d.PublicationDate.IsZero() {
		return 0
	}
	return d.PublicationDate.Year()
}

// IsOpenAccess reports whether the document is freely readable.
func (d Document) IsOpenAccess() bool {
	return d.Access == AccessOpen
}

// Text is the title and abstract joined, used for lexical and semantic scoring.
func (d Document) Text() string {
	if d.Abstract == "" {
		return d.Title
	}
	return d.Title + "\n" + d.Abstract
}

// Fill replaces empty optional fields with sentinels and nil collections
// with empty ones. It is safe to call more than once.
func (d *Document) Fill(provider string) {
	if d.SourceProvider == "" {
		d.SourceProvider = provider
	}
	d.Title = strings.TrimSpace(d.Title)
	if d.Venue == "" {
		d.Venue = Unknown
	}
	if d.DocumentType == "" {
		d.DocumentType = Unknown
	}
	if d.Access == "" {
		d.Access = AccessUnknown
	}
	if d.Authors == nil {
		d.Authors = []Author{}
	}
	if d.Keywords == nil {
		d.Keywords = []string{}
	}
	if d.Subjects == nil {
		d.Subjects = []string{}
	}
	if d.RawMetadata == nil {
		d.RawMetadata = map[string]any{}
	}
	if d.CitationCount < 0 {
		d.CitationCount = 0
	}
}

// ComponentScores holds the individual ranking signals, each in [0,1].
type ComponentScores struct {
	Lexical  float64 `json:"lexical" yaml:"lexical"`
	Semantic float64 `json:"semantic" yaml:"semantic"`
	Citation float64 `json:"citation" yaml:"citation"`
	Recency  float64 `json:"recency" yaml:"recency"`
}

// ScoredDocument is a Document with its ranking signals and composite score.
type ScoredDocument struct {
	Document `yaml:",inline"`

	Scores         ComponentScores `json:"scores" yaml:"scores"`
	RelevanceScore float64         `json:"relevance_score" yaml:"relevance_score"`

	// RerankScore is set only when a reranker ordered this document.
	RerankScore *float64 `json:"rerank_score,omitempty" yaml:"rerank_score,omitempty"`
}
