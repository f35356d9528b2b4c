// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package federated

import (
	"io"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// CSLItem is a bibliographic entry in CSL-YAML form, readable by Pandoc
// and reference managers.
type CSLItem struct {
	ID             string    `yaml:"id"`
	Type           string    `yaml:"type"`
	Title          string    `yaml:"title"`
	Author         []CSLName `yaml:"author,omitempty"`
	Abstract       string    `yaml:"abstract,omitempty"`
	Issued         *CSLDate  `yaml:"issued,omitempty"`
	ContainerTitle string    `yaml:"container-title,omitempty"`
	DOI            string    `yaml:"DOI,omitempty"`
	URL            string    `yaml:"URL,omitempty"`
}

// CSLName is a person's name split into family and given parts.
type CSLName struct {
	Family  string `yaml:"family,omitempty"`
	Given   string `yaml:"given,omitempty"`
	Literal string `yaml:"literal,omitempty"`
}

// CSLDate holds date-parts.
type CSLDate struct {
	DateParts [][]int `yaml:"date-parts"`
}

// FormatCSL writes the ranked results as a CSL-YAML list.
func FormatCSL(resp types.SearchResponse, w io.Writer) error {
	items := make([]CSLItem, len(resp.Results))
	for i, r := range resp.Results {
		items[i] = toCSLItem(r.Document)
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(items)
}

func toCSLItem(d types.Document) CSLItem {
	item := CSLItem{
		ID:       cslID(d),
		Type:     cslType(d.DocumentType),
		Title:    d.Title,
		Abstract: d.Abstract,
		DOI:      d.DOI,
		URL:      d.URL,
	}
	for _, a := range d.Authors {
		if n := parseAuthorName(a.Name); n != (CSLName{}) {
			item.Author = append(item.Author, n)
		}
	}
	if !d.PublicationDate.IsZero() {
		p := d.PublicationDate
		item.Issued = &CSLDate{DateParts: [][]int{{p.Year(), int(p.Month()), p.Day()}}}
	}
	switch {
	case d.Journal != "":
		item.ContainerTitle = d.Journal
	case d.Venue != "" && d.Venue != types.Unknown:
		item.ContainerTitle = d.Venue
	}
	return item
}

// cslID prefers the DOI so the same work gets the same key across providers.
func cslID(d types.Document) string {
	if d.DOI != "" {
		return d.DOI
	}
	return d.SourceProvider + ":" + d.ID
}

func cslType(docType string) string {
	t := strings.NewReplacer("_", "-", " ", "-").Replace(strings.ToLower(docType))
	switch t {
	case "journal-article", "article-journal", "journal":
		return "article-journal"
	case "conference-paper", "proceedings-article", "conference":
		return "paper-conference"
	case "book":
		return "book"
	case "book-chapter":
		return "chapter"
	case "dissertation", "thesis":
		return "thesis"
	case "review":
		return "review"
	default:
		return "article"
	}
}

// parseAuthorName splits on the last space: everything before is given,
// the last token is family. Single-token names use the literal field.
func parseAuthorName(name string) CSLName {
	name = strings.TrimSpace(name)
	if name == "" {
		return CSLName{}
	}
	idx := strings.LastIndex(name, " ")
	if idx < 0 {
		return CSLName{Literal: name}
	}
	return CSLName{Given: name[:idx], Family: name[idx+1:]}
}
