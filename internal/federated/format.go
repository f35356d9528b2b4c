// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package federated

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// FormatTable writes a ranked response as a human-readable table.
func FormatTable(resp types.SearchResponse, w io.Writer) {
	if len(resp.Results) == 0 {
		fmt.Fprintln(w, "No results found.")
		writeFailures(resp.Stats, w)
		return
	}

	fmt.Fprintf(w, "%-4s  %-60s  %-20s  %-4s  %-6s  %-5s  %s\n",
		"Rank", "Title", "Authors", "Year", "Score", "Cites", "Source")
	fmt.Fprintln(w, strings.Repeat("-", 118))

	for i, r := range resp.Results {
		year := ""
		if y := r.Year(); y > 0 {
			year = fmt.Sprintf("%d", y)
		}
		fmt.Fprintf(w, "%-4d  %-60s  %-20s  %-4s  %-6.3f  %-5d  %s\n",
			i+1, truncate(r.Title, 60), formatAuthors(r.Authors), year,
			r.RelevanceScore, r.CitationCount, r.SourceProvider)
	}

	s := resp.Stats
	fmt.Fprintf(w, "\n%d of %d results from %d/%d databases in %dms",
		len(resp.Results), s.TotalResults, s.ProvidersSucceeded, s.ProvidersQueried, s.SearchTimeMS)
	if s.DuplicatesRemoved > 0 {
		fmt.Fprintf(w, " (%d duplicates removed)", s.DuplicatesRemoved)
	}
	fmt.Fprintln(w)
	writeFailures(s, w)
}

func writeFailures(s types.SearchStats, w io.Writer) {
	names := make([]string, 0, len(s.FailedDatabases))
	for n := range s.FailedDatabases {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(w, "warning: %s failed: %s\n", n, s.FailedDatabases[n])
	}
}

// FormatJSON writes the full response as indented JSON.
func FormatJSON(resp types.SearchResponse, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// FormatYAML writes the full response as YAML.
func FormatYAML(resp types.SearchResponse, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(resp); err != nil {
		return err
	}
	return enc.Close()
}

func formatAuthors(authors []types.Author) string {
	switch len(authors) {
	case 0:
		return ""
	case 1:
		return truncate(authors[0].Name, 20)
	default:
		return truncate(authors[0].Name, 14) + " et al."
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
