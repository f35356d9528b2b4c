// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package expansion

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"
)

// Thesaurus maps a lowercase phrase to its domain synonyms.
type Thesaurus map[string][]string

// DefaultThesaurus returns the built-in academic synonym table.
func DefaultThesaurus() Thesaurus {
	return Thesaurus{
		"machine learning":        {"artificial intelligence", "AI", "ML", "deep learning"},
		"artificial intelligence": {"machine learning", "AI", "ML", "neural networks"},
		"neural networks":         {"deep learning", "artificial neural networks", "ANN"},
		"climate change":          {"global warming", "climate crisis", "environmental change"},
		"renewable energy":        {"clean energy", "sustainable energy", "green energy"},
		"covid":                   {"coronavirus", "sars-cov-2", "pandemic"},
		"cancer":                  {"oncology", "tumor", "neoplasm", "malignancy"},
		"diabetes":                {"diabetes mellitus", "diabetic", "hyperglycemia"},
	}
}

// LoadThesaurus reads a YAML mapping of phrase to synonym list. Keys are
// lowercased.
func LoadThesaurus(path string) (Thesaurus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading thesaurus %s: %w", path, err)
	}
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing thesaurus %s: %w", path, err)
	}
	t := make(Thesaurus, len(raw))
	for k, v := range raw {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		t[k] = append(t[k], v...)
	}
	return t, nil
}

// Synonyms returns the synonyms of every phrase contained in query, in
// sorted phrase order, deduplicated and capped at max.
func (t Thesaurus) Synonyms(query string, max int) []string {
	q := strings.ToLower(query)
	phrases := make([]string, 0, len(t))
	for p := range t {
		phrases = append(phrases, p)
	}
	sort.Strings(phrases)

	seen := make(map[string]bool)
	out := []string{}
	for _, p := range phrases {
		if !strings.Contains(q, p) {
			continue
		}
		for _, s := range t[p] {
			key := strings.ToLower(s)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, s)
			if max > 0 && len(out) == max {
				return out
			}
		}
	}
	return out
}
