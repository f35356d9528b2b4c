// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ranking

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// LexicalScorer scores how well each document's text matches the query.
// The result has one entry per document, each in [0,1].
type LexicalScorer interface {
	Score(ctx context.Context, query string, docs []types.Document) ([]float64, error)
}

// titleBoost weights a title match over an abstract match.
const titleBoost = 2.0

// BleveScorer builds a throwaway in-memory bleve index over the pool and
// runs the query against it. Scores are divided by the best hit's score.
type BleveScorer struct{}

// Score implements LexicalScorer.
func (BleveScorer) Score(ctx context.Context, query string, docs []types.Document) ([]float64, error) {
	scores := make([]float64, len(docs))
	if len(docs) == 0 || strings.TrimSpace(query) == "" {
		return scores, nil
	}

	index, err := bleve.NewMemOnly(poolMapping())
	if err != nil {
		return nil, fmt.Errorf("creating lexical index: %w", err)
	}
	defer index.Close()

	batch := index.NewBatch()
	for i, d := range docs {
		if err := batch.Index(strconv.Itoa(i), map[string]any{
			"title":    d.Title,
			"abstract": d.Abstract,
		}); err != nil {
			return nil, fmt.Errorf("indexing document %d: %w", i, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		return nil, fmt.Errorf("indexing pool: %w", err)
	}

	tq := bleve.NewMatchQuery(query)
	tq.SetField("title")
	tq.SetBoost(titleBoost)
	aq := bleve.NewMatchQuery(query)
	aq.SetField("abstract")

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(tq, aq))
	req.Size = len(docs)
	res, err := index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	var best float64
	for _, hit := range res.Hits {
		if hit.Score > best {
			best = hit.Score
		}
	}
	if best <= 0 {
		return scores, nil
	}
	for _, hit := range res.Hits {
		i, err := strconv.Atoi(hit.ID)
		if err != nil || i < 0 || i >= len(scores) {
			continue
		}
		scores[i] = ClipUnit(hit.Score / best)
	}
	return scores, nil
}

func poolMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("title", text)
	docMapping.AddFieldMappingsAt("abstract", text)
	im.DefaultMapping = docMapping
	return im
}

// OverlapScorer is the fraction of distinct query terms found in the
// document's title or abstract. It needs no index and never fails.
type OverlapScorer struct{}

// Score implements LexicalScorer.
func (OverlapScorer) Score(_ context.Context, query string, docs []types.Document) ([]float64, error) {
	scores := make([]float64, len(docs))
	terms := uniqueTerms(query)
	if len(terms) == 0 {
		return scores, nil
	}
	for i, d := range docs {
		have := make(map[string]bool)
		for _, t := range tokenize(d.Text()) {
			have[t] = true
		}
		matched := 0
		for _, t := range terms {
			if have[t] {
				matched++
			}
		}
		scores[i] = float64(matched) / float64(len(terms))
	}
	return scores, nil
}

var lexicalStopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "is": true, "are": true, "what": true, "how": true,
}

// tokenize lowercases s and splits it on anything that is not a letter or digit.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func uniqueTerms(query string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range tokenize(query) {
		if lexicalStopWords[t] || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
