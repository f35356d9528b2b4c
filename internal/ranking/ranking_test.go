// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ranking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-assistant/pkg/types"
)

var fixedNow = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func TestRecencyScore(t *testing.T) {
	tests := []struct {
		name string
		date time.Time
		want float64
	}{
		{"unknown", time.Time{}, 0.5},
		{"future", fixedNow.AddDate(0, 1, 0), 1.0},
		{"six months", fixedNow.AddDate(0, -6, 0), 1.0},
		{"eighteen months", fixedNow.AddDate(0, -18, 0), 0.8},
		{"four years", fixedNow.AddDate(-4, 0, 0), 0.6},
		{"ten years", fixedNow.AddDate(-10, 0, 0), 0.4},
		{"thirty years", fixedNow.AddDate(-30, 0, 0), 0.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RecencyScore(tt.date, fixedNow))
		})
	}
}

func TestCitationScore(t *testing.T) {
	tests := []struct {
		count int
		want  float64
	}{
		{-3, 0.2}, {0, 0.2}, {1, 0.4}, {9, 0.4}, {10, 0.6}, {99, 0.6},
		{100, 0.8}, {499, 0.8}, {500, 1.0}, {100000, 1.0},
	}
	for _, tt := range tests {
		if got := CitationScore(tt.count); got != tt.want {
			t.Errorf("CitationScore(%d) = %v, want %v", tt.count, got, tt.want)
		}
	}
}

func TestComposite(t *testing.T) {
	w := types.DefaultWeights()
	all := types.ComponentScores{Lexical: 1, Semantic: 1, Citation: 1, Recency: 1}
	assert.InDelta(t, 1.0, Composite(all, w), 1e-9)
	assert.Equal(t, 0.0, Composite(types.ComponentScores{}, w))

	c := types.ComponentScores{Lexical: 0.5, Citation: 0.4, Recency: 0.6}
	want := (0.35*0.5 + 0.15*0.4 + 0.15*0.6) / 1.0
	assert.InDelta(t, want, Composite(c, w), 1e-9)

	// Weights that do not sum to one are normalized.
	doubled := types.ScoreWeights{Lexical: 0.7, Semantic: 0.7, Citation: 0.3, Recency: 0.3}
	assert.InDelta(t, Composite(c, w), Composite(c, doubled), 1e-9)

	assert.Equal(t, 0.0, Composite(all, types.ScoreWeights{}))
}

func TestCompositeMonotonic(t *testing.T) {
	w := types.DefaultWeights()
	base := types.ComponentScores{Lexical: 0.2, Semantic: 0.3, Citation: 0.4, Recency: 0.5}
	bumps := []func(*types.ComponentScores){
		func(c *types.ComponentScores) { c.Lexical += 0.1 },
		func(c *types.ComponentScores) { c.Semantic += 0.1 },
		func(c *types.ComponentScores) { c.Citation += 0.1 },
		func(c *types.ComponentScores) { c.Recency += 0.1 },
	}
	for i, bump := range bumps {
		c := base
		bump(&c)
		if Composite(c, w) < Composite(base, w) {
			t.Errorf("bump %d decreased composite", i)
		}
	}
}

func TestClipUnit(t *testing.T) {
	assert.Equal(t, 0.0, ClipUnit(-0.4))
	assert.Equal(t, 1.0, ClipUnit(1.7))
	assert.Equal(t, 0.25, ClipUnit(0.25))
}

func lexicalPool() []types.Document {
	return []types.Document{
		{Title: "Cooking with cast iron", Abstract: "Recipes for skillets."},
		{Title: "Graph neural networks", Abstract: "We study graph neural networks for molecules."},
		{Title: "A survey of neural methods", Abstract: "Networks of many kinds."},
	}
}

func TestBleveScorer(t *testing.T) {
	scores, err := BleveScorer{}.Score(context.Background(), "graph neural networks", lexicalPool())
	require.NoError(t, err)
	require.Len(t, scores, 3)

	assert.Equal(t, 0.0, scores[0])
	assert.Equal(t, 1.0, scores[1], "best match is normalized to 1")
	assert.Greater(t, scores[2], 0.0)
	assert.Less(t, scores[2], scores[1])

	empty, err := BleveScorer{}.Score(context.Background(), "anything", nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestOverlapScorer(t *testing.T) {
	scores, err := OverlapScorer{}.Score(context.Background(), "the graph neural networks", lexicalPool())
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2.0 / 3.0}, scores)

	scores, err = OverlapScorer{}.Score(context.Background(), "the of", lexicalPool())
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, scores)
}

type failingScorer struct{}

func (failingScorer) Score(context.Context, string, []types.Document) ([]float64, error) {
	return nil, errors.New("index unavailable")
}

func newTestScorer() *Scorer {
	s := NewScorer(types.DefaultWeights(), nil)
	s.Now = func() time.Time { return fixedNow }
	return s
}

func TestScorerScore(t *testing.T) {
	s := newTestScorer()
	docs := []types.Document{
		{Title: "Graph neural networks", CitationCount: 600, PublicationDate: fixedNow.AddDate(0, -2, 0)},
		{Title: "Unrelated", CitationCount: 0},
	}
	got := s.Score(context.Background(), "graph neural networks", docs, []float64{0.9, -0.2})
	require.Len(t, got, 2)

	assert.Equal(t, "Graph neural networks", got[0].Title, "input order kept")
	assert.Equal(t, 1.0, got[0].Scores.Citation)
	assert.Equal(t, 1.0, got[0].Scores.Recency)
	assert.Equal(t, 0.9, got[0].Scores.Semantic)
	assert.Equal(t, 0.0, got[1].Scores.Semantic, "negative cosine clipped")
	assert.Equal(t, 0.5, got[1].Scores.Recency)

	for _, d := range got {
		assert.GreaterOrEqual(t, d.RelevanceScore, 0.0)
		assert.LessOrEqual(t, d.RelevanceScore, 1.0)
		assert.InDelta(t, Composite(d.Scores, s.Weights), d.RelevanceScore, 1e-12)
	}
	assert.Greater(t, got[0].RelevanceScore, got[1].RelevanceScore)
}

func TestScorerSemanticMismatch(t *testing.T) {
	s := newTestScorer()
	got := s.Score(context.Background(), "q", []types.Document{{Title: "q"}, {Title: "r"}}, []float64{1})
	for _, d := range got {
		assert.Equal(t, 0.0, d.Scores.Semantic)
	}
}

func TestScorerLexicalFallback(t *testing.T) {
	s := newTestScorer()
	s.Lexical = failingScorer{}
	got := s.Score(context.Background(), "graph neural networks", lexicalPool(), nil)
	assert.Equal(t, 1.0, got[1].Scores.Lexical)
	assert.Equal(t, 0.0, got[0].Scores.Lexical)

	s.Fallback = failingScorer{}
	got = s.Score(context.Background(), "graph neural networks", lexicalPool(), nil)
	for _, d := range got {
		assert.Equal(t, 0.0, d.Scores.Lexical)
	}
}

func TestNewScorerInvalidWeights(t *testing.T) {
	s := NewScorer(types.ScoreWeights{Lexical: -1}, nil)
	assert.Equal(t, types.DefaultWeights(), s.Weights)
}

func TestSort(t *testing.T) {
	old := time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	docs := []types.ScoredDocument{
		{Document: types.Document{ID: "a", PublicationDate: old}, RelevanceScore: 0.5},
		{Document: types.Document{ID: "b"}, RelevanceScore: 0.9},
		{Document: types.Document{ID: "c", PublicationDate: recent}, RelevanceScore: 0.5},
		{Document: types.Document{ID: "d"}, RelevanceScore: 0.5},
		{Document: types.Document{ID: "e"}, RelevanceScore: 0.5},
	}
	Sort(docs)

	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	assert.Equal(t, []string{"b", "c", "a", "d", "e"}, ids)
}

func TestTruncate(t *testing.T) {
	docs := make([]types.ScoredDocument, 5)
	assert.Len(t, Truncate(docs, 3), 3)
	assert.Len(t, Truncate(docs, 10), 5)
	assert.Len(t, Truncate(docs, 0), 5)
}

func TestRank(t *testing.T) {
	s := newTestScorer()
	got := s.Rank(context.Background(), "graph neural networks", lexicalPool(), nil, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "Graph neural networks", got[0].Title)
	assert.GreaterOrEqual(t, got[0].RelevanceScore, got[1].RelevanceScore)
}
