// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ranking

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// Scorer computes component and composite scores for a document pool.
type Scorer struct {
	Weights  types.ScoreWeights
	Lexical  LexicalScorer
	Fallback LexicalScorer
	Logger   *zap.Logger
	Now      func() time.Time
}

// NewScorer returns a Scorer using bleve for lexical relevance with
// token overlap as the fallback. Invalid weights are replaced by the
// defaults.
func NewScorer(weights types.ScoreWeights, logger *zap.Logger) *Scorer {
	if err := weights.Validate(); err != nil {
		weights = types.DefaultWeights()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{
		Weights:  weights,
		Lexical:  BleveScorer{},
		Fallback: OverlapScorer{},
		Logger:   logger,
		Now:      time.Now,
	}
}

// Score returns one ScoredDocument per input document, in input order.
// semantic holds cosine similarities aligned with docs; nil or a length
// mismatch means every semantic score is 0.
func (s *Scorer) Score(ctx context.Context, query string, docs []types.Document, semantic []float64) []types.ScoredDocument {
	out := make([]types.ScoredDocument, len(docs))
	if len(docs) == 0 {
		return out
	}
	lexical := s.lexical(ctx, query, docs)
	if len(semantic) != len(docs) {
		semantic = nil
	}
	now := s.now()

	for i, d := range docs {
		c := types.ComponentScores{
			Lexical:  lexical[i],
			Citation: CitationScore(d.CitationCount),
			Recency:  RecencyScore(d.PublicationDate, now),
		}
		if semantic != nil {
			c.Semantic = ClipUnit(semantic[i])
		}
		out[i] = types.ScoredDocument{
			Document:       d,
			Scores:         c,
			RelevanceScore: Composite(c, s.Weights),
		}
	}
	return out
}

func (s *Scorer) lexical(ctx context.Context, query string, docs []types.Document) []float64 {
	if s.Lexical != nil {
		scores, err := s.Lexical.Score(ctx, query, docs)
		if err == nil && len(scores) == len(docs) {
			return clipAll(scores)
		}
		s.Logger.Warn("lexical scorer failed, using fallback", zap.Error(err))
	}
	if s.Fallback != nil {
		if scores, err := s.Fallback.Score(ctx, query, docs); err == nil && len(scores) == len(docs) {
			return clipAll(scores)
		}
	}
	return make([]float64, len(docs))
}

func (s *Scorer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func clipAll(v []float64) []float64 {
	for i := range v {
		v[i] = ClipUnit(v[i])
	}
	return v
}

// Sort orders docs by relevance descending. Ties go to the more recent
// publication date (undated sorts last), then to the original order.
func Sort(docs []types.ScoredDocument) {
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := docs[i], docs[j]
		if a.RelevanceScore != b.RelevanceScore {
			return a.RelevanceScore > b.RelevanceScore
		}
		return a.PublicationDate.After(b.PublicationDate)
	})
}

// Truncate returns at most n leading documents. n <= 0 returns docs unchanged.
func Truncate(docs []types.ScoredDocument, n int) []types.ScoredDocument {
	if n > 0 && len(docs) > n {
		return docs[:n]
	}
	return docs
}

// Rank scores, sorts, and truncates in one step.
func (s *Scorer) Rank(ctx context.Context, query string, docs []types.Document, semantic []float64, limit int) []types.ScoredDocument {
	scored := s.Score(ctx, query, docs, semantic)
	Sort(scored)
	return Truncate(scored, limit)
}
