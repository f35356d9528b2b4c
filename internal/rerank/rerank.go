// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rerank reorders a ranked candidate list with an external
// cross-encoder. Reranking is optional: without a reranker, or when it
// fails, the incoming order is kept.
package rerank

import (
	"context"

	"github.com/pdiddy/research-assistant/pkg/types"
)

const (
	// MaxCandidates bounds how many documents are sent for reranking.
	MaxCandidates = 50
	// DefaultTopK is the number of documents kept when none is requested.
	DefaultTopK = 10
)

// Reranker returns up to topK of docs reordered by relevance to query,
// with RerankScore set on each.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []types.ScoredDocument, topK int) ([]types.ScoredDocument, error)
}

// Outcome is the result of Apply. Err is set when the reranker failed and
// Documents holds the fallback order.
type Outcome struct {
	Documents []types.ScoredDocument
	Reranked  bool
	Err       error
}

// Apply reranks the first maxCandidates of docs and keeps topK. A nil
// reranker, an empty list, or a reranker error all return docs truncated
// to topK in their incoming order.
func Apply(ctx context.Context, r Reranker, query string, docs []types.ScoredDocument, maxCandidates, topK int) Outcome {
	if maxCandidates <= 0 || maxCandidates > MaxCandidates {
		maxCandidates = MaxCandidates
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > maxCandidates {
		topK = maxCandidates
	}

	candidates := docs
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}
	fallback := truncate(candidates, topK)

	if r == nil || len(candidates) == 0 {
		return Outcome{Documents: fallback}
	}
	out, err := r.Rerank(ctx, query, candidates, topK)
	if err != nil {
		return Outcome{Documents: fallback, Err: err}
	}
	return Outcome{Documents: truncate(out, topK), Reranked: true}
}

func truncate(docs []types.ScoredDocument, n int) []types.ScoredDocument {
	if len(docs) > n {
		docs = docs[:n]
	}
	out := make([]types.ScoredDocument, len(docs))
	copy(out, docs)
	return out
}
