// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ranking turns a pool of documents into ranked ScoredDocuments.
// Each document gets four signals in [0,1] (lexical, semantic, citation,
// recency) that are combined by a weighted mean.
package ranking

import (
	"math"
	"time"

	"github.com/pdiddy/research-assistant/pkg/types"
)

const day = 24 * time.Hour

// recencySteps maps a maximum age to a score; the first step the age is
// under wins.
var recencySteps = []struct {
	under time.Duration
	score float64
}{
	{365 * day, 1.0},
	{2 * 365 * day, 0.8},
	{6 * 365 * day, 0.6},
	{12 * 365 * day, 0.4},
}

const (
	recencyOldest  = 0.2
	recencyUnknown = 0.5
)

// RecencyScore scores a publication date relative to now. A zero date
// scores 0.5; a future date counts as brand new.
func RecencyScore(published, now time.Time) float64 {
	if published.IsZero() {
		return recencyUnknown
	}
	age := now.Sub(published)
	for _, s := range recencySteps {
		if age < s.under {
			return s.score
		}
	}
	return recencyOldest
}

var citationSteps = []struct {
	atLeast int
	score   float64
}{
	{500, 1.0},
	{100, 0.8},
	{10, 0.6},
	{1, 0.4},
}

const citationNone = 0.2

// CitationScore scores a citation count. Zero or unknown scores 0.2.
func CitationScore(count int) float64 {
	for _, s := range citationSteps {
		if count >= s.atLeast {
			return s.score
		}
	}
	return citationNone
}

// ClipUnit clamps v to [0,1]; NaN becomes 0.
func ClipUnit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Composite is the weighted mean of the component scores, clamped to
// [0,1]. It is non-decreasing in every component whose weight is positive.
func Composite(c types.ComponentScores, w types.ScoreWeights) float64 {
	sum := w.Sum()
	if sum <= 0 {
		return 0
	}
	v := (w.Lexical*c.Lexical + w.Semantic*c.Semantic + w.Citation*c.Citation + w.Recency*c.Recency) / sum
	return ClipUnit(v)
}
