// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package embedding provides text embeddings for semantic similarity.
// Backends are OpenAI-compatible APIs, a local Ollama server, and a
// deterministic hash embedder; results can be cached in memory or Redis.
package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

// Embedder produces one vector per input text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Name() string
}

const defaultHashDimensions = 384

// HashEmbedder derives a unit vector from a hash of the text. The same
// text always gets the same vector. It needs no network and is meant for
// tests and offline use; it carries no semantic meaning.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder returns a HashEmbedder of the given dimension (default 384).
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = defaultHashDimensions
	}
	return &HashEmbedder{dims: dims}
}

// Embed implements Embedder.
func (e *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *HashEmbedder) vector(text string) []float32 {
	h := hashString(text)
	v := make([]float32, e.dims)
	for i := range v {
		v[i] = float32(math.Sin(float64(h*uint64(i+1)))*0.1 + 0.01)
	}
	normalize(v)
	return v
}

// Dimensions implements Embedder.
func (e *HashEmbedder) Dimensions() int { return e.dims }

// Name implements Embedder.
func (e *HashEmbedder) Name() string { return "hash" }

func hashString(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64() % 100003
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= norm
	}
}

// Cosine returns the cosine similarity of a and b. Mismatched lengths or
// a zero vector give 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
