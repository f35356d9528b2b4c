// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package embedding

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/metrics"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// Service wraps an Embedder with a cache and computes query/document
// similarity.
type Service struct {
	embedder Embedder
	cache    Cache
	logger   *zap.Logger
	metrics  *metrics.Recorder
}

// NewService returns a Service. cache, logger, and m may be nil.
func NewService(e Embedder, cache Cache, logger *zap.Logger, m *metrics.Recorder) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{embedder: e, cache: cache, logger: logger, metrics: m}
}

// New builds a Service from configuration. Provider "none" (or empty)
// returns a nil Service, which callers treat as semantic scoring disabled.
// A Redis cache that cannot be reached falls back to the memory cache.
func New(ctx context.Context, cfg types.EmbeddingConfig, client *http.Client, logger *zap.Logger, m *metrics.Recorder) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var e Embedder
	switch strings.ToLower(cfg.Provider) {
	case "", types.EmbedderNone:
		return nil, nil
	case types.EmbedderOpenAI:
		oe, err := NewOpenAIEmbedder(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Dimensions, client)
		if err != nil {
			return nil, err
		}
		e = oe
	case types.EmbedderOllama:
		e = NewOllamaEmbedder(cfg.BaseURL, cfg.Model, cfg.Dimensions, client)
	case types.EmbedderHash:
		e = NewHashEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}

	var cache Cache
	switch strings.ToLower(cfg.Cache) {
	case "none":
	case "redis":
		rc, err := NewRedisCache(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.CacheTTL)
		if err != nil {
			logger.Warn("redis embedding cache unavailable, using memory cache", zap.Error(err))
			cache = NewLRUCache(cfg.CacheSize)
		} else {
			cache = rc
		}
	case "", "memory":
		cache = NewLRUCache(cfg.CacheSize)
	default:
		return nil, fmt.Errorf("unknown embedding cache %q", cfg.Cache)
	}

	logger.Info("embedding service ready",
		zap.String("embedder", e.Name()),
		zap.Int("dimensions", e.Dimensions()),
		zap.String("cache", cacheName(cache)))
	return NewService(e, cache, logger, m), nil
}

func cacheName(c Cache) string {
	if c == nil {
		return "none"
	}
	return c.Name()
}

// Name returns the underlying embedder's name.
func (s *Service) Name() string { return s.embedder.Name() }

// Embed returns one vector per text, in order. Empty texts get a zero
// vector without calling the embedder. Only cache misses are sent to the
// embedder, in a single batch.
func (s *Service) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var (
		missIdx   []int
		missTexts []string
	)
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			out[i] = make([]float32, s.embedder.Dimensions())
			continue
		}
		if s.cache != nil {
			v, ok := s.cache.Get(ctx, CacheKey(s.embedder.Name(), t))
			s.metrics.CacheLookup("embedding_"+s.cache.Name(), ok)
			if ok {
				out[i] = v
				continue
			}
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := s.embedder.Embed(ctx, missTexts)
	if err != nil {
		return nil, fmt.Errorf("embedding %d texts with %s: %w", len(missTexts), s.embedder.Name(), err)
	}
	if len(vecs) != len(missTexts) {
		return nil, fmt.Errorf("%s returned %d vectors for %d texts", s.embedder.Name(), len(vecs), len(missTexts))
	}
	for j, i := range missIdx {
		out[i] = vecs[j]
		if s.cache != nil {
			s.cache.Set(ctx, CacheKey(s.embedder.Name(), missTexts[j]), vecs[j])
		}
	}
	return out, nil
}

// Similarity holds one semantic score per document. Degraded is set when
// embedding failed and every score is zero.
type Similarity struct {
	Scores   []float64
	Degraded bool
}

// SemanticSimilarity embeds the query and each text and returns their
// cosine similarity in [-1,1]. Any embedding failure degrades the whole
// batch to zero scores rather than failing the caller. A nil Service is
// always degraded.
func (s *Service) SemanticSimilarity(ctx context.Context, query string, texts []string) Similarity {
	scores := make([]float64, len(texts))
	if s == nil {
		return Similarity{Scores: scores, Degraded: true}
	}
	if len(texts) == 0 {
		return Similarity{Scores: scores}
	}

	all := make([]string, 0, len(texts)+1)
	all = append(all, query)
	all = append(all, texts...)

	vecs, err := s.Embed(ctx, all)
	if err != nil {
		s.logger.Warn("semantic scoring degraded", zap.Error(err), zap.Int("texts", len(texts)))
		s.metrics.Degraded("semantic")
		return Similarity{Scores: scores, Degraded: true}
	}

	q := vecs[0]
	for i := range texts {
		scores[i] = Cosine(q, vecs[i+1])
	}
	return Similarity{Scores: scores}
}

// DocumentTexts returns the text embedded for each document.
func DocumentTexts(docs []types.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Text()
	}
	return out
}
