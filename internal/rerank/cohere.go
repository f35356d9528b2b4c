// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/research-assistant/internal/httputil"
	"github.com/pdiddy/research-assistant/pkg/types"
)

const (
	defaultCohereBaseURL = "https://api.cohere.com"
	defaultCohereModel   = "rerank-v3.5"
)

// Cohere calls a Cohere-compatible /v2/rerank endpoint.
type Cohere struct {
	Retrier *httputil.Retrier
	APIKey  string
	BaseURL string
	Model   string
}

// NewCohere returns a Cohere reranker. An empty baseURL uses the public
// API and an empty model uses rerank-v3.5.
func NewCohere(retrier *httputil.Retrier, apiKey, baseURL, model string) (*Cohere, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("cohere reranker requires an API key")
	}
	if baseURL == "" {
		baseURL = defaultCohereBaseURL
	}
	if model == "" {
		model = defaultCohereModel
	}
	return &Cohere{
		Retrier: retrier,
		APIKey:  apiKey,
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
	}, nil
}

// New builds the configured reranker. Provider "" or "none" returns nil
// with no error; the caller then keeps orchestrator order.
func New(cfg types.RerankConfig, retrier *httputil.Retrier) (Reranker, error) {
	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "cohere":
		c, err := NewCohere(retrier, cfg.APIKey, cfg.BaseURL, cfg.Model)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown rerank provider %q", cfg.Provider)
	}
}

type cohereRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type cohereResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank implements Reranker. The composite RelevanceScore is kept and the
// cross-encoder score is stored in RerankScore.
func (c *Cohere) Rerank(ctx context.Context, query string, docs []types.ScoredDocument, topK int) ([]types.ScoredDocument, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	if topK <= 0 || topK > len(docs) {
		topK = len(docs)
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text()
	}
	body, err := json.Marshal(cohereRequest{Model: c.Model, Query: query, Documents: texts, TopN: topK})
	if err != nil {
		return nil, fmt.Errorf("encoding rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v2/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.Retrier.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("rerank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("rerank API returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var cr cohereResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("parsing rerank response: %w", err)
	}

	out := make([]types.ScoredDocument, 0, len(cr.Results))
	seen := make(map[int]bool, len(cr.Results))
	for _, r := range cr.Results {
		if r.Index < 0 || r.Index >= len(docs) || seen[r.Index] {
			continue
		}
		seen[r.Index] = true
		d := docs[r.Index]
		score := r.RelevanceScore
		d.RerankScore = &score
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("rerank API returned no usable results")
	}
	return out, nil
}
