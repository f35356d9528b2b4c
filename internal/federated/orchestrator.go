// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package federated fans a query out to every selected connector, pools
// and deduplicates what comes back, and ranks the pool. One provider's
// failure or timeout never affects another's results.
package federated

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/research-assistant/internal/connector"
	"github.com/pdiddy/research-assistant/internal/embedding"
	"github.com/pdiddy/research-assistant/internal/expansion"
	"github.com/pdiddy/research-assistant/internal/metrics"
	"github.com/pdiddy/research-assistant/internal/ranking"
	"github.com/pdiddy/research-assistant/pkg/types"
)

const (
	DefaultMaxResults      = 20
	DefaultProviderTimeout = 15 * time.Second
	DefaultHealthTimeout   = 10 * time.Second
)

// Expander produces query variants.
type Expander interface {
	Expand(ctx context.Context, query, hint string) types.QueryExpansion
}

// SemanticScorer returns query/text cosine similarities.
type SemanticScorer interface {
	SemanticSimilarity(ctx context.Context, query string, texts []string) embedding.Similarity
}

// HistorySink records completed searches.
type HistorySink interface {
	Record(ctx context.Context, rec types.SearchRecord) error
}

// Deps are the optional collaborators of an Orchestrator. Nil fields
// disable the stage they serve.
type Deps struct {
	Expander Expander
	Semantic SemanticScorer
	Scorer   *ranking.Scorer
	History  HistorySink
	Metrics  *metrics.Recorder
	Logger   *zap.Logger
}

// Orchestrator runs federated searches. It is safe for concurrent use.
type Orchestrator struct {
	registry *connector.Registry
	cfg      types.SearchConfig
	deps     Deps
	logger   *zap.Logger
}

// New returns an Orchestrator over the connectors in reg.
func New(reg *connector.Registry, cfg types.SearchConfig, deps Deps) *Orchestrator {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = DefaultProviderTimeout
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = DefaultHealthTimeout
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Scorer == nil {
		deps.Scorer = ranking.NewScorer(cfg.Weights, logger)
	}
	return &Orchestrator{registry: reg, cfg: cfg, deps: deps, logger: logger}
}

// AvailableDatabases lists the registered connector names in registry order.
func (o *Orchestrator) AvailableDatabases() []string {
	return o.registry.Names()
}

// providerResult is one provider's slot. Each fan-out task writes only
// its own slot.
type providerResult struct {
	name    string
	docs    []types.Document
	err     error
	latency time.Duration
}

// Search runs q against the selected providers. The returned error is
// non-nil only for an invalid query (wrapping types.ErrInvalidQuery) or a
// cancelled context; provider failures are reported in the stats.
func (o *Orchestrator) Search(ctx context.Context, q types.Query) (types.SearchResponse, error) {
	if err := q.Validate(); err != nil {
		return types.SearchResponse{}, err
	}
	start := time.Now()
	limit := q.MaxResults
	if limit <= 0 {
		limit = o.cfg.MaxResults
	}

	stats := types.SearchStats{
		ResultsPerDatabase: map[string]int{},
		FailedDatabases:    map[string]string{},
	}
	resp := types.SearchResponse{Query: q.Text, Results: []types.ScoredDocument{}}

	queries := []string{q.Text}
	if q.Expand && o.deps.Expander != nil {
		exp := o.deps.Expander.Expand(ctx, q.Text, "")
		stats.QueryExpansionUsed = true
		stats.ExpansionDegraded = exp.Degraded
		variants := expansion.Variants(exp, o.cfg.MaxExpandedQueries)
		queries = append(queries, variants...)
		resp.RelatedQueries = variants
	}

	providers := o.registry.Select(q.Databases)
	stats.ProvidersQueried = len(providers)

	slots := o.fanOut(ctx, providers, queries, connector.Request{
		Limit:   limit,
		YearMin: q.YearMin,
		YearMax: q.YearMax,
	})
	if err := ctx.Err(); err != nil {
		return types.SearchResponse{}, fmt.Errorf("search cancelled: %w", err)
	}

	var pool []types.Document
	for _, r := range slots {
		o.deps.Metrics.Provider(r.name, r.latency, r.err)
		if r.err != nil {
			stats.FailedDatabases[r.name] = r.err.Error()
			o.logger.Warn("provider failed",
				zap.String("provider", r.name),
				zap.Duration("latency", r.latency),
				zap.Error(r.err))
			continue
		}
		stats.ProvidersSucceeded++
		kept := 0
		for _, d := range r.docs {
			if q.AccessFilter.Allows(d) && q.InYearRange(d) {
				pool = append(pool, d)
				kept++
			}
		}
		stats.ResultsPerDatabase[r.name] = kept
		o.logger.Debug("provider returned",
			zap.String("provider", r.name),
			zap.Int("documents", len(r.docs)),
			zap.Int("kept", kept),
			zap.Duration("latency", r.latency))
	}

	unique, removed := Dedup(pool)
	stats.DuplicatesRemoved = removed
	stats.TotalResults = len(unique)

	var semantic []float64
	if q.Semantic && o.deps.Semantic != nil && len(unique) > 0 {
		sim := o.deps.Semantic.SemanticSimilarity(ctx, q.Text, embedding.DocumentTexts(unique))
		stats.SemanticSearchUsed = true
		stats.SemanticDegraded = sim.Degraded
		if !sim.Degraded {
			semantic = sim.Scores
		}
	}

	if len(unique) > 0 {
		resp.Results = o.deps.Scorer.Rank(ctx, q.Text, unique, semantic, limit)
	}

	elapsed := time.Since(start)
	stats.SearchTimeMS = elapsed.Milliseconds()
	resp.Stats = stats

	o.deps.Metrics.Search(elapsed, len(resp.Results), removed)
	o.logger.Info("search complete",
		zap.String("query", q.Text),
		zap.Int("providers", stats.ProvidersQueried),
		zap.Int("succeeded", stats.ProvidersSucceeded),
		zap.Int("total", stats.TotalResults),
		zap.Int("returned", len(resp.Results)),
		zap.Int("duplicates", removed),
		zap.Duration("elapsed", elapsed))
	o.record(ctx, q, stats, providers)
	return resp, nil
}

// fanOut runs one task per provider. Tasks share no cancellation: the
// group has no derived context, so a failing provider leaves the others
// running. Each task gets its own timeout under ctx.
func (o *Orchestrator) fanOut(ctx context.Context, providers []connector.Connector, queries []string, base connector.Request) []providerResult {
	slots := make([]providerResult, len(providers))
	var g errgroup.Group
	for i, c := range providers {
		g.Go(func() error {
			slots[i] = o.runProvider(ctx, c, queries, base)
			return nil
		})
	}
	_ = g.Wait()
	return slots
}

// runProvider searches every query in turn. The provider fails only when
// all of its queries fail.
func (o *Orchestrator) runProvider(ctx context.Context, c connector.Connector, queries []string, base connector.Request) providerResult {
	pctx, cancel := context.WithTimeout(ctx, o.cfg.ProviderTimeout)
	defer cancel()

	start := time.Now()
	res := providerResult{name: c.Name()}
	var errs []error
	succeeded := 0
	for _, qt := range queries {
		req := base
		req.Query = qt
		docs, err := c.Search(pctx, req)
		if err != nil {
			errs = append(errs, err)
			if pctx.Err() != nil {
				break
			}
			continue
		}
		succeeded++
		res.docs = append(res.docs, docs...)
	}
	res.latency = time.Since(start)

	switch {
	case succeeded == 0:
		res.err = providerError(pctx, o.cfg.ProviderTimeout, errors.Join(errs...))
	case len(errs) > 0:
		o.logger.Debug("provider partially failed",
			zap.String("provider", res.name),
			zap.Int("failed_queries", len(errs)),
			zap.Error(errors.Join(errs...)))
	}
	return res
}

func providerError(ctx context.Context, timeout time.Duration, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("timed out after %s: %w", timeout, err)
	}
	return err
}

func (o *Orchestrator) record(ctx context.Context, q types.Query, stats types.SearchStats, providers []connector.Connector) {
	if o.deps.History == nil {
		return
	}
	rec := types.SearchRecord{
		ID:                  uuid.NewString(),
		Query:               q.Text,
		Timestamp:           time.Now().UTC(),
		TotalResults:        stats.TotalResults,
		ResponseTimeMS:      stats.SearchTimeMS,
		DatabasesQueried:    make([]string, 0, len(providers)),
		SuccessfulDatabases: []string{},
		FailedDatabases:     []string{},
	}
	for _, c := range providers {
		name := c.Name()
		rec.DatabasesQueried = append(rec.DatabasesQueried, name)
		if _, failed := stats.FailedDatabases[name]; failed {
			rec.FailedDatabases = append(rec.FailedDatabases, name)
		} else {
			rec.SuccessfulDatabases = append(rec.SuccessfulDatabases, name)
		}
	}
	if err := o.deps.History.Record(ctx, rec); err != nil {
		o.logger.Warn("recording search history", zap.Error(err))
	}
}

// DatabaseStatus probes every registered connector concurrently, each
// under its own timeout. Results are in registry order.
func (o *Orchestrator) DatabaseStatus(ctx context.Context) []types.DatabaseStatus {
	all := o.registry.All()
	out := make([]types.DatabaseStatus, len(all))
	var g errgroup.Group
	for i, c := range all {
		g.Go(func() error {
			hctx, cancel := context.WithTimeout(ctx, o.cfg.HealthTimeout)
			defer cancel()
			rep := c.Health(hctx)
			st := types.DatabaseStatus{
				Name:           c.Name(),
				Available:      rep.Available,
				ResponseTimeMS: rep.Latency.Milliseconds(),
				LastChecked:    time.Now().UTC(),
			}
			if rep.Err != nil {
				st.ErrorMessage = rep.Err.Error()
			}
			out[i] = st
			return nil
		})
	}
	_ = g.Wait()
	return out
}
