// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/connector"
	"github.com/pdiddy/research-assistant/internal/embedding"
	"github.com/pdiddy/research-assistant/internal/expansion"
	"github.com/pdiddy/research-assistant/internal/federated"
	"github.com/pdiddy/research-assistant/internal/history"
	"github.com/pdiddy/research-assistant/internal/httputil"
	"github.com/pdiddy/research-assistant/internal/llm"
	"github.com/pdiddy/research-assistant/internal/logging"
	"github.com/pdiddy/research-assistant/internal/metrics"
	"github.com/pdiddy/research-assistant/internal/ranking"
	"github.com/pdiddy/research-assistant/internal/rerank"
	"github.com/pdiddy/research-assistant/internal/stream"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// app holds the process-wide collaborators built from configuration.
type app struct {
	cfg          types.AppConfig
	logger       *zap.Logger
	metrics      *metrics.Recorder
	registry     *connector.Registry
	expander     *expansion.Expander
	orchestrator *federated.Orchestrator
	assembler    *stream.Assembler
	history      *history.Store
}

// newApp wires every component. Optional backends that cannot be built
// (no key, unreachable) are logged and left out; the features they serve
// then run degraded.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.New(prometheus.NewRegistry()),
	}

	client := &http.Client{Timeout: cfg.Search.Timeout}
	retrier := httputil.NewRetrier(client, cfg.Search.MaxRetries, logger)

	if a.registry, err = buildRegistry(cfg, client, retrier); err != nil {
		return nil, err
	}
	logger.Info("connectors registered", zap.Strings("databases", a.registry.Names()))

	gen, err := expansion.NewGenerator(ctx, cfg.Expansion, client)
	if err != nil {
		logger.Warn("query expansion generator unavailable, using thesaurus only", zap.Error(err))
		gen = nil
	}
	if a.expander, err = expansion.New(cfg.Expansion, gen, logger, a.metrics); err != nil {
		return nil, err
	}

	deps := federated.Deps{
		Expander: a.expander,
		Scorer:   ranking.NewScorer(cfg.Search.Weights, logger),
		Metrics:  a.metrics,
		Logger:   logger,
	}
	emb, err := embedding.New(ctx, cfg.Embedding, client, logger, a.metrics)
	if err != nil {
		logger.Warn("embedding service unavailable, semantic scoring disabled", zap.Error(err))
	} else if emb != nil {
		deps.Semantic = emb
	}

	if cfg.History.Enabled {
		store, err := history.NewStore(cfg.History.Path)
		if err != nil {
			logger.Warn("search history unavailable", zap.String("path", cfg.History.Path), zap.Error(err))
		} else {
			a.history = store
			deps.History = store
		}
	}
	a.orchestrator = federated.New(a.registry, cfg.Search, deps)

	sdeps := stream.Deps{
		Searcher: a.orchestrator,
		Planner:  a.expander,
		Metrics:  a.metrics,
		Logger:   logger,
	}
	rr, err := rerank.New(cfg.Rerank, retrier)
	if err != nil {
		logger.Warn("reranker unavailable, keeping ranked order", zap.Error(err))
	} else if rr != nil {
		sdeps.Reranker = rr
	}
	// Generation has no client-side timeout; the request context bounds it.
	chat, err := llm.NewOpenAI(cfg.LLM, &http.Client{}, logger)
	if err != nil {
		logger.Warn("LLM unavailable, answer streams will fail", zap.Error(err))
	} else {
		sdeps.LLM = chat
	}
	a.assembler = stream.New(cfg.Stream, cfg.Rerank, sdeps)
	return a, nil
}

func buildRegistry(cfg types.AppConfig, client *http.Client, retrier *httputil.Retrier) (*connector.Registry, error) {
	p := cfg.Providers
	ua := cfg.Search.UserAgent
	var conns []connector.Connector
	if p.Arxiv.Enabled {
		conns = append(conns, connector.NewArxiv(client, ua))
	}
	if p.SemanticScholar.Enabled {
		conns = append(conns, connector.NewSemanticScholar(retrier, p.SemanticScholar.APIKey, ua))
	}
	if p.OpenAlex.Enabled {
		conns = append(conns, connector.NewOpenAlex(retrier, p.OpenAlex.Email, ua))
	}
	if p.SearxNG.Enabled {
		s, err := connector.NewSearxNG(client, p.SearxNG, ua)
		if err != nil {
			return nil, fmt.Errorf("searxng connector: %w", err)
		}
		conns = append(conns, s)
	}
	if len(conns) == 0 {
		return nil, fmt.Errorf("no databases enabled")
	}
	reg, err := connector.NewRegistry(conns...)
	if err != nil {
		return nil, err
	}
	return reg.WithDefaults(cfg.Search.DefaultDatabases)
}

func (a *app) close() {
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.Warn("closing history", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
