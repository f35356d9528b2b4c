// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server provides the HTTP API for research-assistant: federated
// search, database status, query expansion, answer streaming in the
// native and OpenAI-compatible formats, and search history.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/history"
	"github.com/pdiddy/research-assistant/internal/metrics"
	"github.com/pdiddy/research-assistant/internal/stream"
	"github.com/pdiddy/research-assistant/pkg/types"
)

const defaultRequestTimeout = 60 * time.Second

// Searcher runs federated searches and reports provider health.
type Searcher interface {
	Search(ctx context.Context, q types.Query) (types.SearchResponse, error)
	AvailableDatabases() []string
	DatabaseStatus(ctx context.Context) []types.DatabaseStatus
}

// Expander derives alternative phrasings of a query.
type Expander interface {
	Expand(ctx context.Context, query, hint string) types.QueryExpansion
}

// Answerer streams grounded answers.
type Answerer interface {
	Stream(ctx context.Context, messages []types.ChatMessage, opts stream.Options) (<-chan types.StreamEvent, error)
}

// History lists past searches.
type History interface {
	Query(ctx context.Context, f history.Filter) ([]types.SearchRecord, error)
}

// Deps are the collaborators behind the routes. Expander and History are
// optional; their routes answer 404 when nil.
type Deps struct {
	Searcher Searcher
	Expander Expander
	Answerer Answerer
	History  History
	Metrics  *metrics.Recorder
	Logger   *zap.Logger
}

// Server is the HTTP server for the research-assistant API.
type Server struct {
	deps   Deps
	config types.ServerConfig
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(cfg types.ServerConfig, deps Deps) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{deps: deps, config: cfg, logger: logger}
	s.server = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed API. Streaming routes are kept out of the
// compression and timeout middleware so frames flush as they are written.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.config.RequestTimeout))
		r.Use(middleware.Compress(5))

		r.Post("/api/v1/search", s.handleSearch)
		r.Get("/api/v1/databases", s.handleDatabases)
		r.Get("/api/v1/databases/status", s.handleDatabaseStatus)
		r.Post("/api/v1/query/expand", s.handleExpand)
		r.Get("/api/v1/searches/recent", s.handleRecentSearches)
		r.Get("/health", s.handleHealth)
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())
	})

	r.Group(func(r chi.Router) {
		r.Post("/api/v1/query/stream", s.handleQueryStream)
		r.Post("/v1/chat/completions", s.handleChatCompletions)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info("Starting server", zap.String("addr", s.server.Addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server. Streams in flight are given
// until ctx expires to finish.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}
