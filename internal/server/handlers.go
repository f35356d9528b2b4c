// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/history"
	"github.com/pdiddy/research-assistant/internal/llm"
	"github.com/pdiddy/research-assistant/internal/stream"
	"github.com/pdiddy/research-assistant/pkg/types"
)

const (
	maxExpandQueryLength = 500
	defaultCompatModel   = "gpt-3.5-turbo"
)

type searchRequest struct {
	Query           string             `json:"query"`
	Databases       []string           `json:"databases,omitempty"`
	MaxResults      int                `json:"max_results,omitempty"`
	TopK            int                `json:"top_k,omitempty"`
	AccessFilter    types.AccessFilter `json:"access_filter,omitempty"`
	YearMin         int                `json:"year_min,omitempty"`
	YearMax         int                `json:"year_max,omitempty"`
	EnableExpansion *bool              `json:"enable_expansion,omitempty"`
	EnableSemantic  *bool              `json:"enable_semantic,omitempty"`
}

// query maps the request onto a types.Query. Expansion and semantic
// scoring default to on; top_k stands in for max_results when only it is set.
func (r searchRequest) query() types.Query {
	q := types.Query{
		Text:         r.Query,
		Databases:    r.Databases,
		MaxResults:   r.MaxResults,
		AccessFilter: r.AccessFilter,
		YearMin:      r.YearMin,
		YearMax:      r.YearMax,
		Expand:       boolOr(r.EnableExpansion, true),
		Semantic:     boolOr(r.EnableSemantic, true),
	}
	if q.MaxResults == 0 {
		q.MaxResults = r.TopK
	}
	return q
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request", zap.String("query", req.Query), zap.Strings("databases", req.Databases))
	resp, err := s.deps.Searcher.Search(r.Context(), req.query())
	if err != nil {
		if errors.Is(err, types.ErrInvalidQuery) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDatabases(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.deps.Searcher.AvailableDatabases())
}

func (s *Server) handleDatabaseStatus(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.deps.Searcher.DatabaseStatus(r.Context()))
}

type expandRequest struct {
	Query   string `json:"query"`
	Context string `json:"context,omitempty"`
}

func (s *Server) handleExpand(w http.ResponseWriter, r *http.Request) {
	if s.deps.Expander == nil {
		s.respondError(w, http.StatusNotFound, "query expansion not enabled")
		return
	}
	var req expandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.respondError(w, http.StatusBadRequest, "query cannot be empty")
		return
	}
	if utf8.RuneCountInString(req.Query) > maxExpandQueryLength {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("query too long (max %d characters)", maxExpandQueryLength))
		return
	}
	s.respondJSON(w, http.StatusOK, s.deps.Expander.Expand(r.Context(), req.Query, req.Context))
}

func (s *Server) handleRecentSearches(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		s.respondError(w, http.StatusNotFound, "search history not enabled")
		return
	}
	params := r.URL.Query()
	f := history.Filter{
		Contains: params.Get("contains"),
		Database: params.Get("database"),
	}
	if v := params.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		f.Limit = n
	}
	if v := params.Get("failed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "failed must be a boolean")
			return
		}
		f.FailedOnly = b
	}
	if v := params.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "since must be an RFC 3339 timestamp")
			return
		}
		f.Since = t
	}
	records, err := s.deps.History.Query(r.Context(), f)
	if err != nil {
		s.logger.Error("history query failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, records)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type streamRequest struct {
	Messages       []types.ChatMessage `json:"messages"`
	Databases      []string            `json:"databases,omitempty"`
	MaxResults     int                 `json:"max_results,omitempty"`
	TopK           int                 `json:"top_k,omitempty"`
	AccessFilter   types.AccessFilter  `json:"access_filter,omitempty"`
	YearMin        int                 `json:"year_min,omitempty"`
	YearMax        int                 `json:"year_max,omitempty"`
	EnableSemantic *bool               `json:"enable_semantic,omitempty"`
	Temperature    *float32            `json:"temperature,omitempty"`
	MaxTokens      int                 `json:"max_tokens,omitempty"`
}

func (r streamRequest) options() stream.Options {
	opts := stream.Options{
		Databases:          r.Databases,
		AccessFilter:       r.AccessFilter,
		YearMin:            r.YearMin,
		YearMax:            r.YearMax,
		Semantic:           boolOr(r.EnableSemantic, true),
		CandidatesPerQuery: r.MaxResults,
		TopK:               r.TopK,
		LLM:                llm.Options{MaxTokens: r.MaxTokens},
	}
	if r.Temperature != nil {
		opts.LLM.Temperature = *r.Temperature
	}
	return opts
}

func (s *Server) handleQueryStream(w http.ResponseWriter, r *http.Request) {
	var req streamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.serveStream(w, r, req.Messages, req.options(), stream.NativeEncoder{})
}

type chatCompletionRequest struct {
	Model        string              `json:"model"`
	Messages     []types.ChatMessage `json:"messages"`
	Stream       bool                `json:"stream"`
	Temperature  *float32            `json:"temperature,omitempty"`
	MaxTokens    int                 `json:"max_tokens,omitempty"`
	StreamEvents *bool               `json:"stream_events,omitempty"`
	MaxResults   int                 `json:"max_results,omitempty"`
	TopK         int                 `json:"top_k,omitempty"`
	Databases    []string            `json:"databases,omitempty"`
	AccessFilter types.AccessFilter  `json:"access_filter,omitempty"`
}

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Stream {
		s.respondError(w, http.StatusBadRequest, "non-streaming mode not implemented, set stream=true")
		return
	}
	model := req.Model
	if model == "" {
		model = defaultCompatModel
	}
	opts := streamRequest{
		Messages:     req.Messages,
		Databases:    req.Databases,
		MaxResults:   req.MaxResults,
		TopK:         req.TopK,
		AccessFilter: req.AccessFilter,
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
	}.options()
	enc := stream.NewChatCompletionEncoder(model, boolOr(req.StreamEvents, s.config.StreamEvents))
	s.logger.Debug("chat completion request",
		zap.String("model", model),
		zap.Bool("stream_events", enc.Events),
		zap.Int("max_results", req.MaxResults),
		zap.Int("top_k", req.TopK))
	s.serveStream(w, r, req.Messages, opts, enc)
}

// serveStream validates the request, starts the answer stream, and copies
// its events to w. Validation failures are reported as JSON before any
// frame is written.
func (s *Server) serveStream(w http.ResponseWriter, r *http.Request, messages []types.ChatMessage, opts stream.Options, enc stream.Encoder) {
	switch opts.AccessFilter {
	case types.AccessFilterAny, types.AccessFilterOpen, types.AccessFilterRestricted:
	default:
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown access_filter %q", opts.AccessFilter))
		return
	}
	if opts.CandidatesPerQuery < 0 || opts.CandidatesPerQuery > types.MaxResultsLimit {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("max_results must be between 1 and %d", types.MaxResultsLimit))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, err := s.deps.Answerer.Stream(ctx, messages, opts)
	if err != nil {
		if errors.Is(err, stream.ErrNoUserMessage) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("starting answer stream failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := stream.Copy(w, events, enc); err != nil {
		s.logger.Warn("writing answer stream failed", zap.Error(err))
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("encoding response failed", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
