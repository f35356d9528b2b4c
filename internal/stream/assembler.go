// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package stream assembles answer streams: it plans search queries from a
// conversation, runs federated searches, reranks the merged pool, and
// streams a grounded LLM answer as an ordered sequence of events.
//
// Every stream follows PENDING → STREAMING → COMPLETE or ERRORED. Status
// events may appear while PENDING. Entering STREAMING emits exactly one
// documents event, then at least one response chunk, then exactly one
// terminal event. A cancelled stream is closed without a terminal event.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/research-assistant/internal/expansion"
	"github.com/pdiddy/research-assistant/internal/federated"
	"github.com/pdiddy/research-assistant/internal/llm"
	"github.com/pdiddy/research-assistant/internal/metrics"
	"github.com/pdiddy/research-assistant/internal/ranking"
	"github.com/pdiddy/research-assistant/internal/rerank"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// ErrNoUserMessage is returned when a conversation has no user turn.
var ErrNoUserMessage = errors.New("no user message found")

const (
	DefaultCandidatesPerQuery = 50
	eventBuffer               = 16
)

// Progress messages.
const (
	MsgPlanning   = "Generating search queries..."
	MsgSearching  = "Searching academic databases..."
	MsgReranking  = "Reranking documents..."
	MsgGenerating = "Generating response..."

	// FallbackAnswer is streamed when no documents were found.
	FallbackAnswer = "I couldn't find relevant academic documents to answer your question. " +
		"Please try rephrasing your query or being more specific about the research area."
)

// Searcher runs one federated search.
type Searcher interface {
	Search(ctx context.Context, q types.Query) (types.SearchResponse, error)
}

// Planner turns a conversation into search queries.
type Planner interface {
	PlanQueries(ctx context.Context, messages []types.ChatMessage, max int) []expansion.PlannedQuery
}

// Options are the per-request knobs of an answer stream.
type Options struct {
	Databases    []string
	AccessFilter types.AccessFilter
	YearMin      int
	YearMax      int
	Semantic     bool

	// CandidatesPerQuery caps each planned search. Zero means the configured value.
	CandidatesPerQuery int
	// TopK is the number of documents the answer is grounded on.
	TopK int

	LLM llm.Options
}

// Deps are the collaborators of an Assembler. Planner and Reranker are
// optional.
type Deps struct {
	Searcher Searcher
	Planner  Planner
	Reranker rerank.Reranker
	LLM      llm.ChatStreamer
	Metrics  *metrics.Recorder
	Logger   *zap.Logger
}

// Assembler builds answer streams. It is safe for concurrent use.
type Assembler struct {
	deps   Deps
	cfg    types.StreamConfig
	rerank types.RerankConfig
	logger *zap.Logger
}

// New returns an Assembler.
func New(cfg types.StreamConfig, rr types.RerankConfig, deps Deps) *Assembler {
	if cfg.MaxQueries <= 0 {
		cfg.MaxQueries = expansion.DefaultMaxQueries
	}
	if cfg.CandidatesPerQuery <= 0 {
		cfg.CandidatesPerQuery = DefaultCandidatesPerQuery
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{deps: deps, cfg: cfg, rerank: rr, logger: logger}
}

// Stream starts an answer stream for messages. The returned channel is
// closed when the stream ends; callers must drain it or cancel ctx.
func (a *Assembler) Stream(ctx context.Context, messages []types.ChatMessage, opts Options) (<-chan types.StreamEvent, error) {
	question := types.LastUserMessage(messages)
	if question == "" {
		return nil, ErrNoUserMessage
	}
	out := make(chan types.StreamEvent, eventBuffer)
	go func() {
		defer close(out)
		em := newEmitter(ctx, out, a.deps.Metrics)
		a.run(ctx, em, question, messages, opts)
	}()
	return out, nil
}

func (a *Assembler) run(ctx context.Context, em *emitter, question string, messages []types.ChatMessage, opts Options) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("answer stream panicked", zap.Any("panic", r))
			if !em.terminated() {
				_ = em.fail(fmt.Sprintf("internal error: %v", r))
			}
		}
		a.finish(ctx, em, start)
	}()

	if err := em.status(MsgPlanning); err != nil {
		return
	}
	planned := a.plan(ctx, messages, question)

	if err := em.status(MsgSearching); err != nil {
		return
	}
	for i, p := range planned {
		if err := em.status(fmt.Sprintf("Searching with query %d/%d: %s", i+1, len(planned), p.Focus)); err != nil {
			return
		}
	}
	pool, failures := a.searchAll(ctx, planned, opts)
	if ctx.Err() != nil {
		return
	}
	for _, f := range failures {
		if err := em.status("Error searching with query: " + f); err != nil {
			return
		}
	}

	merged, removed := federated.DedupScored(pool)
	ranking.Sort(merged)
	a.logger.Info("stream retrieval complete",
		zap.Int("queries", len(planned)),
		zap.Int("documents", len(merged)),
		zap.Int("duplicates", removed))
	if err := em.status(fmt.Sprintf("Found %d unique documents", len(merged))); err != nil {
		return
	}

	docs, err := a.rerankPool(ctx, em, question, merged, opts.TopK)
	if err != nil || ctx.Err() != nil {
		return
	}

	if err := em.emit(types.DocumentsEvent(docs)); err != nil {
		return
	}
	if err := em.status(MsgGenerating); err != nil {
		return
	}

	if len(docs) == 0 {
		if err := em.emit(types.ChunkEvent(FallbackAnswer)); err != nil {
			return
		}
	} else if err := a.generate(ctx, em, messages, docs, opts.LLM); err != nil {
		return
	}

	_ = em.emit(types.CompleteEvent(types.Completion{
		ProcessingTimeMS: time.Since(start).Milliseconds(),
		TotalDocuments:   len(docs),
	}))
}

func (a *Assembler) finish(ctx context.Context, em *emitter, start time.Time) {
	state := em.state.String()
	if !em.terminated() && ctx.Err() != nil {
		state = "cancelled"
	}
	a.deps.Metrics.StreamFinished(state)
	a.logger.Debug("answer stream finished",
		zap.String("state", state),
		zap.Duration("elapsed", time.Since(start)))
}

func (a *Assembler) plan(ctx context.Context, messages []types.ChatMessage, question string) []expansion.PlannedQuery {
	if a.deps.Planner == nil {
		return []expansion.PlannedQuery{expansion.Fallback(question)}
	}
	planned := a.deps.Planner.PlanQueries(ctx, messages, a.cfg.MaxQueries)
	if len(planned) == 0 {
		return []expansion.PlannedQuery{expansion.Fallback(question)}
	}
	return planned
}

// searchAll runs every planned query concurrently. A failed query is
// reported by message and contributes nothing.
func (a *Assembler) searchAll(ctx context.Context, planned []expansion.PlannedQuery, opts Options) ([]types.ScoredDocument, []string) {
	perQuery := opts.CandidatesPerQuery
	if perQuery <= 0 {
		perQuery = a.cfg.CandidatesPerQuery
	}
	if perQuery > types.MaxResultsLimit {
		perQuery = types.MaxResultsLimit
	}

	results := make([][]types.ScoredDocument, len(planned))
	errs := make([]error, len(planned))
	var g errgroup.Group
	for i, p := range planned {
		g.Go(func() error {
			resp, err := a.deps.Searcher.Search(ctx, types.Query{
				Text:         p.Query,
				Databases:    opts.Databases,
				MaxResults:   perQuery,
				AccessFilter: opts.AccessFilter,
				YearMin:      opts.YearMin,
				YearMax:      opts.YearMax,
				Semantic:     opts.Semantic,
			})
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = resp.Results
			return nil
		})
	}
	_ = g.Wait()

	var pool []types.ScoredDocument
	var failures []string
	for i := range planned {
		if errs[i] != nil {
			a.logger.Warn("planned search failed",
				zap.String("query", planned[i].Query),
				zap.Error(errs[i]))
			failures = append(failures, errs[i].Error())
			continue
		}
		pool = append(pool, results[i]...)
	}
	return pool, failures
}

func (a *Assembler) rerankPool(ctx context.Context, em *emitter, question string, docs []types.ScoredDocument, topK int) ([]types.ScoredDocument, error) {
	if topK <= 0 {
		topK = a.rerank.TopK
	}
	if a.deps.Reranker != nil && len(docs) > 0 {
		if err := em.status(MsgReranking); err != nil {
			return nil, err
		}
	}
	out := rerank.Apply(ctx, a.deps.Reranker, question, docs, a.rerank.MaxCandidates, topK)
	if out.Err != nil {
		a.deps.Metrics.Degraded("rerank")
		a.logger.Warn("rerank failed, keeping search order", zap.Error(out.Err))
	}
	return out.Documents, nil
}

// generate streams the answer as chunks. A backend failure ends the stream
// with an error event; cancellation ends it silently.
func (a *Assembler) generate(ctx context.Context, em *emitter, messages []types.ChatMessage, docs []types.ScoredDocument, opts llm.Options) error {
	if a.deps.LLM == nil {
		return em.fail("Error generating response: no language model configured")
	}
	s, err := a.deps.LLM.StreamChat(ctx, llm.BuildRAGMessages(messages, docs), opts)
	if err != nil {
		if ctx.Err() != nil {
			return errCancelled
		}
		a.logger.Error("starting generation", zap.Error(err))
		_ = em.fail("Error generating response: " + err.Error())
		return err
	}
	defer s.Close()

	chunks := 0
	for {
		text, err := s.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return errCancelled
			}
			a.logger.Error("generation failed mid-stream", zap.Int("chunks", chunks), zap.Error(err))
			_ = em.fail("Error generating response: " + err.Error())
			return err
		}
		if err := em.emit(types.ChunkEvent(text)); err != nil {
			return err
		}
		chunks++
	}
	if chunks == 0 {
		err := errors.New("language model returned an empty response")
		_ = em.fail("Error generating response: " + err.Error())
		return err
	}
	return nil
}
