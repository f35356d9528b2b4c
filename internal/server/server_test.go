// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-assistant/internal/history"
	"github.com/pdiddy/research-assistant/internal/metrics"
	"github.com/pdiddy/research-assistant/internal/stream"
	"github.com/pdiddy/research-assistant/pkg/types"
)

type fakeSearcher struct {
	resp types.SearchResponse
	err  error
	got  types.Query
}

func (f *fakeSearcher) Search(_ context.Context, q types.Query) (types.SearchResponse, error) {
	f.got = q
	if err := q.Validate(); err != nil {
		return types.SearchResponse{}, err
	}
	return f.resp, f.err
}

func (f *fakeSearcher) AvailableDatabases() []string { return []string{"arxiv", "openalex"} }

func (f *fakeSearcher) DatabaseStatus(context.Context) []types.DatabaseStatus {
	return []types.DatabaseStatus{{Name: "arxiv", Available: true, ResponseTimeMS: 12}}
}

type fakeExpander struct{}

func (fakeExpander) Expand(_ context.Context, query, hint string) types.QueryExpansion {
	return types.QueryExpansion{Original: query, ExpandedQueries: []string{query + " " + hint}}
}

type fakeAnswerer struct {
	events []types.StreamEvent
	opts   stream.Options
}

func (f *fakeAnswerer) Stream(_ context.Context, messages []types.ChatMessage, opts stream.Options) (<-chan types.StreamEvent, error) {
	if types.LastUserMessage(messages) == "" {
		return nil, stream.ErrNoUserMessage
	}
	f.opts = opts
	ch := make(chan types.StreamEvent, len(f.events))
	for _, ev := range f.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

type fakeHistory struct {
	records []types.SearchRecord
	got     history.Filter
}

func (f *fakeHistory) Query(_ context.Context, filter history.Filter) ([]types.SearchRecord, error) {
	f.got = filter
	return f.records, nil
}

func answerEvents() []types.StreamEvent {
	return []types.StreamEvent{
		types.StatusEvent(stream.MsgPlanning),
		types.DocumentsEvent([]types.ScoredDocument{{Document: types.Document{Title: "Graph networks"}}}),
		types.ChunkEvent("Graphs "),
		types.ChunkEvent("help [1]."),
		types.CompleteEvent(types.Completion{ProcessingTimeMS: 5, TotalDocuments: 1}),
	}
}

type fixture struct {
	searcher *fakeSearcher
	answerer *fakeAnswerer
	history  *fakeHistory
	handler  http.Handler
}

func newFixture(t *testing.T, mutate func(*Deps)) *fixture {
	t.Helper()
	f := &fixture{
		searcher: &fakeSearcher{resp: types.SearchResponse{Query: "q", Results: []types.ScoredDocument{}}},
		answerer: &fakeAnswerer{events: answerEvents()},
		history:  &fakeHistory{records: []types.SearchRecord{{ID: "a", Query: "q"}}},
	}
	deps := Deps{
		Searcher: f.searcher,
		Expander: fakeExpander{},
		Answerer: f.answerer,
		History:  f.history,
		Metrics:  metrics.New(prometheus.NewRegistry()),
	}
	if mutate != nil {
		mutate(&deps)
	}
	f.handler = NewServer(types.ServerConfig{StreamEvents: true}, deps).Handler()
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, r)
	return w
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	return out["error"]
}

func dataFrames(body string) []string {
	var out []string
	for _, block := range strings.Split(strings.TrimSpace(body), "\n\n") {
		out = append(out, strings.TrimPrefix(block, "data: "))
	}
	return out
}

func TestHandleSearch(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(http.MethodPost, "/api/v1/search", `{"query":"graph networks","databases":["arxiv"],"max_results":5}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp types.SearchResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "q", resp.Query)

	got := f.searcher.got
	assert.Equal(t, "graph networks", got.Text)
	assert.Equal(t, []string{"arxiv"}, got.Databases)
	assert.Equal(t, 5, got.MaxResults)
	assert.True(t, got.Expand, "expansion defaults on")
	assert.True(t, got.Semantic, "semantic defaults on")
}

func TestHandleSearchOptions(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(http.MethodPost, "/api/v1/search", `{"query":"q","top_k":7,"enable_expansion":false,"enable_semantic":false}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 7, f.searcher.got.MaxResults, "top_k stands in for max_results")
	assert.False(t, f.searcher.got.Expand)
	assert.False(t, f.searcher.got.Semantic)
}

func TestHandleSearchErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
		msg    string
	}{
		{"bad body", `{`, nil, http.StatusBadRequest, "invalid request body"},
		{"empty query", `{"query":"  "}`, nil, http.StatusBadRequest, "query is empty"},
		{"max_results too large", `{"query":"q","max_results":500}`, nil, http.StatusBadRequest, "max_results"},
		{"bad access filter", `{"query":"q","access_filter":"paywalled"}`, nil, http.StatusBadRequest, "access_filter"},
		{"search cancelled", `{"query":"q"}`, fmt.Errorf("search cancelled: %w", context.Canceled), http.StatusInternalServerError, "cancelled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.searcher.err = tt.err
			w := f.do(http.MethodPost, "/api/v1/search", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, errorBody(t, w), tt.msg)
		})
	}
}

func TestHandleDatabases(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(http.MethodGet, "/api/v1/databases", "")
	require.Equal(t, http.StatusOK, w.Code)
	var names []string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&names))
	assert.Equal(t, []string{"arxiv", "openalex"}, names)

	w = f.do(http.MethodGet, "/api/v1/databases/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	var status []types.DatabaseStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	require.Len(t, status, 1)
	assert.True(t, status[0].Available)
	assert.EqualValues(t, 12, status[0].ResponseTimeMS)
}

func TestHandleExpand(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(http.MethodPost, "/api/v1/query/expand", `{"query":"gnn","context":"chemistry"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var exp types.QueryExpansion
	require.NoError(t, json.NewDecoder(w.Body).Decode(&exp))
	assert.Equal(t, "gnn", exp.Original)
	assert.Equal(t, []string{"gnn chemistry"}, exp.ExpandedQueries)

	w = f.do(http.MethodPost, "/api/v1/query/expand", `{"query":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	long := strings.Repeat("x", maxExpandQueryLength+1)
	w = f.do(http.MethodPost, "/api/v1/query/expand", `{"query":"`+long+`"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorBody(t, w), "too long")
}

func TestHandleExpandDisabled(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.Expander = nil })
	w := f.do(http.MethodPost, "/api/v1/query/expand", `{"query":"gnn"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleRecentSearches(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(http.MethodGet, "/api/v1/searches/recent?limit=5&database=arxiv&failed=true&contains=graph", "")
	require.Equal(t, http.StatusOK, w.Code)
	var records []types.SearchRecord
	require.NoError(t, json.NewDecoder(w.Body).Decode(&records))
	require.Len(t, records, 1)
	assert.Equal(t, history.Filter{Limit: 5, Database: "arxiv", FailedOnly: true, Contains: "graph"}, f.history.got)

	for _, q := range []string{"limit=abc", "limit=-1", "failed=maybe", "since=yesterday"} {
		w := f.do(http.MethodGet, "/api/v1/searches/recent?"+q, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestHandleRecentSearchesDisabled(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.History = nil })
	w := f.do(http.MethodGet, "/api/v1/searches/recent", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleHealthAndMetrics(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = f.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleQueryStream(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(http.MethodPost, "/api/v1/query/stream",
		`{"messages":[{"role":"user","content":"what are gnns?"}],"max_results":30,"top_k":4,"temperature":0.2}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))

	frames := dataFrames(w.Body.String())
	require.Len(t, frames, 5)
	var kinds []string
	for _, fr := range frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(fr), &m), fr)
		kinds = append(kinds, m["type"].(string))
	}
	assert.Equal(t, []string{"status", "documents", "response_chunk", "response_chunk", "complete"}, kinds)
	assert.NotContains(t, w.Body.String(), "[DONE]")

	opts := f.answerer.opts
	assert.Equal(t, 30, opts.CandidatesPerQuery)
	assert.Equal(t, 4, opts.TopK)
	assert.True(t, opts.Semantic)
	assert.InDelta(t, 0.2, opts.LLM.Temperature, 1e-6)
}

func TestHandleQueryStreamRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		msg  string
	}{
		{"no user message", `{"messages":[{"role":"system","content":"be brief"}]}`, "no user message"},
		{"bad access filter", `{"messages":[{"role":"user","content":"q"}],"access_filter":"x"}`, "access_filter"},
		{"max_results", `{"messages":[{"role":"user","content":"q"}],"max_results":101}`, "max_results"},
		{"bad body", `[]`, "invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			w := f.do(http.MethodPost, "/api/v1/query/stream", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, errorBody(t, w), tt.msg)
		})
	}
}

func TestHandleChatCompletions(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(http.MethodPost, "/v1/chat/completions",
		`{"model":"research","stream":true,"messages":[{"role":"user","content":"what are gnns?"}],"databases":["arxiv"],"max_results":20}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	docs, err := json.Marshal(answerEvents()[1].Documents)
	require.NoError(t, err)

	frames := dataFrames(w.Body.String())
	require.Len(t, frames, 7, "start, five events, [DONE]")
	assert.Equal(t, "[DONE]", frames[6])

	want := []struct {
		content string
		finish  openai.FinishReason
	}{
		{"", ""},
		{"<event>" + stream.MsgPlanning + "</event>", ""},
		{"<event>documents:" + string(docs) + "</event>", ""},
		{"Graphs ", ""},
		{"help [1].", ""},
		{"", openai.FinishReasonStop},
	}
	var id string
	for i, wf := range want {
		var got openai.ChatCompletionStreamResponse
		require.NoError(t, json.Unmarshal([]byte(frames[i]), &got), "frame %d", i)
		assert.Equal(t, "research", got.Model, "frame %d", i)
		assert.Equal(t, "chat.completion.chunk", got.Object, "frame %d", i)
		require.Len(t, got.Choices, 1, "frame %d", i)
		assert.Equal(t, openai.ChatMessageRoleAssistant, got.Choices[0].Delta.Role, "frame %d", i)
		assert.Equal(t, wf.content, got.Choices[0].Delta.Content, "frame %d", i)
		assert.Equal(t, wf.finish, got.Choices[0].FinishReason, "frame %d", i)
		if i == 0 {
			id = got.ID
		}
		assert.Equal(t, id, got.ID, "frame %d shares the completion id", i)
	}

	assert.Equal(t, []string{"arxiv"}, f.answerer.opts.Databases)
	assert.Equal(t, 20, f.answerer.opts.CandidatesPerQuery)
}

func TestHandleChatCompletionsWithoutEvents(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(http.MethodPost, "/v1/chat/completions",
		`{"stream":true,"stream_events":false,"messages":[{"role":"user","content":"q"}]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "<event>")
	assert.Contains(t, w.Body.String(), `"model":"`+defaultCompatModel+`"`)
	assert.True(t, strings.HasSuffix(w.Body.String(), "data: [DONE]\n\n"))
}

func TestHandleChatCompletionsRejects(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(http.MethodPost, "/v1/chat/completions", `{"messages":[{"role":"user","content":"q"}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorBody(t, w), "stream=true")

	w = f.do(http.MethodPost, "/v1/chat/completions", `{"stream":true,"messages":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorBody(t, w), "no user message")
}

func TestHandleStreamError(t *testing.T) {
	f := newFixture(t, nil)
	f.answerer.events = []types.StreamEvent{
		types.DocumentsEvent(nil),
		types.ErrorEvent("Error generating response: upstream reset"),
	}
	w := f.do(http.MethodPost, "/api/v1/query/stream", `{"messages":[{"role":"user","content":"q"}]}`)
	require.Equal(t, http.StatusOK, w.Code, "errors after the headers travel in-band")
	frames := dataFrames(w.Body.String())
	require.Len(t, frames, 2)
	assert.JSONEq(t, `{"type":"error","message":"Error generating response: upstream reset"}`, frames[1])
}
