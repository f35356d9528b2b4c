// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package expansion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// fakeGenerator answers by prompt kind and records prompts.
type fakeGenerator struct {
	mu       sync.Mutex
	prompts  []string
	related  string
	variants string
	plan     string
	err      error
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	switch {
	case strings.HasPrefix(prompt, "Rephrase"):
		return f.variants, nil
	case strings.Contains(prompt, `{"queries"`):
		return f.plan, nil
	default:
		return f.related, nil
	}
}

func newTestExpander(t *testing.T, gen Generator) *Expander {
	t.Helper()
	e, err := New(types.ExpansionConfig{}, gen, nil, nil)
	require.NoError(t, err)
	return e
}

func TestThesaurusSynonyms(t *testing.T) {
	th := DefaultThesaurus()

	got := th.Synonyms("Machine Learning for cancer detection", 5)
	assert.Equal(t, []string{"oncology", "tumor", "neoplasm", "malignancy", "artificial intelligence"}, got)

	assert.Len(t, th.Synonyms("machine learning and artificial intelligence", 0), 6, "duplicates across phrases removed")
	assert.Empty(t, th.Synonyms("protein folding", 5))
	assert.NotNil(t, th.Synonyms("protein folding", 5))
}

func TestLoadThesaurus(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thesaurus.yaml")
	require.NoError(t, os.WriteFile(path, []byte("Graph Neural Networks:\n  - GNN\n  - message passing\n"), 0o644))

	th, err := LoadThesaurus(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"GNN", "message passing"}, th["graph neural networks"])

	_, err = LoadThesaurus(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("- not\n- a map\n"), 0o644))
	_, err = LoadThesaurus(bad)
	assert.Error(t, err)

	_, err = New(types.ExpansionConfig{ThesaurusFile: bad}, nil, nil, nil)
	assert.Error(t, err)
}

func TestExpand(t *testing.T) {
	gen := &fakeGenerator{
		related:  "1. graph representation learning\n2. Message Passing\n- node embeddings\nextra",
		variants: "\"GNN methods\"\nmessage passing\n\nneural networks on graphs",
	}
	e := newTestExpander(t, gen)

	exp := e.Expand(context.Background(), "  graph neural networks ", "chemistry")
	assert.False(t, exp.Degraded)
	assert.Equal(t, "graph neural networks", exp.Original)
	assert.Equal(t, []string{"graph representation learning", "Message Passing", "node embeddings"}, exp.RelatedTerms)
	assert.Equal(t, []string{"GNN methods", "message passing", "neural networks on graphs"}, exp.SemanticVariants)
	assert.Equal(t, []string{"deep learning", "artificial neural networks", "ANN"}, exp.Synonyms)

	assert.Equal(t, []string{
		"graph neural networks",
		"graph representation learning",
		"Message Passing",
		"node embeddings",
		"GNN methods",
		"neural networks on graphs",
	}, exp.ExpandedQueries)

	var sawContext bool
	for _, p := range gen.prompts {
		if strings.Contains(p, "Context: chemistry") {
			sawContext = true
		}
	}
	assert.True(t, sawContext, "hint goes into the related-terms prompt")
}

func TestExpandDegraded(t *testing.T) {
	t.Run("generator fails", func(t *testing.T) {
		e := newTestExpander(t, &fakeGenerator{err: errors.New("rate limited")})
		exp := e.Expand(context.Background(), "climate change", "")
		assert.True(t, exp.Degraded)
		assert.Equal(t, []string{"climate change"}, exp.ExpandedQueries)
		assert.Equal(t, []string{"global warming", "climate crisis", "environmental change"}, exp.Synonyms)
		assert.Empty(t, exp.RelatedTerms)
		assert.NotNil(t, exp.RelatedTerms)
	})

	t.Run("no generator", func(t *testing.T) {
		e := newTestExpander(t, nil)
		exp := e.Expand(context.Background(), "covid", "")
		assert.True(t, exp.Degraded)
		assert.Equal(t, []string{"covid"}, exp.ExpandedQueries)
		assert.Len(t, exp.Synonyms, 3)
	})

	t.Run("empty output", func(t *testing.T) {
		e := newTestExpander(t, &fakeGenerator{related: "\n\n", variants: "a rephrasing"})
		exp := e.Expand(context.Background(), "soil", "")
		assert.True(t, exp.Degraded)
		assert.Equal(t, []string{"soil", "a rephrasing"}, exp.ExpandedQueries)
	})
}

func TestVariants(t *testing.T) {
	exp := types.QueryExpansion{ExpandedQueries: []string{"q", "a", "b", "c"}}
	assert.Equal(t, []string{"a", "b"}, Variants(exp, 2))
	assert.Equal(t, []string{"a", "b", "c"}, Variants(exp, 10))
	assert.Nil(t, Variants(exp, 0))
	assert.Nil(t, Variants(types.QueryExpansion{ExpandedQueries: []string{"q"}}, 3))
}

func TestCleanLine(t *testing.T) {
	tests := []struct{ in, want string }{
		{"1. deep learning", "deep learning"},
		{"12) transformers", "transformers"},
		{"- bullet", "bullet"},
		{"* star", "star"},
		{`"quoted"`, "quoted"},
		{"2020 climate data", "2020 climate data"},
		{"   ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanLine(tt.in), tt.in)
	}
}

func TestPlanQueries(t *testing.T) {
	conv := []types.ChatMessage{
		{Role: types.RoleSystem, Content: "be helpful"},
		{Role: types.RoleUser, Content: "What is known about microplastics in soil?"},
	}

	t.Run("parses fenced JSON", func(t *testing.T) {
		gen := &fakeGenerator{plan: "```json\n" + `{"queries":[
			{"query":"microplastics soil ecosystems","focus":"ecology"},
			{"query":"Microplastics Soil Ecosystems","focus":"duplicate"},
			{"query":"","focus":"empty"},
			{"query":"microplastic degradation soil microbes"},
			{"query":"plastic mulch agriculture","focus":"farming"}
		]}` + "\n```"}
		e := newTestExpander(t, gen)
		plan := e.PlanQueries(context.Background(), conv, 2)
		assert.Equal(t, []PlannedQuery{
			{Query: "microplastics soil ecosystems", Focus: "ecology"},
			{Query: "microplastic degradation soil microbes", Focus: "microplastic degradation soil microbes"},
		}, plan)
		require.Len(t, gen.prompts, 1)
		assert.NotContains(t, gen.prompts[0], "be helpful")
		assert.Contains(t, gen.prompts[0], "1 to 2 focused")
	})

	fallback := []PlannedQuery{{Query: "What is known about microplastics in soil?", Focus: OriginalFocus}}

	t.Run("generator error", func(t *testing.T) {
		e := newTestExpander(t, &fakeGenerator{err: errors.New("boom")})
		assert.Equal(t, fallback, e.PlanQueries(context.Background(), conv, 3))
	})

	t.Run("not JSON", func(t *testing.T) {
		e := newTestExpander(t, &fakeGenerator{plan: "Sure! Here are some queries."})
		assert.Equal(t, fallback, e.PlanQueries(context.Background(), conv, 3))
	})

	t.Run("empty queries", func(t *testing.T) {
		e := newTestExpander(t, &fakeGenerator{plan: `{"queries":[]}`})
		assert.Equal(t, fallback, e.PlanQueries(context.Background(), conv, 3))
	})

	t.Run("no generator", func(t *testing.T) {
		assert.Equal(t, fallback, newTestExpander(t, nil).PlanQueries(context.Background(), conv, 0))
		var nilExp *Expander
		assert.Equal(t, fallback, nilExp.PlanQueries(context.Background(), conv, 0))
	})

	t.Run("long message clipped", func(t *testing.T) {
		long := strings.Repeat("ü", types.MaxQueryLength+200)
		plan := newTestExpander(t, nil).PlanQueries(context.Background(), []types.ChatMessage{{Role: types.RoleUser, Content: long}}, 3)
		require.Len(t, plan, 1)
		assert.Equal(t, OriginalFocus, plan[0].Focus)
		assert.Equal(t, strings.Repeat("ü", types.MaxQueryLength), plan[0].Query)
		assert.NoError(t, types.Query{Text: plan[0].Query}.Validate())
	})

	t.Run("no user message", func(t *testing.T) {
		e := newTestExpander(t, &fakeGenerator{})
		assert.Empty(t, e.PlanQueries(context.Background(), []types.ChatMessage{{Role: types.RoleAssistant, Content: "hi"}}, 3))
	})
}

func TestOpenAIGenerator(t *testing.T) {
	var gotModel string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Model string `json:"model"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		gotModel = req.Model
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  req.Model,
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": "  line one\nline two "},
				"finish_reason": "stop",
			}},
		})
	}))
	defer ts.Close()

	g, err := NewOpenAIGenerator("sk-test", "", ts.URL+"/v1", ts.Client())
	require.NoError(t, err)
	text, err := g.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", text)
	assert.Equal(t, defaultOpenAIModel, gotModel)
}

func TestNewGenerator(t *testing.T) {
	ctx := context.Background()

	g, err := NewGenerator(ctx, types.ExpansionConfig{Provider: "none"}, nil)
	require.NoError(t, err)
	assert.Nil(t, g)

	g, err = NewGenerator(ctx, types.ExpansionConfig{Provider: "gemini"}, nil)
	assert.Error(t, err, "gemini without a key")
	assert.Nil(t, g)

	_, err = NewGenerator(ctx, types.ExpansionConfig{Provider: "mistral"}, nil)
	assert.Error(t, err)

	g, err = NewGenerator(ctx, types.ExpansionConfig{Provider: "openai", APIKey: "k"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIGenerator{}, g)
}
