// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-assistant/pkg/types"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func record(id, query string, offset time.Duration, failed ...string) types.SearchRecord {
	return types.SearchRecord{
		ID:                  id,
		Query:               query,
		Timestamp:           base.Add(offset),
		TotalResults:        10,
		ResponseTimeMS:      200,
		DatabasesQueried:    []string{"arxiv", "openalex"},
		SuccessfulDatabases: []string{"arxiv"},
		FailedDatabases:     failed,
	}
}

func TestRecordAndQueryLimit(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, record("a", "first", 0)))
	require.NoError(t, s.Record(ctx, record("b", "second", time.Second, "openalex")))
	require.NoError(t, s.Record(ctx, record("c", "third", 1500*time.Millisecond)))

	got, err := s.Query(ctx, Filter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{got[0].ID, got[1].ID, got[2].ID}, "newest first")

	want := record("b", "second", time.Second, "openalex")
	if diff := cmp.Diff(want, got[1]); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{}, got[0].FailedDatabases, "nil lists come back empty")

	limited, err := s.Query(ctx, Filter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestRecordRequiresID(t *testing.T) {
	s := testStore(t)
	assert.Error(t, s.Record(context.Background(), types.SearchRecord{Query: "q"}))
}

func TestRecordReplacesSameID(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	require.NoError(t, s.Record(ctx, record("a", "old", 0)))
	require.NoError(t, s.Record(ctx, record("a", "new", time.Minute)))

	got, err := s.Query(ctx, Filter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].Query)
}

func TestQueryFilters(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	require.NoError(t, s.Record(ctx, record("a", "Graph Neural Networks", 0)))
	require.NoError(t, s.Record(ctx, record("b", "protein folding", time.Hour, "openalex")))
	other := record("c", "graph_theory 100%", 2*time.Hour)
	other.DatabasesQueried = []string{"semantic_scholar"}
	require.NoError(t, s.Record(ctx, other))

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"all", Filter{}, []string{"c", "b", "a"}},
		{"contains case-insensitive", Filter{Contains: "graph"}, []string{"c", "a"}},
		{"like wildcards are literal", Filter{Contains: "_"}, []string{"c"}},
		{"percent literal", Filter{Contains: "100%"}, []string{"c"}},
		{"database", Filter{Database: "arxiv"}, []string{"b", "a"}},
		{"failed only", Filter{FailedOnly: true}, []string{"b"}},
		{"since", Filter{Since: base.Add(30 * time.Minute)}, []string{"c", "b"}},
		{"limit", Filter{Limit: 1}, []string{"c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Query(ctx, tt.filter)
			require.NoError(t, err)
			ids := make([]string, len(got))
			for i, r := range got {
				ids[i] = r.ID
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestSummarize(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	empty, err := s.Summarize(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.Searches)
	assert.Empty(t, empty.Failures)

	require.NoError(t, s.Record(ctx, record("a", "q1", 0, "openalex")))
	r := record("b", "q2", time.Second, "openalex", "arxiv")
	r.ResponseTimeMS = 400
	r.TotalResults = 20
	require.NoError(t, s.Record(ctx, r))

	sum, err := s.Summarize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Searches)
	assert.InDelta(t, 300, sum.AvgResponseTimeMS, 1e-9)
	assert.InDelta(t, 15, sum.AvgResults, 1e-9)
	assert.Equal(t, map[string]int{"openalex": 2, "arxiv": 1}, sum.Failures)
}

func TestConcurrentRecord(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Record(ctx, record(fmt.Sprintf("id-%d", i), "q", time.Duration(i)*time.Millisecond)); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	got, err := s.Query(ctx, Filter{Limit: 100})
	require.NoError(t, err)
	assert.Len(t, got, 20)
}

func TestNewStoreEmptyPath(t *testing.T) {
	_, err := NewStore("")
	assert.Error(t, err)
}
