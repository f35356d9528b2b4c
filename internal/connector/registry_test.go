// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package connector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-assistant/pkg/types"
)

type stubConnector struct{ name string }

func (s stubConnector) Name() string { return s.name }
func (s stubConnector) Search(context.Context, Request) ([]types.Document, error) {
	return []types.Document{}, nil
}
func (s stubConnector) Health(context.Context) types.HealthReport {
	return types.HealthReport{Available: true}
}

func names(cs []Connector) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Name())
	}
	return out
}

func TestNewRegistry(t *testing.T) {
	_, err := NewRegistry(stubConnector{"a"}, stubConnector{"a"})
	assert.ErrorContains(t, err, "duplicate connector")

	_, err = NewRegistry(stubConnector{""})
	assert.ErrorContains(t, err, "empty name")

	r, err := NewRegistry(stubConnector{"a"}, stubConnector{"b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, r.Names())
	assert.Equal(t, 2, r.Len())

	c, ok := r.Get("b")
	require.True(t, ok)
	assert.Equal(t, "b", c.Name())
	_, ok = r.Get("zzz")
	assert.False(t, ok)
}

func TestRegistrySelect(t *testing.T) {
	r, err := NewRegistry(stubConnector{"arxiv"}, stubConnector{"openalex"}, stubConnector{"semantic_scholar"})
	require.NoError(t, err)

	tests := []struct {
		name      string
		allowlist []string
		want      []string
	}{
		{"empty selects all", nil, []string{"arxiv", "openalex", "semantic_scholar"}},
		{"keeps registry order", []string{"semantic_scholar", "arxiv"}, []string{"arxiv", "semantic_scholar"}},
		{"drops unknown", []string{"pubmed", "openalex"}, []string{"openalex"}},
		{"all unknown", []string{"pubmed"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, names(r.Select(tt.allowlist)))
		})
	}

	t.Run("defaults apply to empty allowlist", func(t *testing.T) {
		r, err := NewRegistry(stubConnector{"arxiv"}, stubConnector{"openalex"})
		require.NoError(t, err)
		r, err = r.WithDefaults([]string{"openalex"})
		require.NoError(t, err)
		assert.Equal(t, []string{"openalex"}, names(r.Select(nil)))
		assert.Equal(t, []string{"arxiv"}, names(r.Select([]string{"arxiv"})))

		_, err = r.WithDefaults([]string{"pubmed"})
		assert.Error(t, err)
	})
}

func TestRequestLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, Request{}.limit(0))
	assert.Equal(t, 5, Request{Limit: 5}.limit(100))
	assert.Equal(t, 100, Request{Limit: 500}.limit(100))
}

func TestProbe(t *testing.T) {
	rep := probe(context.Background(), func(context.Context) error {
		time.Sleep(2 * time.Millisecond)
		return nil
	})
	assert.True(t, rep.Available)
	assert.GreaterOrEqual(t, rep.Latency, 2*time.Millisecond)
}
