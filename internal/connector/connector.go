// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package connector adapts external academic search providers to a single
// Document schema. Each provider (arXiv, Semantic Scholar, OpenAlex,
// SearxNG) implements Connector; the Registry holds the set chosen at
// startup and is read-only afterwards.
package connector

import (
	"context"
	"fmt"
	"time"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// DefaultLimit is used when a Request carries no limit.
const DefaultLimit = 20

// Request is what a connector is asked for.
type Request struct {
	Query string
	Limit int

	// YearMin and YearMax bound the publication year; zero leaves the side open.
	YearMin int
	YearMax int
}

func (r Request) limit(max int) int {
	n := r.Limit
	if n <= 0 {
		n = DefaultLimit
	}
	if max > 0 && n > max {
		n = max
	}
	return n
}

// Connector searches a single provider. Search must honor the context
// deadline; "no results" is an empty slice, anything else that went wrong
// is an error. Implementations are safe for concurrent use.
type Connector interface {
	Name() string
	Search(ctx context.Context, req Request) ([]types.Document, error)
	Health(ctx context.Context) types.HealthReport
}

// probe times fn and turns its outcome into a HealthReport.
func probe(ctx context.Context, fn func(ctx context.Context) error) types.HealthReport {
	start := time.Now()
	err := fn(ctx)
	return types.HealthReport{
		Available: err == nil,
		Latency:   time.Since(start),
		Err:       err,
	}
}

// searchProbe is the common health check: a one-result search that must
// return without error.
func searchProbe(ctx context.Context, c Connector, query string) types.HealthReport {
	return probe(ctx, func(ctx context.Context) error {
		if _, err := c.Search(ctx, Request{Query: query, Limit: 1}); err != nil {
			return fmt.Errorf("%s health check failed: %w", c.Name(), err)
		}
		return nil
	})
}
