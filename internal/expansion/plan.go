// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package expansion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// DefaultMaxQueries caps planned queries when the caller passes max <= 0.
const DefaultMaxQueries = 3

// maxPlanHistory bounds how many trailing messages go into the planning prompt.
const maxPlanHistory = 6

// PlannedQuery is one search to run for a conversation.
type PlannedQuery struct {
	Query string `json:"query"`
	Focus string `json:"focus"`
}

// OriginalFocus labels a fallback plan built from the user's own words.
const OriginalFocus = "Original query"

// Fallback is the plan for a single search over the user's own words,
// clipped to the longest query the orchestrator accepts.
func Fallback(text string) PlannedQuery {
	text = strings.TrimSpace(text)
	if r := []rune(text); len(r) > types.MaxQueryLength {
		text = strings.TrimSpace(string(r[:types.MaxQueryLength]))
	}
	return PlannedQuery{Query: text, Focus: OriginalFocus}
}

// PlanQueries asks the generator for 1..max focused database queries that
// answer the latest user message. Any failure (no generator, bad JSON, no
// usable queries) falls back to a single query made of the last user
// message, clipped by Fallback. The result is empty only when there is no
// user message.
func (e *Expander) PlanQueries(ctx context.Context, messages []types.ChatMessage, max int) []PlannedQuery {
	if max <= 0 {
		max = DefaultMaxQueries
	}
	last := strings.TrimSpace(types.LastUserMessage(messages))
	if last == "" {
		return nil
	}
	fallback := []PlannedQuery{Fallback(last)}
	if e == nil || e.Generator == nil {
		return fallback
	}

	text, err := e.Generator.Generate(ctx, planPrompt(messages, max))
	if err != nil {
		e.Logger.Warn("query planning failed, using last user message", zap.Error(err))
		e.Metrics.Degraded("planning")
		return fallback
	}
	plan, err := parsePlan(text, max)
	if err != nil {
		e.Logger.Warn("query plan unparseable, using last user message", zap.Error(err))
		e.Metrics.Degraded("planning")
		return fallback
	}
	return plan
}

func planPrompt(messages []types.ChatMessage, max int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert academic research assistant. Generate 1 to %d focused search queries for academic databases that would find papers answering the user's latest research question.\n", max)
	b.WriteString("Each query should cover a different aspect of the topic, use academic terminology, and stay concise.\n")
	b.WriteString("Respond with JSON only, in the form {\"queries\":[{\"query\":\"...\",\"focus\":\"...\"}]}.\n\nConversation:\n")

	start := 0
	if len(messages) > maxPlanHistory {
		start = len(messages) - maxPlanHistory
	}
	for _, m := range messages[start:] {
		if m.Role == types.RoleSystem {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", m.Role, strings.TrimSpace(m.Content))
	}
	return b.String()
}

// parsePlan reads {"queries":[...]} from text, tolerating code fences and
// prose around the JSON object.
func parsePlan(text string, max int) ([]PlannedQuery, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in %q", truncate(text, 80))
	}
	var body struct {
		Queries []PlannedQuery `json:"queries"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &body); err != nil {
		return nil, fmt.Errorf("decoding plan: %w", err)
	}

	seen := make(map[string]bool)
	var out []PlannedQuery
	for _, q := range body.Queries {
		q.Query = strings.TrimSpace(q.Query)
		q.Focus = strings.TrimSpace(q.Focus)
		key := strings.ToLower(q.Query)
		if q.Query == "" || seen[key] {
			continue
		}
		if len([]rune(q.Query)) > types.MaxQueryLength {
			continue
		}
		seen[key] = true
		if q.Focus == "" {
			q.Focus = q.Query
		}
		out = append(out, q)
		if len(out) == max {
			break
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("plan contained no queries")
	}
	return out, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
