// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package expansion rewrites a search query into related queries and plans
// search queries from a conversation. Synonyms come from a static
// thesaurus; related terms, rephrasings, and query plans come from a text
// Generator when one is configured.
package expansion

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/research-assistant/internal/metrics"
	"github.com/pdiddy/research-assistant/pkg/types"
)

const (
	defaultMaxSynonyms = 5
	defaultMaxTerms    = 3
)

// Expander expands queries. The zero value is not usable; use New.
type Expander struct {
	Thesaurus   Thesaurus
	Generator   Generator
	MaxSynonyms int
	MaxTerms    int
	Logger      *zap.Logger
	Metrics     *metrics.Recorder
}

// New returns an Expander. gen may be nil, in which case every expansion
// is thesaurus-only and marked degraded.
func New(cfg types.ExpansionConfig, gen Generator, logger *zap.Logger, m *metrics.Recorder) (*Expander, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	th := DefaultThesaurus()
	if cfg.ThesaurusFile != "" {
		loaded, err := LoadThesaurus(cfg.ThesaurusFile)
		if err != nil {
			return nil, err
		}
		th = loaded
	}
	e := &Expander{
		Thesaurus:   th,
		Generator:   gen,
		MaxSynonyms: cfg.MaxSynonyms,
		MaxTerms:    cfg.MaxTerms,
		Logger:      logger,
		Metrics:     m,
	}
	if e.MaxSynonyms <= 0 {
		e.MaxSynonyms = defaultMaxSynonyms
	}
	if e.MaxTerms <= 0 {
		e.MaxTerms = defaultMaxTerms
	}
	return e, nil
}

// Expand never fails. hint is optional context about the search. When
// the generator is missing or either generator call fails, the result
// keeps whatever was produced and sets Degraded.
// ExpandedQueries starts with the original query, followed by related
// terms and variants with case-insensitive duplicates removed.
func (e *Expander) Expand(ctx context.Context, query, hint string) types.QueryExpansion {
	query = strings.TrimSpace(query)
	exp := types.QueryExpansion{
		Original:         query,
		Synonyms:         e.Thesaurus.Synonyms(query, e.MaxSynonyms),
		RelatedTerms:     []string{},
		SemanticVariants: []string{},
	}

	if e.Generator == nil {
		exp.Degraded = true
	} else if query != "" {
		var related, variants []string
		var relatedErr, variantsErr error
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			related, relatedErr = e.generateLines(gctx, relatedTermsPrompt(query, hint, e.MaxTerms), e.MaxTerms)
			return nil
		})
		g.Go(func() error {
			variants, variantsErr = e.generateLines(gctx, variantsPrompt(query, e.MaxTerms), e.MaxTerms)
			return nil
		})
		_ = g.Wait()

		if relatedErr != nil || variantsErr != nil {
			exp.Degraded = true
			e.Logger.Warn("query expansion degraded",
				zap.String("query", query),
				zap.NamedError("related_terms", relatedErr),
				zap.NamedError("variants", variantsErr))
		}
		if related != nil {
			exp.RelatedTerms = related
		}
		if variants != nil {
			exp.SemanticVariants = variants
		}
	}
	if exp.Degraded {
		e.Metrics.Degraded("expansion")
	}

	exp.ExpandedQueries = uniqueFold(append(append([]string{query}, exp.RelatedTerms...), exp.SemanticVariants...))
	return exp
}

// Variants returns up to n expanded queries other than the original.
func Variants(exp types.QueryExpansion, n int) []string {
	if len(exp.ExpandedQueries) <= 1 || n <= 0 {
		return nil
	}
	rest := exp.ExpandedQueries[1:]
	if len(rest) > n {
		rest = rest[:n]
	}
	return rest
}

func (e *Expander) generateLines(ctx context.Context, prompt string, max int) ([]string, error) {
	text, err := e.Generator.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	lines := parseLines(text, max)
	if len(lines) == 0 {
		return nil, fmt.Errorf("generator returned no usable lines")
	}
	return lines, nil
}

func relatedTermsPrompt(query, hint string, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Given the academic search query: %q\n", query)
	if strings.TrimSpace(hint) != "" {
		fmt.Fprintf(&b, "Context: %s\n", hint)
	}
	fmt.Fprintf(&b, "\nGenerate %d related academic terms or phrases that would help find relevant research papers.\n", n)
	b.WriteString("Focus on technical terminology, related research areas, and methodological approaches.\n")
	b.WriteString("Return only the terms, one per line, without explanations.")
	return b.String()
}

func variantsPrompt(query string, n int) string {
	return fmt.Sprintf("Rephrase this academic search query in %d different ways while keeping its meaning:\n%q\n\n"+
		"Use different word choices and academic phrasing.\n"+
		"Return only the rephrased queries, one per line.", n, query)
}

// parseLines splits generator output into at most max cleaned lines,
// dropping list markers and surrounding quotes.
func parseLines(text string, max int) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = cleanLine(line)
		if line == "" {
			continue
		}
		out = append(out, line)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}

func cleanLine(line string) string {
	line = strings.TrimSpace(line)
	line = strings.TrimLeft(line, "-*•")
	line = strings.TrimSpace(line)
	// "1." or "2)" prefixes.
	if i := strings.IndexAny(line, ".)"); i > 0 && i <= 2 && isDigits(line[:i]) {
		line = strings.TrimSpace(line[i+1:])
	}
	return strings.Trim(line, "\"'`")
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func uniqueFold(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}
