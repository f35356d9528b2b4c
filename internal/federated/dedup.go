// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package federated

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
	"unicode"

	"github.com/pdiddy/research-assistant/pkg/types"
)

var titleStopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true,
}

// Signature returns the duplicate key for d. A DOI wins over the title:
// "doi:<lowercased doi>". Otherwise the title's content words (lowercased,
// stop-words and words of two characters or fewer dropped, sorted) are
// hashed as "title:<md5>". A title with no content words hashes whole as
// "full_title:<md5>". A document with neither DOI nor title gets "" and
// never collapses.
func Signature(d types.Document) string {
	if doi := strings.ToLower(strings.TrimSpace(d.DOI)); doi != "" {
		return "doi:" + doi
	}
	title := strings.ToLower(strings.TrimSpace(d.Title))
	if title == "" {
		return ""
	}
	if words := contentWords(title); len(words) > 0 {
		return "title:" + md5Hex(strings.Join(words, " "))
	}
	return "full_title:" + md5Hex(strings.Join(strings.Fields(title), " "))
}

func contentWords(title string) []string {
	fields := strings.FieldsFunc(title, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, w := range fields {
		if len([]rune(w)) <= 2 || titleStopWords[w] {
			continue
		}
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Dedup keeps the first document seen for each signature and reports how
// many were discarded. Input order is preserved. Dedup(Dedup(d)) equals
// Dedup(d).
func Dedup(docs []types.Document) ([]types.Document, int) {
	seen := make(map[string]bool, len(docs))
	out := make([]types.Document, 0, len(docs))
	removed := 0
	for _, d := range docs {
		sig := Signature(d)
		if sig != "" {
			if seen[sig] {
				removed++
				continue
			}
			seen[sig] = true
		}
		out = append(out, d)
	}
	return out, removed
}

// DedupScored is Dedup for already-scored documents, used when merging
// the results of several searches.
func DedupScored(docs []types.ScoredDocument) ([]types.ScoredDocument, int) {
	seen := make(map[string]bool, len(docs))
	out := make([]types.ScoredDocument, 0, len(docs))
	removed := 0
	for _, d := range docs {
		sig := Signature(d.Document)
		if sig != "" {
			if seen[sig] {
				removed++
				continue
			}
			seen[sig] = true
		}
		out = append(out, d)
	}
	return out, removed
}
