// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"fmt"
	"strings"

	"github.com/pdiddy/research-assistant/pkg/types"
)

const ragSystemPrompt = `You are an expert academic research assistant. Answer the user's research question using the numbered academic documents provided.

Guidelines:
- Use only the information from the provided documents
- Cite documents by number in square brackets, for example [1] or [2][3], when making claims
- If the documents do not contain enough information to answer the question, say so
- Synthesize information across sources rather than summarizing each one
- Maintain an academic tone
- If sources conflict, acknowledge it and explain the different perspectives`

const maxAbstractRunes = 1500

// BuildRAGMessages returns the conversation to send for a grounded answer:
// the system prompt, the earlier turns of history, and the last user
// question restated with the numbered context documents.
func BuildRAGMessages(history []types.ChatMessage, docs []types.ScoredDocument) []types.ChatMessage {
	last := -1
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == types.RoleUser {
			last = i
			break
		}
	}

	out := []types.ChatMessage{{Role: types.RoleSystem, Content: ragSystemPrompt}}
	for i, m := range history {
		if i == last || m.Role == types.RoleSystem {
			continue
		}
		out = append(out, m)
	}

	question := ""
	if last >= 0 {
		question = history[last].Content
	}
	out = append(out, types.ChatMessage{Role: types.RoleUser, Content: groundedQuestion(question, docs)})
	return out
}

func groundedQuestion(question string, docs []types.ScoredDocument) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User question: %s\n\nRelevant academic documents:\n", question)
	for i, d := range docs {
		fmt.Fprintf(&b, "\n--- Document [%d] ---\n", i+1)
		fmt.Fprintf(&b, "Title: %s\n", d.Title)
		fmt.Fprintf(&b, "Authors: %s\n", authorList(d.Authors))
		if y := d.Year(); y > 0 {
			fmt.Fprintf(&b, "Year: %d\n", y)
		}
		if d.Venue != "" && d.Venue != types.Unknown {
			fmt.Fprintf(&b, "Venue: %s\n", d.Venue)
		}
		abstract := d.Abstract
		if abstract == "" {
			abstract = "No abstract available"
		}
		fmt.Fprintf(&b, "Abstract: %s\n", clip(abstract, maxAbstractRunes))
	}
	b.WriteString("\nAnswer the question based on the documents above, citing them as [n].")
	return b.String()
}

func authorList(authors []types.Author) string {
	if len(authors) == 0 {
		return "Unknown Authors"
	}
	names := make([]string, 0, len(authors))
	for _, a := range authors {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

func clip(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
