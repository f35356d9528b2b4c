// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// Encoder writes stream events as server-sent event frames.
type Encoder interface {
	// Start writes anything that precedes the first event.
	Start(w io.Writer) error
	Encode(w io.Writer, ev types.StreamEvent) error
	// Finish is called after a terminal event.
	Finish(w io.Writer) error
}

type flusher interface {
	Flush()
}

// Copy drains events into w through enc, flushing after every frame when w
// supports it. Finish runs only if a terminal event was seen; a stream that
// was cancelled just stops.
func Copy(w io.Writer, events <-chan types.StreamEvent, enc Encoder) error {
	flush := func() {
		if f, ok := w.(flusher); ok {
			f.Flush()
		}
	}
	if err := enc.Start(w); err != nil {
		return err
	}
	flush()

	terminated := false
	for ev := range events {
		if err := enc.Encode(w, ev); err != nil {
			return err
		}
		flush()
		if ev.IsTerminal() {
			terminated = true
		}
	}
	if !terminated {
		return nil
	}
	if err := enc.Finish(w); err != nil {
		return err
	}
	flush()
	return nil
}

func writeData(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding frame: %w", err)
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", b)
	return err
}

// NativeEncoder writes data: {"type": ...} frames.
type NativeEncoder struct{}

func (NativeEncoder) Start(io.Writer) error  { return nil }
func (NativeEncoder) Finish(io.Writer) error { return nil }

func (NativeEncoder) Encode(w io.Writer, ev types.StreamEvent) error {
	frame := map[string]any{"type": ev.Type}
	switch ev.Type {
	case types.EventStatus, types.EventError:
		frame["message"] = ev.Message
	case types.EventDocuments:
		docs := ev.Documents
		if docs == nil {
			docs = []types.ScoredDocument{}
		}
		frame["documents"] = docs
	case types.EventChunk:
		frame["chunk"] = ev.Chunk
	case types.EventComplete:
		frame["processing_time"] = ev.Completion.ProcessingTimeMS
		frame["total_documents"] = ev.Completion.TotalDocuments
	}
	return writeData(w, frame)
}

// ChatCompletionEncoder writes OpenAI chat.completion.chunk frames. Status
// and documents events travel as <event>...</event> text inside the
// content delta and are dropped when Events is false. The stream ends
// with data: [DONE].
type ChatCompletionEncoder struct {
	ID      string
	Created int64
	Model   string
	Events  bool
}

// NewChatCompletionEncoder returns an encoder with a fresh completion ID.
func NewChatCompletionEncoder(model string, events bool) *ChatCompletionEncoder {
	return &ChatCompletionEncoder{
		ID:      "chatcmpl-" + uuid.NewString(),
		Created: time.Now().Unix(),
		Model:   model,
		Events:  events,
	}
}

func (e *ChatCompletionEncoder) frame(content string, finish openai.FinishReason) openai.ChatCompletionStreamResponse {
	return openai.ChatCompletionStreamResponse{
		ID:      e.ID,
		Object:  "chat.completion.chunk",
		Created: e.Created,
		Model:   e.Model,
		Choices: []openai.ChatCompletionStreamChoice{{
			Index: 0,
			Delta: openai.ChatCompletionStreamChoiceDelta{
				Role:    openai.ChatMessageRoleAssistant,
				Content: content,
			},
			FinishReason: finish,
		}},
	}
}

// Start writes the empty assistant delta.
func (e *ChatCompletionEncoder) Start(w io.Writer) error {
	return writeData(w, e.frame("", ""))
}

func (e *ChatCompletionEncoder) Encode(w io.Writer, ev types.StreamEvent) error {
	switch ev.Type {
	case types.EventStatus:
		if !e.Events {
			return nil
		}
		return writeData(w, e.frame(wrapEvent(ev.Message), ""))
	case types.EventDocuments:
		if !e.Events {
			return nil
		}
		docs := ev.Documents
		if docs == nil {
			docs = []types.ScoredDocument{}
		}
		b, err := json.Marshal(docs)
		if err != nil {
			return fmt.Errorf("encoding documents: %w", err)
		}
		return writeData(w, e.frame(wrapEvent("documents:"+string(b)), ""))
	case types.EventChunk:
		return writeData(w, e.frame(ev.Chunk, ""))
	case types.EventComplete:
		return writeData(w, e.frame("", openai.FinishReasonStop))
	case types.EventError:
		return writeData(w, e.frame(wrapEvent("error:"+ev.Message), openai.FinishReasonStop))
	default:
		return nil
	}
}

// Finish writes the [DONE] sentinel.
func (e *ChatCompletionEncoder) Finish(w io.Writer) error {
	_, err := io.WriteString(w, "data: [DONE]\n\n")
	return err
}

func wrapEvent(body string) string {
	return "<event>" + body + "</event>"
}
