// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// EventType tags a StreamEvent.
type EventType string

const (
	EventStatus    EventType = "status"
	EventDocuments EventType = "documents"
	EventChunk     EventType = "response_chunk"
	EventComplete  EventType = "complete"
	EventError     EventType = "error"
)

// Completion is the payload of a complete event.
type Completion struct {
	ProcessingTimeMS int64 `json:"processing_time"`
	TotalDocuments   int   `json:"total_documents"`
}

// StreamEvent is one item of an answer stream. Exactly one payload field
// is meaningful for each Type.
type StreamEvent struct {
	Type       EventType
	Message    string
	Documents  []ScoredDocument
	Chunk      string
	Completion Completion
}

// IsTerminal reports whether no event may follow e.
func (e StreamEvent) IsTerminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

// StatusEvent reports progress.
func StatusEvent(msg string) StreamEvent {
	return StreamEvent{Type: EventStatus, Message: msg}
}

// DocumentsEvent carries the documents the answer is grounded on.
func DocumentsEvent(docs []ScoredDocument) StreamEvent {
	if docs == nil {
		docs = []ScoredDocument{}
	}
	return StreamEvent{Type: EventDocuments, Documents: docs}
}

// ChunkEvent carries a piece of generated answer text.
func ChunkEvent(text string) StreamEvent {
	return StreamEvent{Type: EventChunk, Chunk: text}
}

// CompleteEvent ends a successful stream.
func CompleteEvent(c Completion) StreamEvent {
	return StreamEvent{Type: EventComplete, Completion: c}
}

// ErrorEvent ends a failed stream.
func ErrorEvent(msg string) StreamEvent {
	return StreamEvent{Type: EventError, Message: msg}
}

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LastUserMessage returns the content of the most recent user turn, or "".
func LastUserMessage(msgs []ChatMessage) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser {
			return msgs[i].Content
		}
	}
	return ""
}
