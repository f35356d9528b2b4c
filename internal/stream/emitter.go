// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stream

import (
	"context"
	"errors"
	"fmt"

	"github.com/pdiddy/research-assistant/internal/metrics"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// State is the lifecycle position of one answer stream.
type State int

const (
	StatePending State = iota
	StateStreaming
	StateComplete
	StateErrored
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateStreaming:
		return "streaming"
	case StateComplete:
		return "complete"
	case StateErrored:
		return "errored"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	errCancelled         = errors.New("stream cancelled")
	errInvalidTransition = errors.New("invalid stream transition")
)

// emitter is the only writer of a stream's channel. It rejects events the
// state machine does not allow: a documents event outside PENDING, a chunk
// or terminal before documents, and anything after a terminal.
type emitter struct {
	ctx     context.Context
	out     chan<- types.StreamEvent
	state   State
	metrics *metrics.Recorder
}

func newEmitter(ctx context.Context, out chan<- types.StreamEvent, m *metrics.Recorder) *emitter {
	return &emitter{ctx: ctx, out: out, metrics: m}
}

// emit sends ev, blocking until the reader takes it or ctx is done.
func (e *emitter) emit(ev types.StreamEvent) error {
	next, err := e.transition(ev)
	if err != nil {
		return err
	}
	select {
	case e.out <- ev:
	case <-e.ctx.Done():
		return errCancelled
	}
	e.state = next
	e.metrics.StreamEvent(string(ev.Type))
	return nil
}

func (e *emitter) transition(ev types.StreamEvent) (State, error) {
	if e.terminated() {
		return e.state, fmt.Errorf("%w: %s after %s", errInvalidTransition, ev.Type, e.state)
	}
	switch ev.Type {
	case types.EventStatus:
		return e.state, nil
	case types.EventDocuments:
		if e.state != StatePending {
			return e.state, fmt.Errorf("%w: documents sent twice", errInvalidTransition)
		}
		return StateStreaming, nil
	case types.EventChunk, types.EventComplete:
		if e.state != StateStreaming {
			return e.state, fmt.Errorf("%w: %s before documents", errInvalidTransition, ev.Type)
		}
		if ev.Type == types.EventComplete {
			return StateComplete, nil
		}
		return StateStreaming, nil
	case types.EventError:
		return StateErrored, nil
	default:
		return e.state, fmt.Errorf("%w: unknown event type %q", errInvalidTransition, ev.Type)
	}
}

func (e *emitter) terminated() bool {
	return e.state == StateComplete || e.state == StateErrored
}

func (e *emitter) status(msg string) error {
	return e.emit(types.StatusEvent(msg))
}

func (e *emitter) fail(msg string) error {
	return e.emit(types.ErrorEvent(msg))
}
