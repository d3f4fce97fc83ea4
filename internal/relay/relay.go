// Package relay forwards a provider's streaming output to a caller-owned
// sink while accumulating the full text and token total for persistence.
package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"polychat/internal/llm"
)

// ErrStreamInterrupted wraps a mid-stream failure. Output already
// forwarded to the sink is not retracted, but the accumulated partial is
// only reachable through Partial(), never through Result().
var ErrStreamInterrupted = errors.New("stream interrupted")

// State is the relay lifecycle position.
type State int

const (
	StateIdle State = iota
	StateStreaming
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Sink receives content deltas in arrival order. Write errors mean the
// caller is gone; the relay stops consuming promptly.
type Sink interface {
	WriteDelta(delta string) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(delta string) error

func (f SinkFunc) WriteDelta(delta string) error { return f(delta) }

// Accumulated is the relay's durable record of a stream.
type Accumulated struct {
	Content string
	// TokensUsed is nil when the provider never self-reported usage
	// during the stream; the caller estimates in that case.
	TokensUsed *int
}

// Relay drives one provider stream to one sink. Single use: create one
// per streaming request.
//
// Not safe for concurrent use; Run is the only goroutine touching state
// while it executes.
type Relay struct {
	state       State
	accumulated strings.Builder
	tokenTotal  int
	sawTokens   bool
	failure     error
}

// New creates an idle relay.
func New() *Relay {
	return &Relay{state: StateIdle}
}

// State returns the relay's current lifecycle position.
func (r *Relay) State() State { return r.state }

// Run consumes the stream until completion, error, or ctx cancellation,
// forwarding every content delta to the sink in arrival order. On normal
// termination the relay is Completed and Result is valid. Any failure —
// provider error, sink write error, cancellation — leaves the relay
// Failed and returns an error wrapping ErrStreamInterrupted.
func (r *Relay) Run(ctx context.Context, stream <-chan llm.Chunk, sink Sink) error {
	if r.state != StateIdle {
		return fmt.Errorf("relay already ran (state %s)", r.state)
	}

	for {
		select {
		case <-ctx.Done():
			return r.fail(ctx.Err())
		case chunk, ok := <-stream:
			if !ok {
				r.state = StateCompleted
				return nil
			}
			r.state = StateStreaming

			if chunk.Err != nil {
				return r.fail(chunk.Err)
			}

			if chunk.TokensDelta > 0 {
				r.tokenTotal += chunk.TokensDelta
				r.sawTokens = true
			}
			if chunk.ContentDelta == "" {
				continue
			}

			r.accumulated.WriteString(chunk.ContentDelta)
			if err := sink.WriteDelta(chunk.ContentDelta); err != nil {
				return r.fail(fmt.Errorf("sink write: %w", err))
			}
		}
	}
}

// Result returns the accumulated record of a completed stream. Calling it
// in any other state is a programming error.
func (r *Relay) Result() (Accumulated, error) {
	if r.state != StateCompleted {
		return Accumulated{}, fmt.Errorf("relay not completed (state %s)", r.state)
	}
	return r.snapshot(), nil
}

// Partial returns whatever accumulated before a failure. Callers that
// persist it must mark the record as interrupted; it is explicitly not a
// completed result.
func (r *Relay) Partial() Accumulated {
	return r.snapshot()
}

func (r *Relay) snapshot() Accumulated {
	acc := Accumulated{Content: r.accumulated.String()}
	if r.sawTokens {
		total := r.tokenTotal
		acc.TokensUsed = &total
	}
	return acc
}

func (r *Relay) fail(cause error) error {
	r.state = StateFailed
	r.failure = cause
	return fmt.Errorf("%w: %w", ErrStreamInterrupted, cause)
}
