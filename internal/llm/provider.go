package llm

import "context"

// ChatProvider is the uniform invocation contract every chat adapter
// satisfies. Adapters translate between this shape and their provider's
// wire format; nothing else in the system knows a provider's API.
//
// Stream returns a finite, single-consumption sequence of chunks. The
// channel is closed when the provider signals completion or after a chunk
// carrying a terminal Err. Adapters stop producing promptly when ctx is
// cancelled.
type ChatProvider interface {
	// Name returns the provider tag this adapter serves.
	Name() Provider

	// Invoke sends the full conversation and blocks for the complete
	// response. Adapters perform no persistence; the outbound call is the
	// only side effect.
	Invoke(ctx context.Context, req *Request) (*Result, error)

	// Stream sends the conversation and delivers the response
	// incrementally. An error return means the stream never started;
	// mid-stream failures arrive as a Chunk with Err set.
	Stream(ctx context.Context, req *Request) (<-chan Chunk, error)
}

// PrepareMessages filters blank content and rejects an effectively empty
// conversation. Every adapter calls this before touching the wire.
func PrepareMessages(messages []Message) ([]Message, error) {
	filtered := FilterMessages(messages)
	if len(filtered) == 0 {
		return nil, ErrNoValidMessages
	}
	return filtered, nil
}
