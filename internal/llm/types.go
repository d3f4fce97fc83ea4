package llm

import "strings"

// Message roles accepted by every provider adapter.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single entry in a conversation history. Ordering is
// significant: the slice index is the chronological position.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the normalized request passed to a provider adapter.
// Kwargs override the adapter's defaults but can never carry credentials;
// adapters bind their own API key at construction time.
type Request struct {
	Model    string
	Messages []Message
	Kwargs   Kwargs
}

// Kwargs holds caller-supplied generation parameters. Nil fields fall back
// to the adapter's defaults.
type Kwargs struct {
	Temperature *float32 `json:"temperature,omitempty"`
	TopP        *float32 `json:"top_p,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

// Result is a completed non-streaming exchange. TokensUsed is nil when the
// provider did not self-report usage; the caller must then estimate via the
// tokenizer instead of fabricating a number.
type Result struct {
	Content    string
	TokensUsed *int
}

// Chunk is one increment of a streaming response. A non-nil Err terminates
// the stream; the channel is closed after the final chunk either way.
type Chunk struct {
	ContentDelta string
	TokensDelta  int
	Err          error
}

// FilterMessages drops messages with empty or whitespace-only content,
// preserving the relative order of the rest. Providers reject empty parts,
// so this runs once at the adapter boundary.
func FilterMessages(messages []Message) []Message {
	filtered := make([]Message, 0, len(messages))
	for _, m := range messages {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		filtered = append(filtered, m)
	}
	return filtered
}
