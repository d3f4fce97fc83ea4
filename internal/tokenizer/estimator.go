// Package tokenizer estimates token usage for providers that do not
// self-report it. Estimates are deterministic: the same model, messages,
// and response always produce the same count.
package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"polychat/internal/llm"
)

const fallbackEncoding = "cl100k_base"

// Per-message framing overhead, modeling the tokens a provider spends on
// role markers and message separators. The OpenAI values follow the
// documented chat format (4 per message, 2 to prime the reply); the
// compatible llama/mixtral endpoints use the same framing approximation
// over the cl100k_base encoding. Exactness is not required, determinism is.
const (
	perMessageOverhead = 4
	replyPrimingTokens = 2
)

// Estimator counts tokens with the provider family's tokenizer. Encodings
// are cached; tiktoken initialization is expensive.
type Estimator struct {
	mu        sync.Mutex
	encodings map[string]*tiktoken.Tiktoken
}

// NewEstimator creates an Estimator with an empty encoding cache.
func NewEstimator() *Estimator {
	return &Estimator{encodings: make(map[string]*tiktoken.Tiktoken)}
}

// Estimate returns the token count for a completed exchange: every message
// plus the response text, with framing overhead added per message.
func (e *Estimator) Estimate(model string, messages []llm.Message, responseText string) (int, error) {
	enc, err := e.encodingFor(model)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, m := range messages {
		total += len(enc.Encode(m.Content, nil, nil)) + perMessageOverhead
	}
	total += replyPrimingTokens
	total += len(enc.Encode(responseText, nil, nil))
	return total, nil
}

// encodingFor resolves the tokenizer for a model name, falling back to
// cl100k_base for model families tiktoken does not know (llama, mixtral).
func (e *Estimator) encodingFor(model string) (*tiktoken.Tiktoken, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if enc, ok := e.encodings[model]; ok {
		return enc, nil
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return nil, fmt.Errorf("load fallback encoding: %w", err)
		}
	}
	e.encodings[model] = enc
	return enc, nil
}
