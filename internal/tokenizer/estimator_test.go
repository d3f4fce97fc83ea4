package tokenizer

import (
	"testing"

	"polychat/internal/llm"
)

func newTestEstimator(t *testing.T) *Estimator {
	t.Helper()
	e := NewEstimator()
	// Touching an encoding may download BPE data on first use.
	if _, err := e.Estimate("gpt-4o", nil, ""); err != nil {
		t.Skipf("tokenizer data unavailable: %v", err)
	}
	return e
}

func TestEstimateDeterministic(t *testing.T) {
	e := newTestEstimator(t)

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: "You are a helpful assistant."},
		{Role: llm.RoleUser, Content: "Summarize the plot of Hamlet."},
	}
	response := "Hamlet is a tragedy about a Danish prince."

	first, err := e.Estimate("gpt-4o", messages, response)
	if err != nil {
		t.Fatalf("Estimate() error = %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := e.Estimate("gpt-4o", messages, response)
		if err != nil {
			t.Fatalf("Estimate() error = %v", err)
		}
		if again != first {
			t.Fatalf("estimate changed between calls: %d then %d", first, again)
		}
	}
}

func TestEstimateIncludesFramingOverhead(t *testing.T) {
	e := newTestEstimator(t)

	// An exchange with no text still costs the framing tokens.
	got, err := e.Estimate("gpt-4o", []llm.Message{{Role: llm.RoleUser, Content: ""}}, "")
	if err != nil {
		t.Fatalf("Estimate() error = %v", err)
	}
	if want := perMessageOverhead + replyPrimingTokens; got != want {
		t.Errorf("Estimate() = %d, want %d", got, want)
	}
}

func TestEstimateGrowsWithContent(t *testing.T) {
	e := newTestEstimator(t)

	short, err := e.Estimate("gpt-4o", []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, "hello")
	if err != nil {
		t.Fatalf("Estimate() error = %v", err)
	}
	long, err := e.Estimate("gpt-4o", []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
		"hello there, here is a much longer response with many more words in it")
	if err != nil {
		t.Fatalf("Estimate() error = %v", err)
	}
	if long <= short {
		t.Errorf("longer response estimated %d tokens, short one %d", long, short)
	}
}

func TestEstimateUnknownModelFallsBack(t *testing.T) {
	e := newTestEstimator(t)

	// Models tiktoken does not know resolve through the fallback encoding.
	got, err := e.Estimate("llama-3.3-70b", []llm.Message{{Role: llm.RoleUser, Content: "count me"}}, "ok")
	if err != nil {
		t.Fatalf("Estimate() error = %v", err)
	}
	if got <= perMessageOverhead+replyPrimingTokens {
		t.Errorf("Estimate() = %d, expected content tokens on top of overhead", got)
	}
}
