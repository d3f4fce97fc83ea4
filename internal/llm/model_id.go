package llm

import (
	"fmt"
	"strings"
)

// Provider identifies one external generation backend.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderGemini    Provider = "gemini"
	ProviderLlama     Provider = "llama"
	ProviderMixtral   Provider = "mixtral"
	ProviderAnthropic Provider = "anthropic"
	ProviderImageGen  Provider = "imagegen"
	ProviderDalle     Provider = "dalle"
)

// BillingUnit is what a provider's usage is metered in.
type BillingUnit int

const (
	BillTokens BillingUnit = iota
	BillImages
)

// ModelID is a parsed "provider:model" identifier. The provider tag alone
// determines which adapter handles the request and which counter is billed.
type ModelID struct {
	Provider Provider
	Model    string
}

// BillingUnit returns tokens for chat providers and images for the two
// image-generation providers.
func (m ModelID) BillingUnit() BillingUnit {
	switch m.Provider {
	case ProviderImageGen, ProviderDalle:
		return BillImages
	default:
		return BillTokens
	}
}

// IsImage reports whether the identifier targets an image-generation
// provider rather than a chat provider.
func (m ModelID) IsImage() bool {
	return m.BillingUnit() == BillImages
}

func (m ModelID) String() string {
	return string(m.Provider) + ":" + m.Model
}

// ParseModelID splits a "provider:model" identifier and validates the
// provider tag. Parsing happens once at the boundary; nothing downstream
// inspects the raw string again.
func ParseModelID(s string) (ModelID, error) {
	if s == "" {
		return ModelID{}, &UnsupportedModelError{ModelID: s, Reason: "empty model identifier"}
	}

	provider, model, found := strings.Cut(s, ":")
	if !found {
		return ModelID{}, &UnsupportedModelError{ModelID: s, Reason: "expected provider:model"}
	}
	if provider == "" {
		return ModelID{}, &UnsupportedModelError{ModelID: s, Reason: "provider tag is empty"}
	}
	if model == "" {
		return ModelID{}, &UnsupportedModelError{ModelID: s, Reason: "model name is empty"}
	}

	switch p := Provider(strings.ToLower(provider)); p {
	case ProviderOpenAI, ProviderGemini, ProviderLlama, ProviderMixtral,
		ProviderAnthropic, ProviderImageGen, ProviderDalle:
		return ModelID{Provider: p, Model: model}, nil
	default:
		return ModelID{}, &UnsupportedModelError{
			ModelID: s,
			Reason:  fmt.Sprintf("unrecognized provider %q", provider),
		}
	}
}
