package llm

import (
	"fmt"
)

// Credentials holds the per-provider API keys sourced from process
// configuration. A missing key is only an error for the provider that
// needs it, surfaced when that provider is first requested.
type Credentials struct {
	OpenAIAPIKey    string
	AnthropicAPIKey string
	GeminiAPIKey    string
	// TogetherAPIKey authenticates the OpenAI-compatible endpoint serving
	// the llama and mixtral model families.
	TogetherAPIKey string
	// TogetherBaseURL overrides the compat endpoint, mostly for tests.
	TogetherBaseURL string
}

// AdapterConstructor builds a chat adapter for one provider tag.
type AdapterConstructor func(creds Credentials) (ChatProvider, error)

// Factory creates provider adapters carrying their own credential and
// defaults. Constructors are registered per provider tag so concrete
// adapter packages stay out of this package's import graph.
type Factory struct {
	creds        Credentials
	constructors map[Provider]AdapterConstructor
}

// NewFactory creates a factory bound to the given credentials.
func NewFactory(creds Credentials) *Factory {
	return &Factory{
		creds:        creds,
		constructors: make(map[Provider]AdapterConstructor),
	}
}

// Register installs the constructor for a provider tag. Later
// registrations for the same tag replace earlier ones.
func (f *Factory) Register(p Provider, c AdapterConstructor) {
	f.constructors[p] = c
}

// New builds the adapter for a provider tag. Constructors fail fast with
// ErrMissingCredential when their API key is absent.
func (f *Factory) New(p Provider) (ChatProvider, error) {
	constructor, ok := f.constructors[p]
	if !ok {
		return nil, &UnsupportedModelError{
			ModelID: string(p),
			Reason:  "no adapter registered for provider",
		}
	}

	adapter, err := constructor(f.creds)
	if err != nil {
		return nil, fmt.Errorf("create %s adapter: %w", p, err)
	}
	return adapter, nil
}
