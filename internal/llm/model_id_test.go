package llm

import (
	"errors"
	"testing"
)

func TestParseModelID(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantProvider Provider
		wantModel    string
		wantErr      bool
	}{
		{
			name:         "openai model",
			input:        "openai:gpt-4o",
			wantProvider: ProviderOpenAI,
			wantModel:    "gpt-4o",
		},
		{
			name:         "anthropic model",
			input:        "anthropic:claude-sonnet-4-5",
			wantProvider: ProviderAnthropic,
			wantModel:    "claude-sonnet-4-5",
		},
		{
			name:         "gemini model",
			input:        "gemini:gemini-2.0-flash",
			wantProvider: ProviderGemini,
			wantModel:    "gemini-2.0-flash",
		},
		{
			name:         "model name containing colons",
			input:        "llama:meta-llama/Llama-3.3-70B:free",
			wantProvider: ProviderLlama,
			wantModel:    "meta-llama/Llama-3.3-70B:free",
		},
		{
			name:         "provider tag is case-insensitive",
			input:        "OpenAI:gpt-4o",
			wantProvider: ProviderOpenAI,
			wantModel:    "gpt-4o",
		},
		{
			name:         "image provider",
			input:        "imagegen:flux",
			wantProvider: ProviderImageGen,
			wantModel:    "flux",
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
		{
			name:    "no separator",
			input:   "gpt-4o",
			wantErr: true,
		},
		{
			name:    "empty provider",
			input:   ":gpt-4o",
			wantErr: true,
		},
		{
			name:    "empty model",
			input:   "openai:",
			wantErr: true,
		},
		{
			name:    "unknown provider",
			input:   "cohere:command-r",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseModelID(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseModelID(%q) = %v, want error", tt.input, got)
				}
				var modelErr *UnsupportedModelError
				if !errors.As(err, &modelErr) {
					t.Errorf("error type = %T, want *UnsupportedModelError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseModelID(%q) error = %v", tt.input, err)
			}
			if got.Provider != tt.wantProvider {
				t.Errorf("Provider = %q, want %q", got.Provider, tt.wantProvider)
			}
			if got.Model != tt.wantModel {
				t.Errorf("Model = %q, want %q", got.Model, tt.wantModel)
			}
		})
	}
}

func TestModelIDBillingUnit(t *testing.T) {
	tests := []struct {
		provider  Provider
		want      BillingUnit
		wantImage bool
	}{
		{ProviderOpenAI, BillTokens, false},
		{ProviderGemini, BillTokens, false},
		{ProviderLlama, BillTokens, false},
		{ProviderMixtral, BillTokens, false},
		{ProviderAnthropic, BillTokens, false},
		{ProviderImageGen, BillImages, true},
		{ProviderDalle, BillImages, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.provider), func(t *testing.T) {
			id := ModelID{Provider: tt.provider, Model: "m"}
			if got := id.BillingUnit(); got != tt.want {
				t.Errorf("BillingUnit() = %v, want %v", got, tt.want)
			}
			if got := id.IsImage(); got != tt.wantImage {
				t.Errorf("IsImage() = %v, want %v", got, tt.wantImage)
			}
		})
	}
}

func TestModelIDString(t *testing.T) {
	id := ModelID{Provider: ProviderAnthropic, Model: "claude-sonnet-4-5"}
	if got := id.String(); got != "anthropic:claude-sonnet-4-5" {
		t.Errorf("String() = %q", got)
	}
}
