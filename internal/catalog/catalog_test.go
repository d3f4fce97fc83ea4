package catalog

import (
	"testing"

	"polychat/internal/llm"
)

func TestCatalogEntriesParse(t *testing.T) {
	for _, categories := range [][]Category{ChatModels, ImageModels} {
		for _, cat := range categories {
			for _, opt := range cat.Options {
				if _, err := llm.ParseModelID(opt.Value); err != nil {
					t.Errorf("catalog entry %q does not parse: %v", opt.Value, err)
				}
			}
		}
	}
}

func TestChatCatalogHasNoImageProviders(t *testing.T) {
	for _, cat := range ChatModels {
		for _, opt := range cat.Options {
			id, err := llm.ParseModelID(opt.Value)
			if err != nil {
				continue
			}
			if id.IsImage() {
				t.Errorf("chat catalog lists image provider entry %q", opt.Value)
			}
		}
	}
	for _, cat := range ImageModels {
		for _, opt := range cat.Options {
			id, err := llm.ParseModelID(opt.Value)
			if err != nil {
				continue
			}
			if !id.IsImage() {
				t.Errorf("image catalog lists chat provider entry %q", opt.Value)
			}
		}
	}
}

func TestIsPro(t *testing.T) {
	tests := []struct {
		modelID string
		want    bool
	}{
		{"openai:gpt-3.5-turbo", false},
		{"openai:gpt-4o", true},
		{"anthropic:claude-3-5-haiku-latest", false},
		{"imagegen:flux", true},
		{"dalle:dall-e-2", false},
		// Unknown identifiers are gated, never silently free.
		{"openai:gpt-99", true},
		{"not-even-a-model", true},
	}

	for _, tt := range tests {
		if got := IsPro(tt.modelID); got != tt.want {
			t.Errorf("IsPro(%q) = %v, want %v", tt.modelID, got, tt.want)
		}
	}
}
