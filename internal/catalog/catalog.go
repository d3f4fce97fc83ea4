// Package catalog holds the static model catalog consumed by the route
// layer. The isPro flags here are the same data the quota enforcer uses
// for tier gating, so the two can never disagree.
package catalog

// Entry is one selectable model.
type Entry struct {
	Value       string `json:"value"` // full "provider:model" identifier
	Label       string `json:"label"`
	IsPro       bool   `json:"isPro"`
	Description string `json:"description"`
}

// Category groups entries by provider family.
type Category struct {
	Label   string  `json:"label"`
	Options []Entry `json:"options"`
}

// ChatModels is the catalog of chat-capable models.
var ChatModels = []Category{
	{
		Label: "OpenAI",
		Options: []Entry{
			{Value: "openai:gpt-4o-mini", Label: "GPT 4o Mini", IsPro: true, Description: "Affordable and intelligent small model for fast, lightweight tasks"},
			{Value: "openai:gpt-4o", Label: "GPT 4o", IsPro: true, Description: "High-intelligence flagship model for complex, multi-step tasks"},
			{Value: "openai:gpt-4-turbo", Label: "GPT 4 Turbo", IsPro: true, Description: "The previous set of high-intelligence models"},
			{Value: "openai:gpt-3.5-turbo", Label: "GPT 3.5 Turbo", IsPro: false, Description: "A fast, inexpensive model for simple tasks"},
			{Value: "openai:o1-preview", Label: "O1 Preview", IsPro: true, Description: "Reasoning model trained with reinforcement learning"},
			{Value: "openai:o1-mini", Label: "O1 Mini", IsPro: false, Description: "Reasoning model for simpler tasks"},
		},
	},
	{
		Label: "Gemini",
		Options: []Entry{
			{Value: "gemini:gemini-1.5-flash", Label: "Gemini 1.5 Flash", IsPro: true, Description: "Fast and versatile performance across a diverse variety of tasks"},
			{Value: "gemini:gemini-1.5-flash-8b", Label: "Gemini 1.5 Flash-8B", IsPro: false, Description: "High volume and lower intelligence tasks"},
			{Value: "gemini:gemini-1.5-pro", Label: "Gemini 1.5 Pro", IsPro: true, Description: "Complex reasoning tasks requiring more intelligence"},
		},
	},
	{
		Label: "Anthropic",
		Options: []Entry{
			{Value: "anthropic:claude-3-5-sonnet-latest", Label: "Claude 3.5 Sonnet", IsPro: true, Description: "Most capable Claude model for complex tasks"},
			{Value: "anthropic:claude-3-5-haiku-latest", Label: "Claude 3.5 Haiku", IsPro: false, Description: "Fast Claude model for everyday tasks"},
		},
	},
	{
		Label: "Open Models",
		Options: []Entry{
			{Value: "llama:meta-llama/Llama-3.3-70B-Instruct-Turbo", Label: "Llama 3.3 70B", IsPro: false, Description: "Open-weights instruction model served over a compatible endpoint"},
			{Value: "mixtral:mistralai/Mixtral-8x7B-Instruct-v0.1", Label: "Mixtral 8x7B", IsPro: false, Description: "Sparse mixture-of-experts open model"},
		},
	},
}

// ImageModels is the catalog of image-generation models.
var ImageModels = []Category{
	{
		Label: "ImageGen",
		Options: []Entry{
			{Value: "imagegen:flux", Label: "Flux", IsPro: true, Description: "Most realistic images"},
			{Value: "imagegen:midjourney", Label: "Midjourney", IsPro: false, Description: "Midjourney-style images"},
			{Value: "imagegen:sdxl", Label: "SDXL", IsPro: false, Description: "Ultra realistic images at 1024 resolution"},
		},
	},
	{
		Label: "DALL·E",
		Options: []Entry{
			{Value: "dalle:dall-e-3", Label: "DALL·E 3", IsPro: true, Description: "OpenAI's flagship image model"},
			{Value: "dalle:dall-e-2", Label: "DALL·E 2", IsPro: false, Description: "Lower-cost image generation"},
		},
	},
}

// IsPro reports whether the given full model identifier is pro-gated.
// Unknown identifiers are treated as pro-gated: an identifier outside the
// catalog should never be more accessible than a cataloged one.
func IsPro(modelID string) bool {
	for _, categories := range [][]Category{ChatModels, ImageModels} {
		for _, cat := range categories {
			for _, opt := range cat.Options {
				if opt.Value == modelID {
					return opt.IsPro
				}
			}
		}
	}
	return true
}
