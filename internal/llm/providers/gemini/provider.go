package gemini

import (
	"context"
	"errors"

	"google.golang.org/genai"

	"polychat/internal/llm"
)

const defaultMaxTokens = 1024

// Provider implements llm.ChatProvider for Gemini models via the
// Generative Language API.
type Provider struct {
	client *genai.Client
}

// New creates the adapter for the gemini provider tag.
func New(creds llm.Credentials) (llm.ChatProvider, error) {
	if creds.GeminiAPIKey == "" {
		return nil, llm.ErrMissingCredential
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  creds.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{client: client}, nil
}

func (p *Provider) Name() llm.Provider { return llm.ProviderGemini }

// Invoke sends the conversation and returns the full response. Gemini
// reports usage in the response metadata, so TokensUsed is set whenever
// the API includes it.
func (p *Provider) Invoke(ctx context.Context, req *llm.Request) (*llm.Result, error) {
	contents, config, err := p.buildRequest(req)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return nil, p.wrapError(err)
	}

	result := &llm.Result{Content: resp.Text()}
	if resp.UsageMetadata != nil && resp.UsageMetadata.TotalTokenCount > 0 {
		total := int(resp.UsageMetadata.TotalTokenCount)
		result.TokensUsed = &total
	}
	return result, nil
}

// Stream sends the conversation and forwards text deltas as they arrive.
// Usage metadata accumulates across stream responses; the last observed
// total is emitted as the final token delta.
func (p *Provider) Stream(ctx context.Context, req *llm.Request) (<-chan llm.Chunk, error) {
	contents, config, err := p.buildRequest(req)
	if err != nil {
		return nil, err
	}

	out := make(chan llm.Chunk)
	go func() {
		defer close(out)

		var totalTokens int
		for resp, err := range p.client.Models.GenerateContentStream(ctx, req.Model, contents, config) {
			if err != nil {
				select {
				case out <- llm.Chunk{Err: p.wrapError(err)}:
				case <-ctx.Done():
				}
				return
			}

			if resp.UsageMetadata != nil && int(resp.UsageMetadata.TotalTokenCount) > totalTokens {
				totalTokens = int(resp.UsageMetadata.TotalTokenCount)
			}

			text := resp.Text()
			if text == "" {
				continue
			}
			select {
			case out <- llm.Chunk{ContentDelta: text}:
			case <-ctx.Done():
				return
			}
		}

		if totalTokens > 0 {
			select {
			case out <- llm.Chunk{TokensDelta: totalTokens}:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

// buildRequest converts the normalized request to Gemini's shape. System
// messages become the system instruction; assistant turns map to the
// "model" role.
func (p *Provider) buildRequest(req *llm.Request) ([]*genai.Content, *genai.GenerateContentConfig, error) {
	messages, err := llm.PrepareMessages(req.Messages)
	if err != nil {
		return nil, nil, err
	}

	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(defaultMaxTokens),
	}
	if req.Kwargs.MaxTokens != nil {
		config.MaxOutputTokens = int32(*req.Kwargs.MaxTokens)
	}
	if req.Kwargs.Temperature != nil {
		config.Temperature = genai.Ptr(*req.Kwargs.Temperature)
	}
	if req.Kwargs.TopP != nil {
		config.TopP = genai.Ptr(*req.Kwargs.TopP)
	}

	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case llm.RoleSystem:
			config.SystemInstruction = genai.NewContentFromText(m.Content, genai.RoleUser)
		case llm.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(contents) == 0 {
		return nil, nil, llm.ErrNoValidMessages
	}
	return contents, config, nil
}

func (p *Provider) wrapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &llm.ProviderInvocationError{
			Provider: llm.ProviderGemini,
			Status:   apiErr.Code,
			Message:  apiErr.Message,
			Err:      err,
		}
	}
	return &llm.ProviderInvocationError{Provider: llm.ProviderGemini, Message: err.Error(), Err: err}
}
