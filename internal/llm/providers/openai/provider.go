package openai

import (
	"context"
	"errors"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"polychat/internal/llm"
)

const defaultMaxTokens = 1024

// Provider implements llm.ChatProvider over the OpenAI chat completions
// API. The same adapter serves OpenAI-compatible endpoints (llama and
// mixtral families) by swapping the base URL and provider tag.
type Provider struct {
	client *openai.Client
	name   llm.Provider
}

// New creates the adapter for the openai provider tag.
func New(creds llm.Credentials) (llm.ChatProvider, error) {
	if creds.OpenAIAPIKey == "" {
		return nil, llm.ErrMissingCredential
	}
	return &Provider{
		client: openai.NewClient(creds.OpenAIAPIKey),
		name:   llm.ProviderOpenAI,
	}, nil
}

// NewCompat creates an adapter for an OpenAI-compatible endpoint serving
// the given provider tag (llama, mixtral).
func NewCompat(creds llm.Credentials, tag llm.Provider) (llm.ChatProvider, error) {
	if creds.TogetherAPIKey == "" {
		return nil, llm.ErrMissingCredential
	}
	cfg := openai.DefaultConfig(creds.TogetherAPIKey)
	if creds.TogetherBaseURL != "" {
		cfg.BaseURL = creds.TogetherBaseURL
	}
	return &Provider{
		client: openai.NewClientWithConfig(cfg),
		name:   tag,
	}, nil
}

func (p *Provider) Name() llm.Provider { return p.name }

// Invoke sends the conversation and returns the full completion. Usage is
// taken verbatim from the response when the endpoint reports it; compat
// endpoints that omit usage yield a nil count for the estimator.
func (p *Provider) Invoke(ctx context.Context, req *llm.Request) (*llm.Result, error) {
	messages, err := llm.PrepareMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(req.Model, messages, req.Kwargs, false))
	if err != nil {
		return nil, p.wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &llm.ProviderInvocationError{Provider: p.name, Message: "response contained no choices"}
	}

	result := &llm.Result{Content: resp.Choices[0].Message.Content}
	if resp.Usage.TotalTokens > 0 {
		total := resp.Usage.TotalTokens
		result.TokensUsed = &total
	}
	return result, nil
}

// Stream sends the conversation and forwards deltas as they arrive. With
// IncludeUsage set, the final chunk before EOF carries the usage totals;
// endpoints that never send one leave the token deltas at zero and the
// caller estimates instead.
func (p *Provider) Stream(ctx context.Context, req *llm.Request) (<-chan llm.Chunk, error) {
	messages, err := llm.PrepareMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, p.buildRequest(req.Model, messages, req.Kwargs, true))
	if err != nil {
		return nil, p.wrapError(err)
	}

	out := make(chan llm.Chunk)
	go func() {
		defer close(out)
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				select {
				case out <- llm.Chunk{Err: p.wrapError(err)}:
				case <-ctx.Done():
				}
				return
			}

			chunk := llm.Chunk{}
			if len(resp.Choices) > 0 {
				chunk.ContentDelta = resp.Choices[0].Delta.Content
			}
			if resp.Usage != nil {
				chunk.TokensDelta = resp.Usage.TotalTokens
			}
			if chunk.ContentDelta == "" && chunk.TokensDelta == 0 {
				continue
			}

			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (p *Provider) buildRequest(model string, messages []llm.Message, kwargs llm.Kwargs, stream bool) openai.ChatCompletionRequest {
	converted := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		converted = append(converted, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	req := openai.ChatCompletionRequest{
		Model:     model,
		Messages:  converted,
		MaxTokens: defaultMaxTokens,
		N:         1,
	}
	if kwargs.MaxTokens != nil {
		req.MaxTokens = *kwargs.MaxTokens
	}
	if kwargs.Temperature != nil {
		req.Temperature = *kwargs.Temperature
	}
	if kwargs.TopP != nil {
		req.TopP = *kwargs.TopP
	}
	if stream {
		req.Stream = true
		req.StreamOptions = &openai.StreamOptions{IncludeUsage: true}
	}
	return req
}

func (p *Provider) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &llm.ProviderInvocationError{
			Provider: p.name,
			Status:   apiErr.HTTPStatusCode,
			Message:  apiErr.Message,
			Err:      err,
		}
	}
	return &llm.ProviderInvocationError{Provider: p.name, Message: err.Error(), Err: err}
}
