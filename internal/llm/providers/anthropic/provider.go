package anthropic

import (
	"context"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"polychat/internal/llm"
)

const defaultMaxTokens = 1024

// Provider implements llm.ChatProvider for Claude models.
type Provider struct {
	client anthropic.Client
}

// New creates the adapter for the anthropic provider tag.
func New(creds llm.Credentials) (llm.ChatProvider, error) {
	if creds.AnthropicAPIKey == "" {
		return nil, llm.ErrMissingCredential
	}
	return &Provider{
		client: anthropic.NewClient(option.WithAPIKey(creds.AnthropicAPIKey)),
	}, nil
}

func (p *Provider) Name() llm.Provider { return llm.ProviderAnthropic }

// Invoke sends the conversation and returns the full response. Anthropic
// always self-reports usage, so TokensUsed is never nil on success.
func (p *Provider) Invoke(ctx context.Context, req *llm.Request) (*llm.Result, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, err
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, p.wrapError(err)
	}

	var content string
	for _, block := range message.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	total := int(message.Usage.InputTokens + message.Usage.OutputTokens)
	return &llm.Result{Content: content, TokensUsed: &total}, nil
}

// Stream sends the conversation and forwards text deltas as they arrive.
// The SDK accumulates usage across stream events; the final chunk carries
// the self-reported total as a single token delta.
func (p *Provider) Stream(ctx context.Context, req *llm.Request) (<-chan llm.Chunk, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, err
	}

	stream := p.client.Messages.NewStreaming(ctx, params)

	out := make(chan llm.Chunk)
	go func() {
		defer close(out)
		defer stream.Close()

		message := anthropic.Message{}
		for stream.Next() {
			event := stream.Current()
			if err := message.Accumulate(event); err != nil {
				select {
				case out <- llm.Chunk{Err: p.wrapError(err)}:
				case <-ctx.Done():
				}
				return
			}

			switch eventVariant := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				switch delta := eventVariant.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					if delta.Text == "" {
						continue
					}
					select {
					case out <- llm.Chunk{ContentDelta: delta.Text}:
					case <-ctx.Done():
						return
					}
				}
			}
		}

		if err := stream.Err(); err != nil {
			select {
			case out <- llm.Chunk{Err: p.wrapError(err)}:
			case <-ctx.Done():
			}
			return
		}

		total := int(message.Usage.InputTokens + message.Usage.OutputTokens)
		if total > 0 {
			select {
			case out <- llm.Chunk{TokensDelta: total}:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

// buildParams converts the normalized request to Anthropic's shape.
// System messages move to the dedicated system field; the rest keep order.
func (p *Provider) buildParams(req *llm.Request) (anthropic.MessageNewParams, error) {
	messages, err := llm.PrepareMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	var system []anthropic.TextBlockParam
	converted := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case llm.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
		case llm.RoleAssistant:
			converted = append(converted, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			converted = append(converted, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	if len(converted) == 0 {
		return anthropic.MessageNewParams{}, llm.ErrNoValidMessages
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  converted,
		MaxTokens: int64(defaultMaxTokens),
		System:    system,
	}
	if req.Kwargs.MaxTokens != nil {
		params.MaxTokens = int64(*req.Kwargs.MaxTokens)
	}
	if req.Kwargs.Temperature != nil {
		params.Temperature = anthropic.Float(float64(*req.Kwargs.Temperature))
	}
	if req.Kwargs.TopP != nil {
		params.TopP = anthropic.Float(float64(*req.Kwargs.TopP))
	}
	return params, nil
}

func (p *Provider) wrapError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &llm.ProviderInvocationError{
			Provider: llm.ProviderAnthropic,
			Status:   apiErr.StatusCode,
			Message:  apiErr.Error(),
			Err:      err,
		}
	}
	return &llm.ProviderInvocationError{Provider: llm.ProviderAnthropic, Message: err.Error(), Err: err}
}
