package imagejob

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// DalleClient generates images synchronously through the OpenAI image
// API. Unlike the async provider there is no job handle: the result URL
// comes back in the response.
type DalleClient struct {
	client *openai.Client
}

// NewDalleClient creates a client bound to the OpenAI API key.
func NewDalleClient(apiKey string) (*DalleClient, error) {
	if apiKey == "" {
		return nil, errors.New("openai API key is required for dalle")
	}
	return &DalleClient{client: openai.NewClient(apiKey)}, nil
}

// Generate creates one image and returns the upstream URL. The URL is
// ephemeral; callers mirror it before recording anything.
func (c *DalleClient) Generate(ctx context.Context, prompt, model string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}

	resp, err := c.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          model,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return "", &SubmissionError{Detail: err.Error()}
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", &SubmissionError{Detail: "provider returned no image"}
	}
	return resp.Data[0].URL, nil
}
