package imagejob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultBaseURL = "https://modelslab.com/api/v6/images"

// defaultGenerationOptions mirror the provider's recommended text2img
// parameters. Caller options are laid over these.
var defaultGenerationOptions = map[string]any{
	"negative_prompt":     "painting, extra fingers, mutated hands",
	"width":               512,
	"height":              512,
	"samples":             1,
	"num_inference_steps": 30,
	"guidance_scale":      7.5,
	"safety_checker":      "no",
	"enhance_prompt":      "no",
	"scheduler":           "UniPCMultistepScheduler",
}

// ModelsLabClient is the REST client for the ModelsLab text2img API.
// There is no Go SDK for this provider; the surface is two JSON POST
// endpoints (submit, fetch).
type ModelsLabClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewModelsLabClient creates a client bound to the given API key. An
// empty key is a configuration error surfaced at construction.
func NewModelsLabClient(apiKey, baseURL string) (*ModelsLabClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("modelslab API key is required")
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &ModelsLabClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// generationResponse is the provider's response shape for both submit and
// fetch. Status is "success", "processing", or "error".
type generationResponse struct {
	Status  string      `json:"status"`
	ID      json.Number `json:"id"`
	Output  []string    `json:"output"`
	Message string      `json:"message"`
	ETA     float64     `json:"eta"`
}

// Text2Img submits a generation request. The provider may answer with an
// immediate result or a processing handle to fetch later.
func (c *ModelsLabClient) Text2Img(ctx context.Context, prompt, modelID string, options map[string]any) (*generationResponse, error) {
	payload := map[string]any{
		"key":      c.apiKey,
		"model_id": modelID,
		"prompt":   prompt,
	}
	for k, v := range defaultGenerationOptions {
		payload[k] = v
	}
	// Caller options override defaults but never the credential.
	for k, v := range options {
		if k == "key" {
			continue
		}
		payload[k] = v
	}

	return c.post(ctx, c.baseURL+"/text2img", payload)
}

// Fetch retrieves the current state of a previously submitted job.
func (c *ModelsLabClient) Fetch(ctx context.Context, requestID string) (*generationResponse, error) {
	payload := map[string]any{
		"key":        c.apiKey,
		"request_id": requestID,
	}
	return c.post(ctx, c.baseURL+"/fetch", payload)
}

func (c *ModelsLabClient) post(ctx context.Context, url string, payload map[string]any) (*generationResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", url, err)
	}
	defer resp.Body.Close()

	var parsed generationResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream status %d: %s", resp.StatusCode, parsed.Message)
	}
	return &parsed, nil
}
