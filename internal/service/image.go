package service

import (
	"context"
	"fmt"
	"log/slog"

	"polychat/internal/catalog"
	"polychat/internal/imagejob"
	"polychat/internal/llm"
	"polychat/internal/models"
	"polychat/internal/quota"
	"polychat/internal/storage"
	"polychat/internal/usage"
)

// GenerateRequest is one image-generation request.
type GenerateRequest struct {
	UserID  string
	ChatID  string // optional: record the exchange in a conversation
	ModelID string
	Prompt  string
	Options map[string]any
}

// GenerateResult is the outcome of a submission. Async providers return a
// JobID to poll; the synchronous provider returns the mirrored ResultURL
// directly.
type GenerateResult struct {
	JobID     string `json:"job_id,omitempty"`
	ResultURL string `json:"result_url,omitempty"`
}

// ImageService drives image generation for both the async job provider
// and the synchronous one, metering both against the image counter.
type ImageService struct {
	manager    *imagejob.Manager
	dalle      *imagejob.DalleClient
	mirror     storage.Mirror
	accountant *usage.Accountant
	enforcer   *quota.Enforcer
	store      ConversationStore
	logger     *slog.Logger
}

// NewImageService creates an ImageService. dalle may be nil when the
// OpenAI credential is absent; dalle requests then fail at dispatch.
func NewImageService(
	manager *imagejob.Manager,
	dalle *imagejob.DalleClient,
	mirror storage.Mirror,
	accountant *usage.Accountant,
	enforcer *quota.Enforcer,
	store ConversationStore,
	logger *slog.Logger,
) *ImageService {
	return &ImageService{
		manager:    manager,
		dalle:      dalle,
		mirror:     mirror,
		accountant: accountant,
		enforcer:   enforcer,
		store:      store,
		logger:     logger,
	}
}

// Generate admits the request against the image quota and dispatches by
// provider tag. The image counter increments at submission, matching the
// billing model: a submitted generation consumes quota whether or not the
// caller ever polls it to completion.
func (s *ImageService) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	id, err := llm.ParseModelID(req.ModelID)
	if err != nil {
		return GenerateResult{}, err
	}
	if !id.IsImage() {
		return GenerateResult{}, &llm.UnsupportedModelError{
			ModelID: req.ModelID,
			Reason:  "not an image-generation provider",
		}
	}

	record, err := s.accountant.Usage(ctx, req.UserID)
	if err != nil {
		return GenerateResult{}, err
	}
	if err := s.enforcer.Check(record, llm.BillImages); err != nil {
		return GenerateResult{}, err
	}
	if err := s.enforcer.CheckModelAccess(record.SubscriptionTier, catalog.IsPro(req.ModelID)); err != nil {
		return GenerateResult{}, err
	}

	switch id.Provider {
	case llm.ProviderImageGen:
		return s.generateAsync(ctx, req, id)
	case llm.ProviderDalle:
		return s.generateSync(ctx, req, id)
	default:
		return GenerateResult{}, &llm.UnsupportedModelError{
			ModelID: req.ModelID,
			Reason:  "no image backend for provider",
		}
	}
}

// Poll returns the current state of an async job. Idempotent: terminal
// results are served from the cache.
func (s *ImageService) Poll(ctx context.Context, jobID string) (imagejob.Job, error) {
	return s.manager.Poll(ctx, jobID)
}

// Wait polls on the given budget until the job is terminal or the budget
// runs out.
func (s *ImageService) Wait(ctx context.Context, jobID string, budget imagejob.PollBudget) (imagejob.Job, error) {
	return s.manager.PollUntilDone(ctx, jobID, budget)
}

func (s *ImageService) generateAsync(ctx context.Context, req GenerateRequest, id llm.ModelID) (GenerateResult, error) {
	jobID, err := s.manager.Submit(ctx, req.Prompt, id.Model, req.Options)
	if err != nil {
		return GenerateResult{}, err
	}

	if _, err := s.accountant.ApplyDelta(ctx, req.UserID, 0, 1); err != nil {
		return GenerateResult{}, err
	}
	if err := s.recordExchange(ctx, req, jobID); err != nil {
		return GenerateResult{}, err
	}
	return GenerateResult{JobID: jobID}, nil
}

func (s *ImageService) generateSync(ctx context.Context, req GenerateRequest, id llm.ModelID) (GenerateResult, error) {
	if s.dalle == nil {
		return GenerateResult{}, fmt.Errorf("dalle: %w", llm.ErrMissingCredential)
	}

	upstreamURL, err := s.dalle.Generate(ctx, req.Prompt, id.Model)
	if err != nil {
		return GenerateResult{}, err
	}

	mirrored, err := s.mirror.Mirror(ctx, upstreamURL)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("mirror dalle result: %w", err)
	}

	if _, err := s.accountant.ApplyDelta(ctx, req.UserID, 0, 1); err != nil {
		return GenerateResult{}, err
	}
	if err := s.recordExchange(ctx, req, mirrored); err != nil {
		return GenerateResult{}, err
	}
	return GenerateResult{ResultURL: mirrored}, nil
}

// recordExchange appends the prompt and the job handle (or mirrored URL)
// to the conversation when one was given.
func (s *ImageService) recordExchange(ctx context.Context, req GenerateRequest, response string) error {
	if req.ChatID == "" {
		return nil
	}

	if _, err := s.store.AppendMessage(ctx, req.ChatID, models.ChatMessage{
		Role:    llm.RoleUser,
		Content: req.Prompt,
	}); err != nil {
		return fmt.Errorf("persist image prompt: %w", err)
	}
	if _, err := s.store.AppendMessage(ctx, req.ChatID, models.ChatMessage{
		Role:    llm.RoleAssistant,
		Content: response,
	}); err != nil {
		return fmt.Errorf("persist image response: %w", err)
	}
	return nil
}
