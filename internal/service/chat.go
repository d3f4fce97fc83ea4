// Package service orchestrates a request across admission, provider
// invocation, and usage accounting. Handlers call services; services are
// the only layer that touches more than one component.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"polychat/internal/catalog"
	"polychat/internal/llm"
	"polychat/internal/models"
	"polychat/internal/quota"
	"polychat/internal/relay"
	"polychat/internal/tokenizer"
	"polychat/internal/usage"
)

// ConversationStore is the persistence surface the chat service needs.
type ConversationStore interface {
	GetHistory(ctx context.Context, chatID string) ([]models.ChatMessage, error)
	AppendMessage(ctx context.Context, chatID string, msg models.ChatMessage) (models.ChatMessage, error)
}

// ChatOptions tune request-level behavior.
type ChatOptions struct {
	// RequestTimeout bounds a non-streaming provider call so a hung
	// provider cannot pin a request. No usage is applied on timeout.
	RequestTimeout time.Duration
	// PersistPartials stores the accumulated text of an interrupted
	// stream as an explicitly-marked interrupted message. Off by default:
	// partial output is reported to the caller but not recorded.
	PersistPartials bool
}

// SendRequest is one chat exchange.
type SendRequest struct {
	UserID  string
	ChatID  string // empty for one-shot exchanges with no persisted history
	ModelID string
	Message string
	Kwargs  llm.Kwargs
	// SystemContext prepends a system message; used by bot invocations.
	SystemContext string
}

// SendResult is a completed exchange plus the usage that was billed.
type SendResult struct {
	Content    string `json:"content"`
	TokensUsed int64  `json:"tokens_used"`
}

// ChatService drives chat exchanges end to end.
type ChatService struct {
	registry   *llm.Registry
	estimator  *tokenizer.Estimator
	accountant *usage.Accountant
	enforcer   *quota.Enforcer
	store      ConversationStore
	opts       ChatOptions
	logger     *slog.Logger
}

// NewChatService creates a ChatService.
func NewChatService(
	registry *llm.Registry,
	estimator *tokenizer.Estimator,
	accountant *usage.Accountant,
	enforcer *quota.Enforcer,
	store ConversationStore,
	opts ChatOptions,
	logger *slog.Logger,
) *ChatService {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	return &ChatService{
		registry:   registry,
		estimator:  estimator,
		accountant: accountant,
		enforcer:   enforcer,
		store:      store,
		opts:       opts,
		logger:     logger,
	}
}

// Send runs a non-streaming exchange: admit, invoke, bill, persist.
// Admission happens before the provider call so a denied request costs
// nothing external; usage applies only after a delivered response.
func (s *ChatService) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	id, adapter, messages, err := s.admit(ctx, req)
	if err != nil {
		return SendResult{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()

	result, err := adapter.Invoke(callCtx, &llm.Request{
		Model:    id.Model,
		Messages: messages,
		Kwargs:   req.Kwargs,
	})
	if err != nil {
		return SendResult{}, err
	}

	tokens, err := s.resolveTokens(id.Model, messages, result.Content, result.TokensUsed)
	if err != nil {
		return SendResult{}, err
	}

	if _, err := s.accountant.ApplyDelta(ctx, req.UserID, tokens, 0); err != nil {
		return SendResult{}, err
	}

	if err := s.persistExchange(ctx, req, result.Content, false); err != nil {
		return SendResult{}, err
	}

	return SendResult{Content: result.Content, TokensUsed: tokens}, nil
}

// Stream runs a streaming exchange through a relay. Deltas reach the sink
// in arrival order; on completion the accumulated text and token total
// are billed and persisted. On interruption partial output is never
// recorded as complete: it is either dropped or, with PersistPartials,
// stored with the interrupted marker — and never billed.
func (s *ChatService) Stream(ctx context.Context, req SendRequest, sink relay.Sink) (SendResult, error) {
	id, adapter, messages, err := s.admit(ctx, req)
	if err != nil {
		return SendResult{}, err
	}

	stream, err := adapter.Stream(ctx, &llm.Request{
		Model:    id.Model,
		Messages: messages,
		Kwargs:   req.Kwargs,
	})
	if err != nil {
		return SendResult{}, err
	}

	r := relay.New()
	if err := r.Run(ctx, stream, sink); err != nil {
		s.handleInterrupted(ctx, req, r)
		return SendResult{}, err
	}

	acc, err := r.Result()
	if err != nil {
		return SendResult{}, err
	}

	tokens, err := s.resolveTokens(id.Model, messages, acc.Content, acc.TokensUsed)
	if err != nil {
		return SendResult{}, err
	}

	if _, err := s.accountant.ApplyDelta(ctx, req.UserID, tokens, 0); err != nil {
		return SendResult{}, err
	}

	if err := s.persistExchange(ctx, req, acc.Content, false); err != nil {
		return SendResult{}, err
	}

	return SendResult{Content: acc.Content, TokensUsed: tokens}, nil
}

// admit parses the model identifier, enforces quota and pro gating, and
// assembles the outbound message list.
func (s *ChatService) admit(ctx context.Context, req SendRequest) (llm.ModelID, llm.ChatProvider, []llm.Message, error) {
	id, err := llm.ParseModelID(req.ModelID)
	if err != nil {
		return llm.ModelID{}, nil, nil, err
	}

	record, err := s.accountant.Usage(ctx, req.UserID)
	if err != nil {
		return llm.ModelID{}, nil, nil, err
	}
	if err := s.enforcer.Check(record, id.BillingUnit()); err != nil {
		return llm.ModelID{}, nil, nil, err
	}
	if err := s.enforcer.CheckModelAccess(record.SubscriptionTier, catalog.IsPro(req.ModelID)); err != nil {
		return llm.ModelID{}, nil, nil, err
	}

	adapter, err := s.registry.ForModel(id)
	if err != nil {
		return llm.ModelID{}, nil, nil, err
	}

	messages, err := s.buildMessages(ctx, req)
	if err != nil {
		return llm.ModelID{}, nil, nil, err
	}
	return id, adapter, messages, nil
}

// buildMessages loads history, filters blank content, and appends the new
// user message. Relative order of valid history entries is preserved.
func (s *ChatService) buildMessages(ctx context.Context, req SendRequest) ([]llm.Message, error) {
	var messages []llm.Message
	if req.SystemContext != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: req.SystemContext})
	}

	if req.ChatID != "" {
		history, err := s.store.GetHistory(ctx, req.ChatID)
		if err != nil {
			return nil, fmt.Errorf("load history: %w", err)
		}
		for _, m := range history {
			if m.Interrupted {
				continue
			}
			messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
		}
	}

	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: req.Message})
	filtered, err := llm.PrepareMessages(messages)
	if err != nil {
		return nil, err
	}
	return filtered, nil
}

// resolveTokens uses the provider's self-reported count verbatim, falling
// back to the deterministic estimator when the provider stayed silent.
func (s *ChatService) resolveTokens(model string, messages []llm.Message, responseText string, selfReported *int) (int64, error) {
	if selfReported != nil {
		return int64(*selfReported), nil
	}
	estimated, err := s.estimator.Estimate(model, messages, responseText)
	if err != nil {
		return 0, fmt.Errorf("estimate tokens: %w", err)
	}
	return int64(estimated), nil
}

func (s *ChatService) persistExchange(ctx context.Context, req SendRequest, responseText string, interrupted bool) error {
	if req.ChatID == "" {
		return nil
	}

	if _, err := s.store.AppendMessage(ctx, req.ChatID, models.ChatMessage{
		Role:    llm.RoleUser,
		Content: req.Message,
	}); err != nil {
		return fmt.Errorf("persist user message: %w", err)
	}
	if _, err := s.store.AppendMessage(ctx, req.ChatID, models.ChatMessage{
		Role:        llm.RoleAssistant,
		Content:     responseText,
		Interrupted: interrupted,
	}); err != nil {
		return fmt.Errorf("persist assistant message: %w", err)
	}
	return nil
}

// handleInterrupted optionally records the partial text of a failed
// stream, marked interrupted so it can never be mistaken for a complete
// exchange. Partial output is never billed.
func (s *ChatService) handleInterrupted(ctx context.Context, req SendRequest, r *relay.Relay) {
	if !s.opts.PersistPartials {
		return
	}
	partial := r.Partial()
	if partial.Content == "" {
		return
	}
	if err := s.persistExchange(ctx, req, partial.Content, true); err != nil {
		s.logger.Warn("failed to persist interrupted stream",
			"chat_id", req.ChatID,
			"error", err,
		)
	}
}
