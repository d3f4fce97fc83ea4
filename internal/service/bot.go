package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"polychat/internal/llm"
	"polychat/internal/models"
	"polychat/internal/relay"
	"polychat/internal/repository/postgres"
)

// BotStore is the persistence surface for published bots.
type BotStore interface {
	Create(ctx context.Context, bot models.Bot) (models.Bot, error)
	Get(ctx context.Context, botID string) (models.Bot, error)
	GetByAPIKey(ctx context.Context, apiKey string) (models.Bot, error)
	Update(ctx context.Context, bot models.Bot) error
	Delete(ctx context.Context, botID, ownerID string) error
}

// ChatAccessStore resolves a chat only when the given user owns it.
type ChatAccessStore interface {
	GetChat(ctx context.Context, chatID, userID string) (models.Chat, error)
}

// BotService manages published bots and runs invocations against their
// fixed configuration. The bot's config is read-only per invocation: the
// caller supplies only the message, never model or kwargs overrides.
type BotService struct {
	store  BotStore
	chats  ChatAccessStore
	chat   *ChatService
	logger *slog.Logger
}

// NewBotService creates a BotService.
func NewBotService(store BotStore, chats ChatAccessStore, chat *ChatService, logger *slog.Logger) *BotService {
	return &BotService{store: store, chats: chats, chat: chat, logger: logger}
}

// CreateBotRequest carries a new bot's configuration.
type CreateBotRequest struct {
	OwnerID       string
	Name          string
	SystemContext string
	ModelID       string
	Kwargs        llm.Kwargs
}

// Create validates and stores a bot, minting its API key.
func (s *BotService) Create(ctx context.Context, req CreateBotRequest) (models.Bot, error) {
	if strings.TrimSpace(req.Name) == "" {
		return models.Bot{}, fmt.Errorf("bot name is required")
	}
	if req.SystemContext == "" {
		return models.Bot{}, fmt.Errorf("bot system context is required")
	}
	if _, err := llm.ParseModelID(req.ModelID); err != nil {
		return models.Bot{}, err
	}

	candidate := models.Bot{
		OwnerID:       req.OwnerID,
		Name:          strings.TrimSpace(req.Name),
		SystemContext: req.SystemContext,
		ModelID:       req.ModelID,
		Kwargs:        req.Kwargs,
		APIKey:        newBotAPIKey(),
	}
	bot, err := s.store.Create(ctx, candidate)
	if errors.Is(err, postgres.ErrDuplicateBotKey) {
		candidate.APIKey = newBotAPIKey()
		bot, err = s.store.Create(ctx, candidate)
	}
	if err != nil {
		return models.Bot{}, err
	}

	s.logger.Info("bot created", "bot_id", bot.ID, "owner_id", bot.OwnerID, "model_id", bot.ModelID)
	return bot, nil
}

// Update overwrites a bot's configuration; ownership is enforced by the
// store's owner-scoped update.
func (s *BotService) Update(ctx context.Context, bot models.Bot) error {
	if _, err := llm.ParseModelID(bot.ModelID); err != nil {
		return err
	}
	return s.store.Update(ctx, bot)
}

// Delete removes a bot.
func (s *BotService) Delete(ctx context.Context, botID, ownerID string) error {
	return s.store.Delete(ctx, botID, ownerID)
}

// Get returns a bot by ID with its API key redacted.
func (s *BotService) Get(ctx context.Context, botID string) (models.Bot, error) {
	bot, err := s.store.Get(ctx, botID)
	if err != nil {
		return models.Bot{}, err
	}
	bot.APIKey = ""
	return bot, nil
}

// Authenticate resolves a bot-scoped API key to its bot.
func (s *BotService) Authenticate(ctx context.Context, apiKey string) (models.Bot, error) {
	return s.store.GetByAPIKey(ctx, apiKey)
}

// Invoke runs one exchange against a bot's fixed configuration. Usage is
// metered against the bot owner's quota. Bot keys are embeddable, so a
// named chat must belong to the bot's owner; otherwise any key holder
// could read or extend another user's conversation.
func (s *BotService) Invoke(ctx context.Context, bot models.Bot, chatID, message string) (SendResult, error) {
	if err := s.authorizeChat(ctx, bot, chatID); err != nil {
		return SendResult{}, err
	}
	return s.chat.Send(ctx, SendRequest{
		UserID:        bot.OwnerID,
		ChatID:        chatID,
		ModelID:       bot.ModelID,
		Message:       message,
		Kwargs:        bot.Kwargs,
		SystemContext: bot.SystemContext,
	})
}

// InvokeStream is Invoke's streaming counterpart.
func (s *BotService) InvokeStream(ctx context.Context, bot models.Bot, chatID, message string, sink relay.Sink) (SendResult, error) {
	if err := s.authorizeChat(ctx, bot, chatID); err != nil {
		return SendResult{}, err
	}
	return s.chat.Stream(ctx, SendRequest{
		UserID:        bot.OwnerID,
		ChatID:        chatID,
		ModelID:       bot.ModelID,
		Message:       message,
		Kwargs:        bot.Kwargs,
		SystemContext: bot.SystemContext,
	}, sink)
}

func (s *BotService) authorizeChat(ctx context.Context, bot models.Bot, chatID string) error {
	if chatID == "" {
		return nil
	}
	_, err := s.chats.GetChat(ctx, chatID, bot.OwnerID)
	return err
}

// newBotAPIKey mints an opaque bot credential.
func newBotAPIKey() string {
	return "pcb_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
