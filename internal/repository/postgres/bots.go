package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"polychat/internal/models"
)

// ErrBotNotFound is returned when a bot does not exist or the caller does
// not own it.
var ErrBotNotFound = errors.New("bot not found")

// ErrDuplicateBotKey is returned when an insert collides with an existing
// API key. The service retries with a fresh key.
var ErrDuplicateBotKey = errors.New("bot api key already exists")

// BotRepository persists published bot configurations.
type BotRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewBotRepository creates a new bot repository.
func NewBotRepository(cfg *RepositoryConfig) *BotRepository {
	return &BotRepository{
		pool:   cfg.Pool,
		tables: cfg.Tables,
		logger: cfg.Logger,
	}
}

// Create stores a new bot and returns it with its generated ID.
func (r *BotRepository) Create(ctx context.Context, bot models.Bot) (models.Bot, error) {
	kwargs, err := json.Marshal(bot.Kwargs)
	if err != nil {
		return models.Bot{}, fmt.Errorf("marshal bot kwargs: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, owner_id, name, system_context, model_id, kwargs, api_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		RETURNING id, created_at`, r.tables.Bots)

	bot.ID = uuid.NewString()
	err = r.pool.QueryRow(ctx, query,
		bot.ID, bot.OwnerID, bot.Name, bot.SystemContext, bot.ModelID, kwargs, bot.APIKey,
	).Scan(&bot.ID, &bot.CreatedAt)
	if err != nil {
		if IsPgDuplicateError(err) {
			return models.Bot{}, ErrDuplicateBotKey
		}
		return models.Bot{}, fmt.Errorf("create bot: %w", err)
	}
	return bot, nil
}

// Get returns a bot by ID.
func (r *BotRepository) Get(ctx context.Context, botID string) (models.Bot, error) {
	query := fmt.Sprintf(`
		SELECT id, owner_id, name, system_context, model_id, kwargs, api_key, created_at
		FROM %s
		WHERE id = $1`, r.tables.Bots)
	return r.scanBot(r.pool.QueryRow(ctx, query, botID))
}

// GetByAPIKey returns the bot bound to a bot-scoped API key.
func (r *BotRepository) GetByAPIKey(ctx context.Context, apiKey string) (models.Bot, error) {
	query := fmt.Sprintf(`
		SELECT id, owner_id, name, system_context, model_id, kwargs, api_key, created_at
		FROM %s
		WHERE api_key = $1`, r.tables.Bots)
	return r.scanBot(r.pool.QueryRow(ctx, query, apiKey))
}

// Update overwrites a bot's configuration. Only the owner may update.
func (r *BotRepository) Update(ctx context.Context, bot models.Bot) error {
	kwargs, err := json.Marshal(bot.Kwargs)
	if err != nil {
		return fmt.Errorf("marshal bot kwargs: %w", err)
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET name = $3, system_context = $4, model_id = $5, kwargs = $6
		WHERE id = $1 AND owner_id = $2`, r.tables.Bots)

	tag, err := r.pool.Exec(ctx, query, bot.ID, bot.OwnerID, bot.Name, bot.SystemContext, bot.ModelID, kwargs)
	if err != nil {
		return fmt.Errorf("update bot %s: %w", bot.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBotNotFound
	}
	return nil
}

// Delete removes a bot. Only the owner may delete.
func (r *BotRepository) Delete(ctx context.Context, botID, ownerID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND owner_id = $2`, r.tables.Bots)

	tag, err := r.pool.Exec(ctx, query, botID, ownerID)
	if err != nil {
		return fmt.Errorf("delete bot %s: %w", botID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBotNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *BotRepository) scanBot(row rowScanner) (models.Bot, error) {
	var bot models.Bot
	var kwargs []byte
	err := row.Scan(
		&bot.ID, &bot.OwnerID, &bot.Name, &bot.SystemContext,
		&bot.ModelID, &kwargs, &bot.APIKey, &bot.CreatedAt,
	)
	if err != nil {
		if IsPgNoRowsError(err) {
			return models.Bot{}, ErrBotNotFound
		}
		return models.Bot{}, fmt.Errorf("scan bot: %w", err)
	}
	if len(kwargs) > 0 {
		if err := json.Unmarshal(kwargs, &bot.Kwargs); err != nil {
			return models.Bot{}, fmt.Errorf("unmarshal bot kwargs: %w", err)
		}
	}
	return bot, nil
}
