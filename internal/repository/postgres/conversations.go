package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"polychat/internal/models"
)

// ErrChatNotFound is returned when a conversation does not exist.
var ErrChatNotFound = errors.New("chat not found")

// ConversationRepository persists chat sessions and their ordered message
// history. History is append-only: messages get a monotonically increasing
// seq per chat and are never rewritten.
type ConversationRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewConversationRepository creates a new conversation repository.
func NewConversationRepository(cfg *RepositoryConfig) *ConversationRepository {
	return &ConversationRepository{
		pool:   cfg.Pool,
		tables: cfg.Tables,
		logger: cfg.Logger,
	}
}

// CreateChat starts a new conversation for a user.
func (r *ConversationRepository) CreateChat(ctx context.Context, userID, name string) (models.Chat, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, name, created_at)
		VALUES ($1, $2, $3, now())
		RETURNING id, user_id, name, created_at`, r.tables.Chats)

	var chat models.Chat
	err := r.pool.QueryRow(ctx, query, uuid.NewString(), userID, name).Scan(
		&chat.ID, &chat.UserID, &chat.Name, &chat.CreatedAt,
	)
	if err != nil {
		return models.Chat{}, fmt.Errorf("create chat: %w", err)
	}
	return chat, nil
}

// GetChat returns a chat owned by the given user.
func (r *ConversationRepository) GetChat(ctx context.Context, chatID, userID string) (models.Chat, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, name, created_at
		FROM %s
		WHERE id = $1 AND user_id = $2`, r.tables.Chats)

	var chat models.Chat
	err := r.pool.QueryRow(ctx, query, chatID, userID).Scan(
		&chat.ID, &chat.UserID, &chat.Name, &chat.CreatedAt,
	)
	if err != nil {
		if IsPgNoRowsError(err) {
			return models.Chat{}, ErrChatNotFound
		}
		return models.Chat{}, fmt.Errorf("get chat %s: %w", chatID, err)
	}
	return chat, nil
}

// AppendMessage appends a message to a conversation with the next seq.
// The seq subquery and insert run as one statement, so appends from the
// owning session never collide.
func (r *ConversationRepository) AppendMessage(ctx context.Context, chatID string, msg models.ChatMessage) (models.ChatMessage, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, chat_id, role, content, seq, interrupted, created_at)
		VALUES ($1, $2, $3, $4,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM %s WHERE chat_id = $2),
			$5, now())
		RETURNING id, chat_id, role, content, seq, interrupted, created_at`,
		r.tables.ChatMessages, r.tables.ChatMessages)

	var stored models.ChatMessage
	err := r.pool.QueryRow(ctx, query, uuid.NewString(), chatID, msg.Role, msg.Content, msg.Interrupted).Scan(
		&stored.ID, &stored.ChatID, &stored.Role, &stored.Content,
		&stored.Seq, &stored.Interrupted, &stored.CreatedAt,
	)
	if err != nil {
		if IsPgForeignKeyError(err) {
			return models.ChatMessage{}, ErrChatNotFound
		}
		return models.ChatMessage{}, fmt.Errorf("append message to chat %s: %w", chatID, err)
	}
	return stored, nil
}

// GetHistory returns a conversation's messages in insertion order.
func (r *ConversationRepository) GetHistory(ctx context.Context, chatID string) ([]models.ChatMessage, error) {
	query := fmt.Sprintf(`
		SELECT id, chat_id, role, content, seq, interrupted, created_at
		FROM %s
		WHERE chat_id = $1
		ORDER BY seq`, r.tables.ChatMessages)

	rows, err := r.pool.Query(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("get history for chat %s: %w", chatID, err)
	}
	defer rows.Close()

	var history []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &m.Seq, &m.Interrupted, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		history = append(history, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return history, nil
}

// DeleteChat removes a chat and its messages.
func (r *ConversationRepository) DeleteChat(ctx context.Context, chatID, userID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete chat: %w", err)
	}
	defer tx.Rollback(ctx)

	msgQuery := fmt.Sprintf(`
		DELETE FROM %s WHERE chat_id IN
			(SELECT id FROM %s WHERE id = $1 AND user_id = $2)`,
		r.tables.ChatMessages, r.tables.Chats)
	if _, err := tx.Exec(ctx, msgQuery, chatID, userID); err != nil {
		return fmt.Errorf("delete chat messages: %w", err)
	}

	chatQuery := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND user_id = $2`, r.tables.Chats)
	tag, err := tx.Exec(ctx, chatQuery, chatID, userID)
	if err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrChatNotFound
	}

	return tx.Commit(ctx)
}
