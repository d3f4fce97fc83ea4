package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"polychat/internal/models"
	"polychat/internal/usage"
)

// UserRepository persists user usage records and subscription tiers.
type UserRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewUserRepository creates a new user repository.
func NewUserRepository(cfg *RepositoryConfig) *UserRepository {
	return &UserRepository{
		pool:   cfg.Pool,
		tables: cfg.Tables,
		logger: cfg.Logger,
	}
}

// GetUsage returns the current usage record for a user.
func (r *UserRepository) GetUsage(ctx context.Context, userID string) (models.UsageRecord, error) {
	query := fmt.Sprintf(`
		SELECT id, token_count, image_generation_count, subscription_tier
		FROM %s
		WHERE id = $1`, r.tables.Users)

	var record models.UsageRecord
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&record.UserID,
		&record.TokenCount,
		&record.ImageGenerationCount,
		&record.SubscriptionTier,
	)
	if err != nil {
		if IsPgNoRowsError(err) {
			return models.UsageRecord{}, usage.ErrUserNotFound
		}
		return models.UsageRecord{}, fmt.Errorf("get usage for user %s: %w", userID, err)
	}
	return record, nil
}

// AtomicIncrement applies usage deltas in a single UPDATE so concurrent
// increments for the same user are each fully reflected. There is no
// read-modify-write window: the addition happens in the database.
func (r *UserRepository) AtomicIncrement(ctx context.Context, userID string, tokenDelta, imageDelta int64) (models.UsageRecord, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET token_count = token_count + $2,
		    image_generation_count = image_generation_count + $3
		WHERE id = $1
		RETURNING id, token_count, image_generation_count, subscription_tier`, r.tables.Users)

	var record models.UsageRecord
	err := r.pool.QueryRow(ctx, query, userID, tokenDelta, imageDelta).Scan(
		&record.UserID,
		&record.TokenCount,
		&record.ImageGenerationCount,
		&record.SubscriptionTier,
	)
	if err != nil {
		if IsPgNoRowsError(err) {
			return models.UsageRecord{}, usage.ErrUserNotFound
		}
		return models.UsageRecord{}, fmt.Errorf("increment usage for user %s: %w", userID, err)
	}
	return record, nil
}

// SetSubscriptionTier overwrites a user's tier. Driven by the billing
// webhook only; the core never calls this during request handling.
func (r *UserRepository) SetSubscriptionTier(ctx context.Context, userID string, tier models.SubscriptionTier) error {
	query := fmt.Sprintf(`UPDATE %s SET subscription_tier = $2 WHERE id = $1`, r.tables.Users)

	tag, err := r.pool.Exec(ctx, query, userID, tier)
	if err != nil {
		return fmt.Errorf("set tier for user %s: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return usage.ErrUserNotFound
	}
	return nil
}
