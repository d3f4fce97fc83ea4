// Package usage applies metered-usage deltas to user records. All
// mutation goes through the persistence layer's atomic increment; this
// package never reads a counter and writes it back.
package usage

import (
	"context"
	"errors"
	"log/slog"

	"polychat/internal/models"
)

// ErrUserNotFound is returned when the usage accounting target does not
// exist. Fatal to the current request, harmless to every other one.
var ErrUserNotFound = errors.New("user record not found")

// Store is the persistence contract the accountant depends on. The
// increment must be atomic with respect to concurrent callers for the
// same user.
type Store interface {
	GetUsage(ctx context.Context, userID string) (models.UsageRecord, error)
	AtomicIncrement(ctx context.Context, userID string, tokenDelta, imageDelta int64) (models.UsageRecord, error)
}

// Accountant records usage against user quota counters.
type Accountant struct {
	store  Store
	logger *slog.Logger
}

// NewAccountant creates an Accountant over the given store.
func NewAccountant(store Store, logger *slog.Logger) *Accountant {
	return &Accountant{store: store, logger: logger}
}

// Usage returns the current counters for a user.
func (a *Accountant) Usage(ctx context.Context, userID string) (models.UsageRecord, error) {
	return a.store.GetUsage(ctx, userID)
}

// ApplyDelta atomically adds the deltas to a user's counters and returns
// the updated record. Zero-delta calls are skipped without touching the
// store.
func (a *Accountant) ApplyDelta(ctx context.Context, userID string, tokenDelta, imageDelta int64) (models.UsageRecord, error) {
	if tokenDelta == 0 && imageDelta == 0 {
		return a.store.GetUsage(ctx, userID)
	}

	record, err := a.store.AtomicIncrement(ctx, userID, tokenDelta, imageDelta)
	if err != nil {
		return models.UsageRecord{}, err
	}

	a.logger.Debug("usage applied",
		"user_id", userID,
		"token_delta", tokenDelta,
		"image_delta", imageDelta,
		"token_count", record.TokenCount,
		"image_count", record.ImageGenerationCount,
	)
	return record, nil
}
