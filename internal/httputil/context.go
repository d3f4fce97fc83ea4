package httputil

import (
	"context"
	"net/http"

	"polychat/internal/models"
)

// Context key type to avoid collisions
type contextKey string

const (
	userIDKey contextKey = "userID"
	tierKey   contextKey = "subscriptionTier"
)

// WithIdentity attaches the authenticated user ID and subscription tier
// to the request context.
func WithIdentity(r *http.Request, userID string, tier models.SubscriptionTier) *http.Request {
	ctx := context.WithValue(r.Context(), userIDKey, userID)
	ctx = context.WithValue(ctx, tierKey, tier)
	return r.WithContext(ctx)
}

// GetUserID retrieves userID from context, returns empty string if not found
func GetUserID(r *http.Request) string {
	userID, _ := r.Context().Value(userIDKey).(string)
	return userID
}

// GetTier retrieves the subscription tier from context, defaulting to free.
func GetTier(r *http.Request) models.SubscriptionTier {
	tier, ok := r.Context().Value(tierKey).(models.SubscriptionTier)
	if !ok {
		return models.TierFree
	}
	return tier
}
