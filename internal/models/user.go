package models

// SubscriptionTier names a subscription level. The associated limits live
// in the quota package's tier table; a tier referenced by a user record
// that is missing from the table is a hard error, never a silent default.
type SubscriptionTier string

const (
	TierFree    SubscriptionTier = "free"
	TierPro     SubscriptionTier = "pro"
	TierPremium SubscriptionTier = "premium"
)

// UsageRecord is a user's metered consumption. Counters are mutated only
// through atomic increments in the persistence layer; concurrent requests
// from the same user must never under-count.
type UsageRecord struct {
	UserID               string           `json:"user_id"`
	TokenCount           int64            `json:"token_count"`
	ImageGenerationCount int64            `json:"image_generation_count"`
	SubscriptionTier     SubscriptionTier `json:"subscription_tier"`
}
