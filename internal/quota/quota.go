// Package quota decides whether a request may proceed given a user's
// subscription tier and current usage. Checks are advisory at the request
// boundary: they never mutate counters, so a denied request leaves usage
// untouched.
package quota

import (
	"fmt"

	"polychat/internal/llm"
	"polychat/internal/models"
)

// DenyReason classifies why a request was denied admission.
type DenyReason string

const (
	DenyInvalidTier        DenyReason = "invalid_tier"
	DenyTokenLimitExceeded DenyReason = "token_limit_exceeded"
	DenyImageLimitExceeded DenyReason = "image_limit_exceeded"
	DenyProModelLocked     DenyReason = "pro_model_locked"
)

// QuotaExceededError is returned when admission is denied. It is safe to
// show verbatim to the caller.
type QuotaExceededError struct {
	Reason DenyReason
	Tier   models.SubscriptionTier
}

func (e *QuotaExceededError) Error() string {
	switch e.Reason {
	case DenyInvalidTier:
		return fmt.Sprintf("subscription tier %q is not recognized", e.Tier)
	case DenyTokenLimitExceeded:
		return fmt.Sprintf("token limit exceeded for tier %q", e.Tier)
	case DenyImageLimitExceeded:
		return fmt.Sprintf("image generation limit exceeded for tier %q", e.Tier)
	case DenyProModelLocked:
		return fmt.Sprintf("model requires a pro subscription, current tier is %q", e.Tier)
	default:
		return "quota check failed"
	}
}

// Enforcer evaluates admission against a static tier table.
type Enforcer struct {
	table TierTable
}

// NewEnforcer creates an Enforcer over the given tier table.
func NewEnforcer(table TierTable) *Enforcer {
	return &Enforcer{table: table}
}

// Check decides admission for the given billing unit. An unmapped tier is
// a hard error, not a silent default. Comparison is >=: a user exactly at
// the limit is denied. Runs before any provider call so a doomed request
// never costs an external round trip.
func (e *Enforcer) Check(usage models.UsageRecord, unit llm.BillingUnit) error {
	limits, ok := e.table[usage.SubscriptionTier]
	if !ok {
		return &QuotaExceededError{Reason: DenyInvalidTier, Tier: usage.SubscriptionTier}
	}

	switch unit {
	case llm.BillImages:
		if usage.ImageGenerationCount >= limits.ImageLimit {
			return &QuotaExceededError{Reason: DenyImageLimitExceeded, Tier: usage.SubscriptionTier}
		}
	default:
		if usage.TokenCount >= limits.TokenLimit {
			return &QuotaExceededError{Reason: DenyTokenLimitExceeded, Tier: usage.SubscriptionTier}
		}
	}
	return nil
}

// CheckModelAccess denies pro-gated models to tiers without pro access,
// keeping catalog gating consistent with quota enforcement.
func (e *Enforcer) CheckModelAccess(tier models.SubscriptionTier, modelIsPro bool) error {
	limits, ok := e.table[tier]
	if !ok {
		return &QuotaExceededError{Reason: DenyInvalidTier, Tier: tier}
	}
	if modelIsPro && !limits.Pro {
		return &QuotaExceededError{Reason: DenyProModelLocked, Tier: tier}
	}
	return nil
}
