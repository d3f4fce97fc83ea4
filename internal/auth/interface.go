package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"polychat/internal/models"
)

// ErrUnauthorized is returned for any token that fails verification.
// Callers get a single opaque error regardless of the underlying cause.
var ErrUnauthorized = errors.New("unauthorized")

// Claims carries the identity and subscription tier embedded in a
// verified access token. Tier lives in app_metadata so users cannot
// grant themselves a higher plan by editing their own profile.
type Claims struct {
	jwt.RegisteredClaims
	Role        string `json:"role"`
	AppMetadata struct {
		SubscriptionTier string `json:"subscription_tier"`
	} `json:"app_metadata"`
}

// Tier maps the token's tier claim onto a known subscription tier,
// defaulting to free for absent or unknown values.
func (c *Claims) Tier() models.SubscriptionTier {
	switch models.SubscriptionTier(c.AppMetadata.SubscriptionTier) {
	case models.TierPro:
		return models.TierPro
	case models.TierPremium:
		return models.TierPremium
	default:
		return models.TierFree
	}
}

// JWTVerifier validates bearer tokens. The abstraction keeps the
// middleware agnostic to where the signing keys come from.
type JWTVerifier interface {
	VerifyToken(tokenString string) (*Claims, error)
	Close() error
}
