package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/webhook"

	"polychat/internal/httputil"
	"polychat/internal/models"
)

// maxWebhookBody caps event payload reads. Stripe's own limit is 64KB.
const maxWebhookBody = 65536

// TierSetter updates a user's subscription tier. Satisfied by the
// postgres user repository.
type TierSetter interface {
	SetSubscriptionTier(ctx context.Context, userID string, tier models.SubscriptionTier) error
}

// WebhookHandler receives Stripe subscription lifecycle events and
// keeps the local tier column in sync. Tier changes only ever arrive
// through this path, never from client requests.
type WebhookHandler struct {
	signingSecret string
	store         TierSetter
	logger        *slog.Logger
}

func NewWebhookHandler(signingSecret string, store TierSetter, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		signingSecret: signingSecret,
		store:         store,
		logger:        logger,
	}
}

// ServeHTTP validates the event signature and applies tier changes.
// Unhandled event types are acknowledged with 200 so Stripe stops
// retrying them.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "failed to read payload")
		return
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), h.signingSecret)
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		httputil.RespondError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		err = h.applySubscription(r.Context(), event, false)
	case "customer.subscription.deleted":
		err = h.applySubscription(r.Context(), event, true)
	default:
		h.logger.Debug("ignoring webhook event", "type", event.Type)
	}

	if err != nil {
		h.logger.Error("failed to apply webhook event", "type", event.Type, "error", err)
		httputil.RespondError(w, http.StatusInternalServerError, "failed to process event")
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) applySubscription(ctx context.Context, event stripe.Event, canceled bool) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("parse subscription event: %w", err)
	}

	userID := sub.Metadata["user_id"]
	if userID == "" {
		return fmt.Errorf("subscription %s has no user_id metadata", sub.ID)
	}

	tier := models.TierFree
	if !canceled {
		tier = tierFromSubscription(&sub)
	}

	if err := h.store.SetSubscriptionTier(ctx, userID, tier); err != nil {
		return fmt.Errorf("set tier for user %s: %w", userID, err)
	}

	h.logger.Info("subscription tier updated",
		"user_id", userID,
		"tier", tier,
		"subscription_id", sub.ID,
	)
	return nil
}

// tierFromSubscription maps the price's tier metadata onto a local
// tier. Unknown or missing metadata falls back to free rather than
// guessing at a paid plan.
func tierFromSubscription(sub *stripe.Subscription) models.SubscriptionTier {
	if sub.Status != stripe.SubscriptionStatusActive &&
		sub.Status != stripe.SubscriptionStatusTrialing {
		return models.TierFree
	}

	for _, item := range sub.Items.Data {
		if item.Price == nil {
			continue
		}
		switch item.Price.Metadata["tier"] {
		case "pro":
			return models.TierPro
		case "premium":
			return models.TierPremium
		}
	}
	return models.TierFree
}
