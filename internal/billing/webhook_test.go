package billing

import (
	"testing"

	"github.com/stripe/stripe-go/v72"

	"polychat/internal/models"
)

func subWithTier(status stripe.SubscriptionStatus, tierMeta string) *stripe.Subscription {
	return &stripe.Subscription{
		Status: status,
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{
				{Price: &stripe.Price{Metadata: map[string]string{"tier": tierMeta}}},
			},
		},
	}
}

func TestTierFromSubscription(t *testing.T) {
	tests := []struct {
		name string
		sub  *stripe.Subscription
		want models.SubscriptionTier
	}{
		{
			name: "active pro",
			sub:  subWithTier(stripe.SubscriptionStatusActive, "pro"),
			want: models.TierPro,
		},
		{
			name: "active premium",
			sub:  subWithTier(stripe.SubscriptionStatusActive, "premium"),
			want: models.TierPremium,
		},
		{
			name: "trialing counts as active",
			sub:  subWithTier(stripe.SubscriptionStatusTrialing, "pro"),
			want: models.TierPro,
		},
		{
			name: "past due falls back to free",
			sub:  subWithTier(stripe.SubscriptionStatusPastDue, "pro"),
			want: models.TierFree,
		},
		{
			name: "canceled falls back to free",
			sub:  subWithTier(stripe.SubscriptionStatusCanceled, "premium"),
			want: models.TierFree,
		},
		{
			name: "unknown tier metadata falls back to free",
			sub:  subWithTier(stripe.SubscriptionStatusActive, "enterprise"),
			want: models.TierFree,
		},
		{
			name: "missing tier metadata falls back to free",
			sub: &stripe.Subscription{
				Status: stripe.SubscriptionStatusActive,
				Items:  &stripe.SubscriptionItemList{},
			},
			want: models.TierFree,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tierFromSubscription(tt.sub); got != tt.want {
				t.Errorf("tierFromSubscription() = %q, want %q", got, tt.want)
			}
		})
	}
}
