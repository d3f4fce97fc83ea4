package quota

import (
	"errors"
	"testing"

	"polychat/internal/llm"
	"polychat/internal/models"
)

func testTable() TierTable {
	return TierTable{
		models.TierFree:    {TokenLimit: 25000, ImageLimit: 5},
		models.TierPro:     {TokenLimit: 10000000, ImageLimit: 1000, Pro: true},
		models.TierPremium: {TokenLimit: 30000000, ImageLimit: 3000, Pro: true},
	}
}

func TestEnforcerCheck(t *testing.T) {
	enforcer := NewEnforcer(testTable())

	tests := []struct {
		name       string
		usage      models.UsageRecord
		unit       llm.BillingUnit
		wantReason DenyReason // empty means allowed
	}{
		{
			name:  "free tier under token limit",
			usage: models.UsageRecord{SubscriptionTier: models.TierFree, TokenCount: 24999},
			unit:  llm.BillTokens,
		},
		{
			name:       "free tier exactly at token limit is denied",
			usage:      models.UsageRecord{SubscriptionTier: models.TierFree, TokenCount: 25000},
			unit:       llm.BillTokens,
			wantReason: DenyTokenLimitExceeded,
		},
		{
			name:       "free tier over token limit",
			usage:      models.UsageRecord{SubscriptionTier: models.TierFree, TokenCount: 30000},
			unit:       llm.BillTokens,
			wantReason: DenyTokenLimitExceeded,
		},
		{
			name:  "token count does not gate image requests",
			usage: models.UsageRecord{SubscriptionTier: models.TierFree, TokenCount: 25000, ImageGenerationCount: 4},
			unit:  llm.BillImages,
		},
		{
			name:       "free tier at image limit is denied",
			usage:      models.UsageRecord{SubscriptionTier: models.TierFree, ImageGenerationCount: 5},
			unit:       llm.BillImages,
			wantReason: DenyImageLimitExceeded,
		},
		{
			name:  "pro tier has a higher token ceiling",
			usage: models.UsageRecord{SubscriptionTier: models.TierPro, TokenCount: 25000},
			unit:  llm.BillTokens,
		},
		{
			name:       "unknown tier is a hard deny",
			usage:      models.UsageRecord{SubscriptionTier: "platinum"},
			unit:       llm.BillTokens,
			wantReason: DenyInvalidTier,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := enforcer.Check(tt.usage, tt.unit)
			assertDenyReason(t, err, tt.wantReason)
		})
	}
}

func TestEnforcerCheckModelAccess(t *testing.T) {
	enforcer := NewEnforcer(testTable())

	tests := []struct {
		name       string
		tier       models.SubscriptionTier
		modelIsPro bool
		wantReason DenyReason
	}{
		{name: "free tier on free model", tier: models.TierFree},
		{name: "free tier on pro model", tier: models.TierFree, modelIsPro: true, wantReason: DenyProModelLocked},
		{name: "pro tier on pro model", tier: models.TierPro, modelIsPro: true},
		{name: "premium tier on pro model", tier: models.TierPremium, modelIsPro: true},
		{name: "unknown tier", tier: "platinum", wantReason: DenyInvalidTier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := enforcer.CheckModelAccess(tt.tier, tt.modelIsPro)
			assertDenyReason(t, err, tt.wantReason)
		})
	}
}

func assertDenyReason(t *testing.T, err error, want DenyReason) {
	t.Helper()
	if want == "" {
		if err != nil {
			t.Fatalf("expected admission, got %v", err)
		}
		return
	}
	var quotaErr *QuotaExceededError
	if !errors.As(err, &quotaErr) {
		t.Fatalf("expected *QuotaExceededError, got %v", err)
	}
	if quotaErr.Reason != want {
		t.Errorf("Reason = %q, want %q", quotaErr.Reason, want)
	}
}

func TestLoadTierTableEmbeddedDefault(t *testing.T) {
	table, err := LoadTierTable("")
	if err != nil {
		t.Fatalf("LoadTierTable() error = %v", err)
	}

	free, ok := table[models.TierFree]
	if !ok {
		t.Fatal("embedded table missing free tier")
	}
	if free.TokenLimit != 25000 || free.ImageLimit != 5 || free.Pro {
		t.Errorf("free tier limits = %+v", free)
	}

	for _, tier := range []models.SubscriptionTier{models.TierPro, models.TierPremium} {
		limits, ok := table[tier]
		if !ok {
			t.Fatalf("embedded table missing %s tier", tier)
		}
		if !limits.Pro {
			t.Errorf("%s tier should have pro access", tier)
		}
	}
}
