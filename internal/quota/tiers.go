package quota

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"polychat/internal/models"
)

// TierLimits bounds a tier's total usage. Limits are inclusive upper
// bounds on the counters: a user at the limit is denied the next request.
type TierLimits struct {
	TokenLimit int64 `yaml:"token_limit" json:"token_limit"`
	ImageLimit int64 `yaml:"image_limit" json:"image_limit"`
	// Pro marks the tier as having access to pro-gated catalog models.
	Pro bool `yaml:"pro" json:"pro"`
}

// TierTable maps subscription tiers to their limits. The table is static
// configuration data, not code: tiers are added by editing the table.
type TierTable map[models.SubscriptionTier]TierLimits

//go:embed tiers.yaml
var defaultTierYAML []byte

// LoadTierTable parses the tier table from path, or the embedded default
// when path is empty.
func LoadTierTable(path string) (TierTable, error) {
	raw := defaultTierYAML
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read tier table: %w", err)
		}
		raw = b
	}

	var doc struct {
		Tiers TierTable `yaml:"tiers"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse tier table: %w", err)
	}
	if len(doc.Tiers) == 0 {
		return nil, fmt.Errorf("tier table is empty")
	}
	return doc.Tiers, nil
}
