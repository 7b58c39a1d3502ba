// Package plan maps billing price items to the application's plan tiers.
package plan

import (
	"errors"
	"strings"
)

// Tier is the entitlement level consumed by the rest of the application.
type Tier string

const (
	TierFree    Tier = "free"
	TierPro     Tier = "pro"
	TierPremium Tier = "premium"
)

var ErrUnknownTier = errors.New("unknown_tier")

// Rank orders tiers for the equal-timestamp tie-break: a higher rank never
// loses to a lower one, so a paying user is never under-provisioned.
func (t Tier) Rank() int {
	switch t {
	case TierPremium:
		return 2
	case TierPro:
		return 1
	default:
		return 0
	}
}

func (t Tier) String() string { return string(t) }

// ParseTier validates a tier name from configuration or storage.
func ParseTier(value string) (Tier, error) {
	switch Tier(strings.ToLower(strings.TrimSpace(value))) {
	case TierFree:
		return TierFree, nil
	case TierPro:
		return TierPro, nil
	case TierPremium:
		return TierPremium, nil
	default:
		return TierFree, ErrUnknownTier
	}
}
