package plan

import (
	"testing"

	"github.com/courtsidehq/courtside/internal/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestResolver() *Resolver {
	holder := config.NewStaticPlanTableHolder(config.PlanTable{
		"price_pro":     "pro",
		"price_premium": "premium",
		"price_legacy":  "pro",
	})
	return NewResolver(holder, zap.NewNop())
}

func TestResolveMappedPrices(t *testing.T) {
	r := newTestResolver()

	assert.Equal(t, TierPro, r.Resolve("price_pro"))
	assert.Equal(t, TierPremium, r.Resolve("price_premium"))
	assert.Equal(t, TierPro, r.Resolve("price_legacy"))
}

func TestResolveUnmappedPriceDefaultsToFree(t *testing.T) {
	r := newTestResolver()

	assert.Equal(t, TierFree, r.Resolve("unknown-id"))
	// Re-resolving the same unknown id stays a no-op, not a failure.
	assert.Equal(t, TierFree, r.Resolve("unknown-id"))
	assert.Equal(t, TierFree, r.Resolve(""))
}

func TestTierRankOrdering(t *testing.T) {
	assert.Greater(t, TierPremium.Rank(), TierPro.Rank())
	assert.Greater(t, TierPro.Rank(), TierFree.Rank())
}

func TestParseTier(t *testing.T) {
	tier, err := ParseTier(" Premium ")
	assert.NoError(t, err)
	assert.Equal(t, TierPremium, tier)

	_, err = ParseTier("platinum")
	assert.ErrorIs(t, err, ErrUnknownTier)
}
