package plan

import (
	"strings"
	"sync"

	"github.com/courtsidehq/courtside/internal/config"
	"go.uber.org/zap"
)

// Resolver resolves billing price item identifiers to plan tiers. It is a
// total function: unmapped identifiers resolve to the free tier and are
// reported once as a configuration gap.
type Resolver struct {
	table    *config.PlanTableHolder
	log      *zap.Logger
	reported sync.Map // priceItemID -> struct{}
}

// NewResolver builds a Resolver backed by the hot-reloadable plan table.
func NewResolver(table *config.PlanTableHolder, log *zap.Logger) *Resolver {
	return &Resolver{
		table: table,
		log:   log.Named("plan.resolver"),
	}
}

// Resolve returns the tier for a price item identifier. Unknown identifiers
// map to the free tier, never silently to a paid one.
func (r *Resolver) Resolve(priceItemID string) Tier {
	priceItemID = strings.TrimSpace(priceItemID)
	if priceItemID == "" {
		return TierFree
	}

	if name, ok := r.table.Get()[priceItemID]; ok {
		tier, err := ParseTier(name)
		if err == nil {
			return tier
		}
	}

	if _, seen := r.reported.LoadOrStore(priceItemID, struct{}{}); !seen {
		r.log.Warn("plan_table_miss",
			zap.String("price_item_id", priceItemID),
			zap.String("resolved", string(TierFree)),
		)
	}
	return TierFree
}
