// Package domain defines the reconciliation contract: facts in, a
// convergent sync record out.
package domain

import (
	"context"
	"errors"

	billingdomain "github.com/courtsidehq/courtside/internal/billing/domain"
	"github.com/courtsidehq/courtside/internal/plan"
)

// ErrMissingCorrelation means the fact carried no identity user id and the
// bounded refetch against the billing provider did not produce one either.
var ErrMissingCorrelation = errors.New("missing_correlation")

// Outcome reports what reconciling a fact did to the sync record.
type Outcome string

const (
	// OutcomeApplied means the fact became the new current state.
	OutcomeApplied Outcome = "applied"
	// OutcomeStale means a newer (or equal-but-higher) fact already won.
	OutcomeStale Outcome = "stale"
)

// Service folds subscription facts into per-customer sync state. Facts may
// arrive in any order and any number of times; the record converges on the
// newest one.
type Service interface {
	Reconcile(ctx context.Context, fact billingdomain.SubscriptionFact) (Outcome, error)
}

// PlanResolver maps a billing price item to an entitlement tier.
type PlanResolver interface {
	Resolve(priceItemID string) plan.Tier
}
