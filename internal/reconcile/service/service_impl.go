// Package service holds the reconciliation engine: it folds billing facts
// into sync records and projects the winning plan into the identity provider.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	billingdomain "github.com/courtsidehq/courtside/internal/billing/domain"
	"github.com/courtsidehq/courtside/internal/config"
	identitydomain "github.com/courtsidehq/courtside/internal/identity/domain"
	"github.com/courtsidehq/courtside/internal/observability/metrics"
	"github.com/courtsidehq/courtside/internal/plan"
	reconciledomain "github.com/courtsidehq/courtside/internal/reconcile/domain"
	syncdomain "github.com/courtsidehq/courtside/internal/syncstate/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxCommitAttempts bounds the read-decide-swap loop. Every lost swap means
// another writer landed a commit in between, so the bound is only reachable
// under pathological contention.
const maxCommitAttempts = 32

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Cfg      config.Config
	Store    syncdomain.Store
	Resolver reconciledomain.PlanResolver
	Billing  billingdomain.Client
	Identity identitydomain.Synchronizer
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db               *gorm.DB
	log              *zap.Logger
	store            syncdomain.Store
	resolver         reconciledomain.PlanResolver
	billing          billingdomain.Client
	identity         identitydomain.Synchronizer
	metrics          *metrics.Metrics
	correlationDelay time.Duration
	sleep            func(ctx context.Context, d time.Duration) error
}

func New(p Params) reconciledomain.Service {
	return &Service{
		db:               p.DB,
		log:              p.Log.Named("reconcile.service"),
		store:            p.Store,
		resolver:         p.Resolver,
		billing:          p.Billing,
		identity:         p.Identity,
		metrics:          p.Metrics,
		correlationDelay: p.Cfg.CorrelationRetryDelay,
		sleep:            sleepContext,
	}
}

func (s *Service) Reconcile(ctx context.Context, fact billingdomain.SubscriptionFact) (reconciledomain.Outcome, error) {
	if strings.TrimSpace(fact.CustomerID) == "" || strings.TrimSpace(fact.EventID) == "" {
		return "", billingdomain.ErrInvalidEvent
	}

	identityUserID, err := s.correlate(ctx, fact)
	if err != nil {
		return "", err
	}

	tier := s.resolver.Resolve(fact.PriceItemID)

	for attempt := 0; attempt < maxCommitAttempts; attempt++ {
		current, err := s.store.Current(ctx, s.db, fact.CustomerID)
		if err != nil {
			return "", err
		}

		var expected *time.Time
		if current != nil {
			if !supersedes(fact.ObservedAt, tier, current) {
				s.log.Debug("fact is stale, skipping",
					zap.String("customer_id", fact.CustomerID),
					zap.String("event_id", fact.EventID),
					zap.Time("observed_at", fact.ObservedAt),
					zap.Time("applied_at", current.AppliedAt),
				)
				s.recordOutcome(ctx, "stale")
				return reconciledomain.OutcomeStale, nil
			}
			expected = &current.AppliedAt
		}

		// Project into the identity provider before committing. The write is
		// idempotent, so redoing it after a lost swap is safe.
		syncErr := s.identity.ApplyPlan(ctx, identityUserID, tier)

		rec := syncdomain.SyncRecord{
			CustomerID:     fact.CustomerID,
			IdentityUserID: identityUserID,
			AppliedPlan:    string(tier),
			AppliedEventID: fact.EventID,
			AppliedAt:      fact.ObservedAt,
		}
		if syncErr == nil {
			now := time.Now().UTC()
			rec.ProjectionSyncedAt = &now
		}

		applied, err := s.store.Commit(ctx, s.db, rec, expected)
		if err != nil {
			return "", err
		}
		if !applied {
			continue
		}

		s.recordOutcome(ctx, "applied")
		if syncErr != nil {
			// The commit stands even when the projection failed: local state
			// must reflect billing truth, and the pending marker lets the
			// sweep finish the identity write later.
			s.log.Error("identity projection failed after commit",
				zap.String("customer_id", fact.CustomerID),
				zap.String("identity_user_id", identityUserID),
				zap.String("plan", string(tier)),
				zap.Error(syncErr),
			)
			s.recordSyncFailure(ctx)
		}
		return reconciledomain.OutcomeApplied, nil
	}

	return "", fmt.Errorf("commit contention for customer %s", fact.CustomerID)
}

// correlate resolves the identity user for a fact. When the webhook raced
// ahead of the provider's metadata propagation, wait once and refetch the
// customer; a second miss is a hard error for the caller to surface.
func (s *Service) correlate(ctx context.Context, fact billingdomain.SubscriptionFact) (string, error) {
	if id := strings.TrimSpace(fact.IdentityUserID); id != "" {
		return id, nil
	}

	s.log.Info("identity linkage missing, refetching customer",
		zap.String("customer_id", fact.CustomerID),
		zap.String("event_id", fact.EventID),
	)
	if err := s.sleep(ctx, s.correlationDelay); err != nil {
		return "", err
	}

	cust, err := s.billing.GetCustomer(ctx, fact.CustomerID)
	if err != nil {
		return "", fmt.Errorf("correlation refetch: %w", err)
	}
	if cust.IdentityUserID == "" {
		return "", fmt.Errorf("%w: customer %s", reconciledomain.ErrMissingCorrelation, fact.CustomerID)
	}
	return cust.IdentityUserID, nil
}

// supersedes decides whether a fact beats the current record: strictly newer
// always wins, and on an exact timestamp tie the higher tier wins.
func supersedes(observedAt time.Time, tier plan.Tier, current *syncdomain.SyncRecord) bool {
	if observedAt.After(current.AppliedAt) {
		return true
	}
	if !observedAt.Equal(current.AppliedAt) {
		return false
	}
	currentTier, err := plan.ParseTier(current.AppliedPlan)
	if err != nil {
		return true
	}
	return tier.Rank() > currentTier.Rank()
}

func (s *Service) recordOutcome(ctx context.Context, outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordReconcileOutcome(ctx, outcome)
}

func (s *Service) recordSyncFailure(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordIdentitySyncFailure(ctx)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
