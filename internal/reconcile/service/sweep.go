package service

import (
	"context"
	"time"

	"github.com/courtsidehq/courtside/internal/config"
	identitydomain "github.com/courtsidehq/courtside/internal/identity/domain"
	"github.com/courtsidehq/courtside/internal/plan"
	syncdomain "github.com/courtsidehq/courtside/internal/syncstate/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SweepConfig controls the background pass over records whose identity
// projection is still pending.
type SweepConfig struct {
	Interval   time.Duration
	BatchSize  int
	RunTimeout time.Duration
}

func (c SweepConfig) withDefaults() SweepConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = time.Minute
	}
	return c
}

type SweeperParams struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Cfg      config.Config
	Store    syncdomain.Store
	Identity identitydomain.Synchronizer
}

// Sweeper retries identity writes that failed at reconcile time. It reuses
// the same compare-and-swap commit, so a record that moved on since the read
// is left for the next pass.
type Sweeper struct {
	db       *gorm.DB
	log      *zap.Logger
	store    syncdomain.Store
	identity identitydomain.Synchronizer
	cfg      SweepConfig
}

func NewSweeper(p SweeperParams) *Sweeper {
	cfg := SweepConfig{Interval: p.Cfg.SweepInterval}.withDefaults()
	return &Sweeper{
		db:       p.DB,
		log:      p.Log.Named("reconcile.sweep"),
		store:    p.Store,
		identity: p.Identity,
		cfg:      cfg,
	}
}

// Enabled reports whether the sweep should run at all.
func (s *Sweeper) Enabled() bool { return s.cfg.Interval > 0 }

func (s *Sweeper) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if _, err := s.RunOnce(ctx); err != nil {
			s.log.Warn("projection sweep failed", zap.Error(err))
		}
	}
}

func (s *Sweeper) RunOnce(parentCtx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(parentCtx, s.cfg.RunTimeout)
	defer cancel()

	pending, err := s.store.PendingProjections(ctx, s.db, s.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	repaired := 0
	for _, rec := range pending {
		tier, err := plan.ParseTier(rec.AppliedPlan)
		if err != nil {
			s.log.Warn("pending record holds unknown plan",
				zap.String("customer_id", rec.CustomerID),
				zap.String("plan", rec.AppliedPlan),
			)
			continue
		}

		if err := s.identity.ApplyPlan(ctx, rec.IdentityUserID, tier); err != nil {
			s.log.Warn("projection retry failed",
				zap.String("customer_id", rec.CustomerID),
				zap.String("identity_user_id", rec.IdentityUserID),
				zap.Error(err),
			)
			continue
		}

		now := time.Now().UTC()
		rec.ProjectionSyncedAt = &now
		applied, err := s.store.Commit(ctx, s.db, rec, &rec.AppliedAt)
		if err != nil {
			return repaired, err
		}
		if applied {
			repaired++
		}
	}

	if repaired > 0 {
		s.log.Info("projection sweep repaired records", zap.Int("count", repaired))
	}
	return repaired, nil
}
