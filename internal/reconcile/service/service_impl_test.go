package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	billingdomain "github.com/courtsidehq/courtside/internal/billing/domain"
	"github.com/courtsidehq/courtside/internal/config"
	identitydomain "github.com/courtsidehq/courtside/internal/identity/domain"
	"github.com/courtsidehq/courtside/internal/plan"
	reconciledomain "github.com/courtsidehq/courtside/internal/reconcile/domain"
	"github.com/courtsidehq/courtside/internal/syncstate/domain"
	"github.com/courtsidehq/courtside/internal/syncstate/repository"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeSynchronizer struct {
	mu      sync.Mutex
	calls   []appliedCall
	failErr error
}

type appliedCall struct {
	identityUserID string
	tier           plan.Tier
}

func (f *fakeSynchronizer) ApplyPlan(ctx context.Context, identityUserID string, tier plan.Tier) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, appliedCall{identityUserID: identityUserID, tier: tier})
	return f.failErr
}

func (f *fakeSynchronizer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeSynchronizer) lastCall() appliedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func (f *fakeSynchronizer) setFailure(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failErr = err
}

type fakeBillingClient struct {
	mu        sync.Mutex
	customers map[string]billingdomain.Customer
	getCalls  int
}

func (f *fakeBillingClient) CreateCustomer(ctx context.Context, params billingdomain.CreateCustomerParams) (billingdomain.Customer, error) {
	return billingdomain.Customer{}, errors.New("not implemented")
}

func (f *fakeBillingClient) GetCustomer(ctx context.Context, id string) (billingdomain.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	cust, ok := f.customers[id]
	if !ok {
		return billingdomain.Customer{}, billingdomain.ErrCustomerNotFound
	}
	return cust, nil
}

func (f *fakeBillingClient) AttachPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	return errors.New("not implemented")
}

func (f *fakeBillingClient) CreateSubscription(ctx context.Context, params billingdomain.CreateSubscriptionParams) (billingdomain.CheckoutSubscription, error) {
	return billingdomain.CheckoutSubscription{}, errors.New("not implemented")
}

type engineFixture struct {
	db       *gorm.DB
	store    domain.Store
	identity *fakeSynchronizer
	billing  *fakeBillingClient
	svc      *Service
}

func newEngineFixture(t *testing.T) *engineFixture {
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.SyncRecord{}, &domain.AppliedEvent{}))

	// A single connection keeps every goroutine on the same in-memory
	// database.
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	store := repository.Provide()
	identity := &fakeSynchronizer{}
	billing := &fakeBillingClient{customers: map[string]billingdomain.Customer{}}

	holder := config.NewStaticPlanTableHolder(config.PlanTable{
		"price_pro":     "pro",
		"price_premium": "premium",
	})
	resolver := plan.NewResolver(holder, zap.NewNop())

	svc := &Service{
		db:               conn,
		log:              zap.NewNop(),
		store:            store,
		resolver:         resolver,
		billing:          billing,
		identity:         identity,
		correlationDelay: time.Millisecond,
		sleep:            func(ctx context.Context, d time.Duration) error { return nil },
	}

	return &engineFixture{db: conn, store: store, identity: identity, billing: billing, svc: svc}
}

func fact(eventID, customerID, priceItemID, identityUserID string, observedAt time.Time) billingdomain.SubscriptionFact {
	return billingdomain.SubscriptionFact{
		EventID:        eventID,
		EventType:      "customer.subscription.updated",
		CustomerID:     customerID,
		SubscriptionID: "sub_1",
		PriceItemID:    priceItemID,
		Status:         "active",
		IdentityUserID: identityUserID,
		ObservedAt:     observedAt,
	}
}

func TestReconcileAppliesFact(t *testing.T) {
	fx := newEngineFixture(t)
	ctx := context.Background()
	t1 := time.Unix(100, 0).UTC()

	outcome, err := fx.svc.Reconcile(ctx, fact("evt_1", "cus_1", "price_pro", "user_42", t1))
	require.NoError(t, err)
	assert.Equal(t, reconciledomain.OutcomeApplied, outcome)

	rec, err := fx.store.Current(ctx, fx.db, "cus_1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "pro", rec.AppliedPlan)
	assert.Equal(t, "evt_1", rec.AppliedEventID)
	assert.Equal(t, "user_42", rec.IdentityUserID)
	assert.NotNil(t, rec.ProjectionSyncedAt)

	require.Equal(t, 1, fx.identity.callCount())
	assert.Equal(t, appliedCall{identityUserID: "user_42", tier: plan.TierPro}, fx.identity.lastCall())
}

func TestReconcileSkipsStaleFact(t *testing.T) {
	fx := newEngineFixture(t)
	ctx := context.Background()
	t1 := time.Unix(100, 0).UTC()
	t2 := time.Unix(200, 0).UTC()

	outcome, err := fx.svc.Reconcile(ctx, fact("evt_2", "cus_1", "price_premium", "user_42", t2))
	require.NoError(t, err)
	require.Equal(t, reconciledomain.OutcomeApplied, outcome)

	// The older fact arrives late and must not regress the record.
	outcome, err = fx.svc.Reconcile(ctx, fact("evt_1", "cus_1", "price_pro", "user_42", t1))
	require.NoError(t, err)
	assert.Equal(t, reconciledomain.OutcomeStale, outcome)

	rec, err := fx.store.Current(ctx, fx.db, "cus_1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "premium", rec.AppliedPlan)

	// Stale facts never touch the identity provider.
	assert.Equal(t, 1, fx.identity.callCount())
}

func TestReconcileConvergesRegardlessOfOrder(t *testing.T) {
	deliveries := [][]string{
		{"evt_1", "evt_2", "evt_3"},
		{"evt_3", "evt_1", "evt_2"},
		{"evt_2", "evt_3", "evt_1"},
	}
	facts := map[string]billingdomain.SubscriptionFact{
		"evt_1": fact("evt_1", "cus_1", "price_pro", "user_42", time.Unix(100, 0).UTC()),
		"evt_2": fact("evt_2", "cus_1", "price_premium", "user_42", time.Unix(200, 0).UTC()),
		"evt_3": fact("evt_3", "cus_1", "", "user_42", time.Unix(300, 0).UTC()),
	}

	for _, order := range deliveries {
		t.Run(fmt.Sprintf("order_%v", order), func(t *testing.T) {
			fx := newEngineFixture(t)
			ctx := context.Background()

			for _, id := range order {
				_, err := fx.svc.Reconcile(ctx, facts[id])
				require.NoError(t, err)
			}

			rec, err := fx.store.Current(ctx, fx.db, "cus_1")
			require.NoError(t, err)
			require.NotNil(t, rec)
			assert.Equal(t, "evt_3", rec.AppliedEventID)
			assert.Equal(t, "free", rec.AppliedPlan)
		})
	}
}

func TestReconcileTieBreakPrefersHigherTier(t *testing.T) {
	fx := newEngineFixture(t)
	ctx := context.Background()
	ts := time.Unix(100, 0).UTC()

	outcome, err := fx.svc.Reconcile(ctx, fact("evt_free", "cus_1", "", "user_42", ts))
	require.NoError(t, err)
	require.Equal(t, reconciledomain.OutcomeApplied, outcome)

	// Same timestamp, higher tier: the upgrade wins the tie.
	outcome, err = fx.svc.Reconcile(ctx, fact("evt_pro", "cus_1", "price_pro", "user_42", ts))
	require.NoError(t, err)
	assert.Equal(t, reconciledomain.OutcomeApplied, outcome)

	rec, err := fx.store.Current(ctx, fx.db, "cus_1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "pro", rec.AppliedPlan)

	// The reverse direction loses the same tie.
	outcome, err = fx.svc.Reconcile(ctx, fact("evt_free_again", "cus_1", "", "user_42", ts))
	require.NoError(t, err)
	assert.Equal(t, reconciledomain.OutcomeStale, outcome)

	rec, err = fx.store.Current(ctx, fx.db, "cus_1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "pro", rec.AppliedPlan)
}

func TestReconcileRefetchesMissingCorrelation(t *testing.T) {
	fx := newEngineFixture(t)
	fx.billing.customers["cus_1"] = billingdomain.Customer{ID: "cus_1", IdentityUserID: "user_42"}
	ctx := context.Background()

	outcome, err := fx.svc.Reconcile(ctx, fact("evt_1", "cus_1", "price_pro", "", time.Unix(100, 0).UTC()))
	require.NoError(t, err)
	assert.Equal(t, reconciledomain.OutcomeApplied, outcome)
	assert.Equal(t, 1, fx.billing.getCalls)

	rec, err := fx.store.Current(ctx, fx.db, "cus_1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "user_42", rec.IdentityUserID)
}

func TestReconcileFailsWhenCorrelationStaysMissing(t *testing.T) {
	fx := newEngineFixture(t)
	fx.billing.customers["cus_1"] = billingdomain.Customer{ID: "cus_1"}
	ctx := context.Background()

	_, err := fx.svc.Reconcile(ctx, fact("evt_1", "cus_1", "price_pro", "", time.Unix(100, 0).UTC()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, reconciledomain.ErrMissingCorrelation))

	rec, err := fx.store.Current(ctx, fx.db, "cus_1")
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Equal(t, 0, fx.identity.callCount())
}

func TestReconcileCommitsDespiteIdentityFailure(t *testing.T) {
	fx := newEngineFixture(t)
	fx.identity.setFailure(identitydomain.ErrSyncExhausted)
	ctx := context.Background()

	outcome, err := fx.svc.Reconcile(ctx, fact("evt_1", "cus_1", "price_premium", "user_42", time.Unix(100, 0).UTC()))
	require.NoError(t, err)
	assert.Equal(t, reconciledomain.OutcomeApplied, outcome)

	// The record reflects billing truth with the projection still pending.
	rec, err := fx.store.Current(ctx, fx.db, "cus_1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "premium", rec.AppliedPlan)
	assert.Nil(t, rec.ProjectionSyncedAt)

	// Once the provider recovers, the sweep finishes the projection.
	fx.identity.setFailure(nil)
	sweeper := &Sweeper{
		db:       fx.db,
		log:      zap.NewNop(),
		store:    fx.store,
		identity: fx.identity,
		cfg:      SweepConfig{Interval: time.Minute}.withDefaults(),
	}
	repaired, err := sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repaired)

	rec, err = fx.store.Current(ctx, fx.db, "cus_1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.NotNil(t, rec.ProjectionSyncedAt)
	assert.Equal(t, appliedCall{identityUserID: "user_42", tier: plan.TierPremium}, fx.identity.lastCall())
}

func TestReconcileConcurrentWritersConverge(t *testing.T) {
	fx := newEngineFixture(t)
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			price := "price_pro"
			if i%2 == 0 {
				price = "price_premium"
			}
			f := fact(fmt.Sprintf("evt_%d", i), "cus_1", price, "user_42", time.Unix(int64(100+i), 0).UTC())
			_, err := fx.svc.Reconcile(ctx, f)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// Whatever the interleaving, the newest fact wins.
	rec, err := fx.store.Current(ctx, fx.db, "cus_1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, fmt.Sprintf("evt_%d", writers-1), rec.AppliedEventID)
	assert.Equal(t, time.Unix(int64(100+writers-1), 0).UTC(), rec.AppliedAt.UTC())
	assert.Equal(t, "pro", rec.AppliedPlan)
}
