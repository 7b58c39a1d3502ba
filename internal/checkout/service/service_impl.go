package service

import (
	"context"
	"fmt"
	"strings"

	billingdomain "github.com/courtsidehq/courtside/internal/billing/domain"
	checkoutdomain "github.com/courtsidehq/courtside/internal/checkout/domain"
	reconciledomain "github.com/courtsidehq/courtside/internal/reconcile/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Billing    billingdomain.Client
	Resolver   reconciledomain.PlanResolver
	Reconciler reconciledomain.Service
}

// Service drives the purchase-from-our-UI path: billing objects are created
// through the provider API and the resulting state goes through the same
// reconciliation as webhook facts, so the two paths cannot diverge.
type Service struct {
	log        *zap.Logger
	billing    billingdomain.Client
	resolver   reconciledomain.PlanResolver
	reconciler reconciledomain.Service
}

func New(p Params) checkoutdomain.Service {
	return &Service{
		log:        p.Log.Named("checkout.service"),
		billing:    p.Billing,
		resolver:   p.Resolver,
		reconciler: p.Reconciler,
	}
}

func (s *Service) CreateSubscription(ctx context.Context, req checkoutdomain.CreateSubscriptionRequest) (checkoutdomain.CreateSubscriptionResponse, error) {
	req.PriceItemID = strings.TrimSpace(req.PriceItemID)
	req.IdentityUserID = strings.TrimSpace(req.IdentityUserID)
	if req.PriceItemID == "" || req.IdentityUserID == "" {
		return checkoutdomain.CreateSubscriptionResponse{}, fmt.Errorf("%w: price_item_id and identity_user_id are required", checkoutdomain.ErrInvalidRequest)
	}

	cust, err := s.billing.CreateCustomer(ctx, billingdomain.CreateCustomerParams{
		Email:          strings.TrimSpace(req.Email),
		IdentityUserID: req.IdentityUserID,
	})
	if err != nil {
		return checkoutdomain.CreateSubscriptionResponse{}, err
	}

	if pm := strings.TrimSpace(req.PaymentMethodID); pm != "" {
		if err := s.billing.AttachPaymentMethod(ctx, cust.ID, pm); err != nil {
			return checkoutdomain.CreateSubscriptionResponse{}, err
		}
	}

	sub, err := s.billing.CreateSubscription(ctx, billingdomain.CreateSubscriptionParams{
		CustomerID:  cust.ID,
		PriceItemID: req.PriceItemID,
	})
	if err != nil {
		return checkoutdomain.CreateSubscriptionResponse{}, err
	}

	// Seed sync state immediately instead of waiting for the webhook. The
	// synthetic event id keeps this write distinct from the provider's own
	// delivery; timestamp ordering decides which of the two lands last.
	fact := billingdomain.SubscriptionFact{
		EventID:        "checkout_" + sub.ID,
		EventType:      "checkout.subscription.created",
		CustomerID:     cust.ID,
		SubscriptionID: sub.ID,
		PriceItemID:    req.PriceItemID,
		Status:         sub.Status,
		IdentityUserID: req.IdentityUserID,
		ObservedAt:     sub.CreatedAt,
	}
	if _, err := s.reconciler.Reconcile(ctx, fact); err != nil {
		// The subscription exists at the provider; the webhook delivery will
		// converge local state, so the purchase itself still succeeds.
		s.log.Error("post-checkout reconcile failed",
			zap.String("customer_id", cust.ID),
			zap.String("subscription_id", sub.ID),
			zap.Error(err),
		)
	}

	return checkoutdomain.CreateSubscriptionResponse{
		SubscriptionID: sub.ID,
		CustomerID:     cust.ID,
		Status:         sub.Status,
		Plan:           s.resolver.Resolve(req.PriceItemID).String(),
		ClientSecret:   sub.ClientSecret,
	}, nil
}
