package stripe

import (
	"context"
	"fmt"
	"strings"
	"time"

	billingdomain "github.com/courtsidehq/courtside/internal/billing/domain"
	"github.com/courtsidehq/courtside/internal/config"
	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/customer"
	"github.com/stripe/stripe-go/v83/paymentmethod"
	"github.com/stripe/stripe-go/v83/subscription"
)

// Client talks to the Stripe API on behalf of checkout and the
// reconciliation engine's correlation refetch.
type Client struct{}

// NewClient sets the global API key. Single-tenant: one key per process.
func NewClient(cfg config.Config) (billingdomain.Client, error) {
	key := strings.TrimSpace(cfg.BillingSecretKey)
	if key == "" {
		return nil, fmt.Errorf("billing secret key is required")
	}
	stripe.Key = key
	return &Client{}, nil
}

func (c *Client) CreateCustomer(ctx context.Context, params billingdomain.CreateCustomerParams) (billingdomain.Customer, error) {
	customerParams := &stripe.CustomerParams{}
	customerParams.Context = ctx
	if params.Email != "" {
		customerParams.Email = stripe.String(params.Email)
	}
	// The correlation key lives in customer metadata so every later webhook
	// and refetch can map the customer back to an identity user.
	customerParams.AddMetadata("identity_user_id", params.IdentityUserID)

	created, err := customer.New(customerParams)
	if err != nil {
		return billingdomain.Customer{}, wrapProviderError("create customer", err)
	}
	return buildCustomer(created), nil
}

func (c *Client) GetCustomer(ctx context.Context, id string) (billingdomain.Customer, error) {
	if strings.TrimSpace(id) == "" {
		return billingdomain.Customer{}, billingdomain.ErrCustomerNotFound
	}

	params := &stripe.CustomerParams{}
	params.Context = ctx
	found, err := customer.Get(id, params)
	if err != nil {
		if stripeErr, ok := err.(*stripe.Error); ok && stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return billingdomain.Customer{}, billingdomain.ErrCustomerNotFound
		}
		return billingdomain.Customer{}, wrapProviderError("get customer", err)
	}
	return buildCustomer(found), nil
}

func (c *Client) AttachPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	attachParams := &stripe.PaymentMethodAttachParams{
		Customer: stripe.String(customerID),
	}
	attachParams.Context = ctx
	if _, err := paymentmethod.Attach(paymentMethodID, attachParams); err != nil {
		return wrapProviderError("attach payment method", err)
	}

	updateParams := &stripe.CustomerParams{
		InvoiceSettings: &stripe.CustomerInvoiceSettingsParams{
			DefaultPaymentMethod: stripe.String(paymentMethodID),
		},
	}
	updateParams.Context = ctx
	if _, err := customer.Update(customerID, updateParams); err != nil {
		return wrapProviderError("set default payment method", err)
	}
	return nil
}

func (c *Client) CreateSubscription(ctx context.Context, params billingdomain.CreateSubscriptionParams) (billingdomain.CheckoutSubscription, error) {
	subParams := &stripe.SubscriptionParams{
		Customer: stripe.String(params.CustomerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(params.PriceItemID)},
		},
		PaymentBehavior: stripe.String("default_incomplete"),
		PaymentSettings: &stripe.SubscriptionPaymentSettingsParams{
			SaveDefaultPaymentMethod: stripe.String("on_subscription"),
		},
	}
	subParams.Context = ctx
	subParams.AddExpand("latest_invoice.confirmation_secret")

	created, err := subscription.New(subParams)
	if err != nil {
		return billingdomain.CheckoutSubscription{}, wrapProviderError("create subscription", err)
	}

	clientSecret := ""
	if created.LatestInvoice != nil && created.LatestInvoice.ConfirmationSecret != nil {
		clientSecret = created.LatestInvoice.ConfirmationSecret.ClientSecret
	}

	return billingdomain.CheckoutSubscription{
		ID:           created.ID,
		CustomerID:   params.CustomerID,
		PriceItemID:  params.PriceItemID,
		Status:       string(created.Status),
		ClientSecret: clientSecret,
		CreatedAt:    time.Unix(created.Created, 0).UTC(),
	}, nil
}

func buildCustomer(c *stripe.Customer) billingdomain.Customer {
	identityUserID := ""
	if c.Metadata != nil {
		identityUserID = strings.TrimSpace(c.Metadata["identity_user_id"])
	}
	return billingdomain.Customer{
		ID:             c.ID,
		Email:          c.Email,
		IdentityUserID: identityUserID,
	}
}

func wrapProviderError(op string, err error) error {
	if stripeErr, ok := err.(*stripe.Error); ok {
		return fmt.Errorf("%s: %w: %s", op, billingdomain.ErrProviderUnavailable, stripeErr.Msg)
	}
	return fmt.Errorf("%s: %w: %v", op, billingdomain.ErrProviderUnavailable, err)
}
