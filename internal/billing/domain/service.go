package domain

import (
	"context"
	"errors"
)

var (
	ErrInvalidSignature    = errors.New("invalid_signature")
	ErrInvalidPayload      = errors.New("invalid_payload")
	ErrInvalidEvent        = errors.New("invalid_event")
	ErrEventIgnored        = errors.New("event_ignored")
	ErrCustomerNotFound    = errors.New("customer_not_found")
	ErrProviderUnavailable = errors.New("provider_unavailable")
)

// Client is the synchronous surface of the billing provider used by the
// checkout flow and the reconciliation engine's correlation refetch.
type Client interface {
	CreateCustomer(ctx context.Context, params CreateCustomerParams) (Customer, error)
	GetCustomer(ctx context.Context, id string) (Customer, error)
	AttachPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error
	CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (CheckoutSubscription, error)
}

// IngestOutcome describes what the webhook ingress did with a delivery.
type IngestOutcome string

const (
	IngestApplied   IngestOutcome = "applied"
	IngestStale     IngestOutcome = "stale"
	IngestIgnored   IngestOutcome = "ignored"
	IngestDuplicate IngestOutcome = "duplicate"
)

// Ingress verifies and parses raw webhook deliveries, dropping redeliveries
// before they reach the reconciliation engine.
type Ingress interface {
	Ingest(ctx context.Context, payload []byte, signatureHeader string) (IngestOutcome, error)
}
