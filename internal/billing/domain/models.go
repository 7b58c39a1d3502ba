// Package domain defines the billing provider contract: immutable facts
// ingested from the provider and the client surface used by checkout.
package domain

import "time"

// SubscriptionFact is a timestamped observation of billing-provider truth.
// Facts are never mutated locally, only ingested and compared by timestamp.
type SubscriptionFact struct {
	EventID        string
	EventType      string
	CustomerID     string
	SubscriptionID string
	PriceItemID    string
	Status         string
	// IdentityUserID is the correlation key into the identity provider. It
	// may be empty when the provider has not yet propagated customer
	// metadata; the reconciliation engine then performs a bounded refetch.
	IdentityUserID string
	ObservedAt     time.Time
	RawPayload     []byte
}

// Customer mirrors the billing provider's customer record, read-only.
type Customer struct {
	ID             string
	Email          string
	IdentityUserID string
}

// CheckoutSubscription is the provider's view of a just-created subscription.
type CheckoutSubscription struct {
	ID           string
	CustomerID   string
	PriceItemID  string
	Status       string
	ClientSecret string
	CreatedAt    time.Time
}

type CreateCustomerParams struct {
	Email          string
	IdentityUserID string
}

type CreateSubscriptionParams struct {
	CustomerID  string
	PriceItemID string
}
