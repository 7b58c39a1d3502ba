// Package domain defines the direct checkout contract: create the billing
// objects and seed local sync state without waiting for the webhook.
package domain

import (
	"context"
	"errors"
)

var ErrInvalidRequest = errors.New("invalid_request")

type CreateSubscriptionRequest struct {
	PriceItemID     string `json:"price_item_id"`
	IdentityUserID  string `json:"identity_user_id"`
	Email           string `json:"email"`
	PaymentMethodID string `json:"payment_method_id"`
}

type CreateSubscriptionResponse struct {
	SubscriptionID string `json:"subscription_id"`
	CustomerID     string `json:"customer_id"`
	Status         string `json:"status"`
	Plan           string `json:"plan"`
	ClientSecret   string `json:"client_secret,omitempty"`
}

type Service interface {
	CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (CreateSubscriptionResponse, error)
}
