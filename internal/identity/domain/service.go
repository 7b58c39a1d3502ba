// Package domain defines the identity provider projection contract.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/courtsidehq/courtside/internal/plan"
)

var (
	// ErrSyncExhausted means the retry budget ran out on transient failures.
	// The committed sync record keeps its pending projection marker; the
	// background sweep picks it up later.
	ErrSyncExhausted = errors.New("identity_sync_exhausted")

	// ErrSyncRejected means the provider refused the write outright, so
	// retrying the same request cannot help.
	ErrSyncRejected = errors.New("identity_sync_rejected")
)

// Synchronizer projects the applied plan into the identity provider's user
// metadata. Implementations must be safe to call repeatedly with the same
// arguments.
type Synchronizer interface {
	ApplyPlan(ctx context.Context, identityUserID string, tier plan.Tier) error
}

// RetryPolicy bounds the in-request retry loop around transient provider
// failures.
type RetryPolicy struct {
	InitialInterval time.Duration
	Multiplier      float64
	MaxAttempts     uint64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval: 250 * time.Millisecond,
		Multiplier:      2,
		MaxAttempts:     3,
	}
}
