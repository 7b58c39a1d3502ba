package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("not_found")

// Store is the only writer path for sync state. ReserveEvent and Commit are
// atomic primitives: test-and-set on the event id, compare-and-swap on the
// record's applied timestamp.
type Store interface {
	// ReserveEvent inserts the event id if unseen. Returns true when this
	// delivery is the first; false means a redelivery that must be dropped.
	ReserveEvent(ctx context.Context, db *gorm.DB, event *AppliedEvent) (bool, error)

	// ReleaseEvent removes a reservation so the provider's redelivery gets a
	// fresh attempt. Only the holder of a fresh reservation may release it.
	ReleaseEvent(ctx context.Context, db *gorm.DB, eventID string) error

	// Current returns the record for a customer, or nil when none exists.
	Current(ctx context.Context, db *gorm.DB, customerID string) (*SyncRecord, error)

	// Commit writes rec conditionally. expectedAppliedAt nil means "no prior
	// record": the insert loses to a concurrent writer via the primary key.
	// Otherwise the update only lands while the stored applied_at still
	// matches. Returns false on a lost race; the caller re-reads and
	// re-decides.
	Commit(ctx context.Context, db *gorm.DB, rec SyncRecord, expectedAppliedAt *time.Time) (bool, error)

	// PendingProjections lists records whose identity write has not landed.
	PendingProjections(ctx context.Context, db *gorm.DB, limit int) ([]SyncRecord, error)
}
