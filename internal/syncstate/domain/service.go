package domain

import "context"

// Service exposes read access to sync records.
type Service interface {
	GetByCustomer(ctx context.Context, customerID string) (SyncRecord, error)
}
