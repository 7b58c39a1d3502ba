package repository

import (
	"context"
	"time"

	"github.com/courtsidehq/courtside/internal/syncstate/domain"
	"github.com/courtsidehq/courtside/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Store {
	return &repo{}
}

func (r *repo) ReserveEvent(ctx context.Context, conn *gorm.DB, event *domain.AppliedEvent) (bool, error) {
	res := conn.WithContext(ctx).Exec(
		`INSERT INTO applied_events (id, event_id, event_type, customer_id, payload, received_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (event_id) DO NOTHING`,
		event.ID,
		event.EventID,
		event.EventType,
		event.CustomerID,
		event.Payload,
		event.ReceivedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ReleaseEvent(ctx context.Context, conn *gorm.DB, eventID string) error {
	return conn.WithContext(ctx).Exec(
		`DELETE FROM applied_events WHERE event_id = ?`,
		eventID,
	).Error
}

func (r *repo) Current(ctx context.Context, conn *gorm.DB, customerID string) (*domain.SyncRecord, error) {
	var rec domain.SyncRecord
	err := conn.WithContext(ctx).Raw(
		`SELECT customer_id, identity_user_id, applied_plan, applied_event_id,
			applied_at, projection_synced_at, created_at, updated_at
		 FROM sync_records WHERE customer_id = ?`,
		customerID,
	).Scan(&rec).Error
	if err != nil {
		return nil, err
	}
	if rec.CustomerID == "" {
		return nil, nil
	}
	return &rec, nil
}

func (r *repo) Commit(ctx context.Context, conn *gorm.DB, rec domain.SyncRecord, expectedAppliedAt *time.Time) (bool, error) {
	now := time.Now().UTC()

	if expectedAppliedAt == nil {
		res := conn.WithContext(ctx).Exec(
			`INSERT INTO sync_records (customer_id, identity_user_id, applied_plan,
				applied_event_id, applied_at, projection_synced_at, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.CustomerID,
			rec.IdentityUserID,
			rec.AppliedPlan,
			rec.AppliedEventID,
			rec.AppliedAt,
			rec.ProjectionSyncedAt,
			now,
			now,
		)
		if res.Error != nil {
			if db.IsDuplicateKeyErr(res.Error) {
				return false, nil
			}
			return false, res.Error
		}
		return true, nil
	}

	res := conn.WithContext(ctx).Exec(
		`UPDATE sync_records
		 SET identity_user_id = ?, applied_plan = ?, applied_event_id = ?,
			applied_at = ?, projection_synced_at = ?, updated_at = ?
		 WHERE customer_id = ? AND applied_at = ?`,
		rec.IdentityUserID,
		rec.AppliedPlan,
		rec.AppliedEventID,
		rec.AppliedAt,
		rec.ProjectionSyncedAt,
		now,
		rec.CustomerID,
		*expectedAppliedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) PendingProjections(ctx context.Context, conn *gorm.DB, limit int) ([]domain.SyncRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var records []domain.SyncRecord
	err := conn.WithContext(ctx).Raw(
		`SELECT customer_id, identity_user_id, applied_plan, applied_event_id,
			applied_at, projection_synced_at, created_at, updated_at
		 FROM sync_records
		 WHERE projection_synced_at IS NULL
		 ORDER BY updated_at
		 LIMIT ?`,
		limit,
	).Scan(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
