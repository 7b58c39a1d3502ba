// Package domain contains persistence models for subscription sync state.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// SyncRecord is the durable invariant-holder: at most one row per billing
// customer, reflecting the most recently observed subscription fact. Rows are
// never deleted; cancellation is a plan transition to free.
type SyncRecord struct {
	CustomerID     string `gorm:"primaryKey"`
	IdentityUserID string `gorm:"not null;index"`
	AppliedPlan    string `gorm:"type:text;not null"`
	AppliedEventID string `gorm:"type:text;not null"`
	AppliedAt      time.Time
	// ProjectionSyncedAt is nil while the identity provider write is still
	// pending; the background sweep retries those rows.
	ProjectionSyncedAt *time.Time
	CreatedAt          time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt          time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (SyncRecord) TableName() string { return "sync_records" }

// AppliedEvent records a billing event identifier that has been reserved.
// The unique event id makes redelivery a no-op.
type AppliedEvent struct {
	ID         snowflake.ID   `gorm:"primaryKey"`
	EventID    string         `gorm:"type:text;not null;uniqueIndex"`
	EventType  string         `gorm:"type:text;not null"`
	CustomerID string         `gorm:"type:text;not null;index"`
	Payload    datatypes.JSON `gorm:"type:jsonb"`
	ReceivedAt time.Time      `gorm:"not null"`
}

// TableName sets the database table name.
func (AppliedEvent) TableName() string { return "applied_events" }
