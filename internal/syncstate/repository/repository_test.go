package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/courtsidehq/courtside/internal/syncstate/domain"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	if err := conn.AutoMigrate(&domain.SyncRecord{}, &domain.AppliedEvent{}); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	return conn
}

func newEvent(node *snowflake.Node, eventID string) *domain.AppliedEvent {
	return &domain.AppliedEvent{
		ID:         node.Generate(),
		EventID:    eventID,
		EventType:  "customer.subscription.updated",
		CustomerID: "cus_1",
		ReceivedAt: time.Now().UTC(),
	}
}

func TestReserveEventIsIdempotent(t *testing.T) {
	conn := setupTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	store := Provide()
	ctx := context.Background()

	fresh, err := store.ReserveEvent(ctx, conn, newEvent(node, "evt_1"))
	require.NoError(t, err)
	assert.True(t, fresh)

	// Redelivery of the same event id, even with a new row id, is a no-op.
	fresh, err = store.ReserveEvent(ctx, conn, newEvent(node, "evt_1"))
	require.NoError(t, err)
	assert.False(t, fresh)

	fresh, err = store.ReserveEvent(ctx, conn, newEvent(node, "evt_2"))
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestReleaseEventFreesReservation(t *testing.T) {
	conn := setupTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	store := Provide()
	ctx := context.Background()

	fresh, err := store.ReserveEvent(ctx, conn, newEvent(node, "evt_1"))
	require.NoError(t, err)
	require.True(t, fresh)

	require.NoError(t, store.ReleaseEvent(ctx, conn, "evt_1"))

	// After release the same event id reserves again.
	fresh, err = store.ReserveEvent(ctx, conn, newEvent(node, "evt_1"))
	require.NoError(t, err)
	assert.True(t, fresh)

	// Releasing an unknown id is a no-op.
	assert.NoError(t, store.ReleaseEvent(ctx, conn, "evt_unknown"))
}

func TestCurrentReturnsNilWhenAbsent(t *testing.T) {
	conn := setupTestDB(t)
	store := Provide()

	rec, err := store.Current(context.Background(), conn, "cus_missing")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestCommitInsertThenUpdate(t *testing.T) {
	conn := setupTestDB(t)
	store := Provide()
	ctx := context.Background()

	t1 := time.Unix(100, 0).UTC()
	applied, err := store.Commit(ctx, conn, domain.SyncRecord{
		CustomerID:     "cus_1",
		IdentityUserID: "user_42",
		AppliedPlan:    "pro",
		AppliedEventID: "evt_1",
		AppliedAt:      t1,
	}, nil)
	require.NoError(t, err)
	assert.True(t, applied)

	// A second blind insert loses to the existing row.
	applied, err = store.Commit(ctx, conn, domain.SyncRecord{
		CustomerID:     "cus_1",
		IdentityUserID: "user_42",
		AppliedPlan:    "free",
		AppliedEventID: "evt_dup",
		AppliedAt:      t1,
	}, nil)
	require.NoError(t, err)
	assert.False(t, applied)

	t2 := time.Unix(200, 0).UTC()
	applied, err = store.Commit(ctx, conn, domain.SyncRecord{
		CustomerID:     "cus_1",
		IdentityUserID: "user_42",
		AppliedPlan:    "premium",
		AppliedEventID: "evt_2",
		AppliedAt:      t2,
	}, &t1)
	require.NoError(t, err)
	assert.True(t, applied)

	rec, err := store.Current(ctx, conn, "cus_1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "premium", rec.AppliedPlan)
	assert.Equal(t, "evt_2", rec.AppliedEventID)
}

func TestCommitRejectsStaleExpectation(t *testing.T) {
	conn := setupTestDB(t)
	store := Provide()
	ctx := context.Background()

	t1 := time.Unix(100, 0).UTC()
	t2 := time.Unix(200, 0).UTC()

	applied, err := store.Commit(ctx, conn, domain.SyncRecord{
		CustomerID:     "cus_1",
		IdentityUserID: "user_42",
		AppliedPlan:    "premium",
		AppliedEventID: "evt_2",
		AppliedAt:      t2,
	}, nil)
	require.NoError(t, err)
	require.True(t, applied)

	// A writer that read the row before t2 landed must lose its swap.
	applied, err = store.Commit(ctx, conn, domain.SyncRecord{
		CustomerID:     "cus_1",
		IdentityUserID: "user_42",
		AppliedPlan:    "pro",
		AppliedEventID: "evt_1",
		AppliedAt:      t1,
	}, &t1)
	require.NoError(t, err)
	assert.False(t, applied)

	rec, err := store.Current(ctx, conn, "cus_1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "premium", rec.AppliedPlan)
}

func TestPendingProjections(t *testing.T) {
	conn := setupTestDB(t)
	store := Provide()
	ctx := context.Background()

	now := time.Unix(100, 0).UTC()
	synced := time.Unix(150, 0).UTC()

	_, err := store.Commit(ctx, conn, domain.SyncRecord{
		CustomerID:     "cus_pending",
		IdentityUserID: "user_1",
		AppliedPlan:    "pro",
		AppliedEventID: "evt_1",
		AppliedAt:      now,
	}, nil)
	require.NoError(t, err)

	_, err = store.Commit(ctx, conn, domain.SyncRecord{
		CustomerID:         "cus_done",
		IdentityUserID:     "user_2",
		AppliedPlan:        "premium",
		AppliedEventID:     "evt_2",
		AppliedAt:          now,
		ProjectionSyncedAt: &synced,
	}, nil)
	require.NoError(t, err)

	pending, err := store.PendingProjections(ctx, conn, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "cus_pending", pending[0].CustomerID)
}
