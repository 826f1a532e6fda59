package database

import (
	"context"
	"testing"
	"time"

	"aquaflow/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournal_Lifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := &models.SyncTask{Kind: models.KindBooking, RecordID: "B1", Payload: `{"id":"B1"}`}
	require.NoError(t, db.RecordAttempt(ctx, task))
	assert.NotZero(t, task.ID)
	assert.Equal(t, models.SyncPending, task.Status)
	assert.False(t, task.CreatedAt.IsZero())

	pending, err := db.ListUnconfirmed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, models.KindBooking, pending[0].Kind)
	assert.Nil(t, pending[0].LastError)

	require.NoError(t, db.MarkConfirmed(ctx, task.ID))
	pending, err = db.ListUnconfirmed(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestJournal_LaterConfirmationSupersedesFailure(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	failedUser := &models.SyncTask{Kind: models.KindUser, RecordID: "U1", Payload: "{}"}
	require.NoError(t, db.RecordAttempt(ctx, failedUser))
	require.NoError(t, db.MarkFailed(ctx, failedUser.ID, "remote unreachable"))

	retriedUser := &models.SyncTask{Kind: models.KindUser, RecordID: "U1", Payload: "{}"}
	require.NoError(t, db.RecordAttempt(ctx, retriedUser))
	require.NoError(t, db.MarkConfirmed(ctx, retriedUser.ID))

	failedBooking := &models.SyncTask{Kind: models.KindBooking, RecordID: "B1", Payload: "{}"}
	require.NoError(t, db.RecordAttempt(ctx, failedBooking))
	require.NoError(t, db.MarkFailed(ctx, failedBooking.ID, "lock timeout"))

	inFlight := &models.SyncTask{Kind: models.KindBooking, RecordID: "B2", Payload: "{}"}
	require.NoError(t, db.RecordAttempt(ctx, inFlight))

	got, err := db.ListUnconfirmed(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, failedBooking.ID, got[0].ID)
	require.NotNil(t, got[0].LastError)
	assert.Equal(t, "lock timeout", *got[0].LastError)
	assert.Equal(t, models.SyncFailed, got[0].Status)
	assert.Equal(t, inFlight.ID, got[1].ID)
}

func TestJournal_MarkUnknownEntry(t *testing.T) {
	db := setupTestDB(t)
	assert.Error(t, db.MarkConfirmed(context.Background(), 999))
}

func TestJournal_PruneConfirmed(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	done := &models.SyncTask{Kind: models.KindSettings, RecordID: "gallonPrice", Payload: "{}"}
	require.NoError(t, db.RecordAttempt(ctx, done))
	require.NoError(t, db.MarkConfirmed(ctx, done.ID))
	open := &models.SyncTask{Kind: models.KindSettings, RecordID: "timeSlots", Payload: "{}"}
	require.NoError(t, db.RecordAttempt(ctx, open))

	n, err := db.PruneConfirmed(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := db.ListUnconfirmed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, open.ID, got[0].ID)
}
