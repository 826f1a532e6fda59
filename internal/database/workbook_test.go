package database

import (
	"context"
	"testing"
	"time"

	"aquaflow/internal/lock"
	"aquaflow/internal/models"
	"aquaflow/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkbook_RowOperations(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	sh, err := db.Workbook().Sheet(ctx, "Users")
	require.NoError(t, err)

	rows, err := sh.Rows(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)

	require.NoError(t, sh.WriteHeader(ctx, []string{"id", "fullName"}))
	require.NoError(t, sh.AppendRow(ctx, []any{"U1", "Ana"}))
	require.NoError(t, sh.AppendRow(ctx, []any{"U2", 42.0}))
	require.NoError(t, sh.UpdateRow(ctx, 1, []any{"U1", "Ana Cruz"}))

	rows, err = sh.Rows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []any{"id", "fullName"}, rows[0])
	assert.Equal(t, []any{"U1", "Ana Cruz"}, rows[1])
	assert.Equal(t, []any{"U2", 42.0}, rows[2])
}

func TestWorkbook_SheetsAreIsolated(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	wb := db.Workbook()

	users, err := wb.Sheet(ctx, "Users")
	require.NoError(t, err)
	bookings, err := wb.Sheet(ctx, "Bookings")
	require.NoError(t, err)

	require.NoError(t, users.AppendRow(ctx, []any{"id"}))
	require.NoError(t, bookings.AppendRow(ctx, []any{"id"}))
	require.NoError(t, bookings.AppendRow(ctx, []any{"B1"}))

	rows, err := users.Rows(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	rows, err = bookings.Rows(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestWorkbook_BackingStore(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	s := store.New(db.Workbook(), lock.NewMemory(), time.Second, nil)

	rec := store.Record{
		"id":          "B1",
		"userId":      "U1",
		"status":      "Pending",
		"gallonCount": 2,
		"price":       200,
		"createdAt":   "2025-02-28T08:30:00Z",
	}
	require.NoError(t, s.Upsert(ctx, models.KindBooking, rec))
	rec["status"] = "Accepted"
	require.NoError(t, s.Upsert(ctx, models.KindBooking, rec))

	got, err := s.ReadAll(ctx, models.KindBooking)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Accepted", got[0]["status"])
	assert.EqualValues(t, 200, got[0]["price"])
	assert.Equal(t, "2025-02-28T08:30:00.000Z", got[0]["createdAt"])
}
