package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"aquaflow/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWorkbookIntegration runs row operations against a live Postgres.
func TestWorkbookIntegration(t *testing.T) {
	dsn := os.Getenv("AQUAFLOW_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("set AQUAFLOW_POSTGRES_DSN to run this integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	wb, err := NewWorkbook(ctx, dsn)
	require.NoError(t, err)
	defer wb.Close()
	require.NoError(t, wb.Ping(ctx))

	name := fmt.Sprintf("itest_%d", time.Now().UnixNano())
	t.Cleanup(func() { _ = wb.Drop(context.Background(), name) })

	var sh store.Sheet
	sh, err = wb.Sheet(ctx, name)
	require.NoError(t, err)

	rows, err := sh.Rows(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)

	require.NoError(t, sh.WriteHeader(ctx, []string{"id", "price"}))
	require.NoError(t, sh.AppendRow(ctx, []any{"B1", 200.0}))
	require.NoError(t, sh.AppendRow(ctx, []any{"B2", 150.0}))
	require.NoError(t, sh.UpdateRow(ctx, 2, []any{"B2", 175.0}))

	rows, err = sh.Rows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []any{"id", "price"}, rows[0])
	assert.Equal(t, []any{"B1", 200.0}, rows[1])
	assert.Equal(t, []any{"B2", 175.0}, rows[2])
}
