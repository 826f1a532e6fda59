package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySnapshotRepository(t *testing.T) {
	repo := NewMemorySnapshotRepository(time.Minute)
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	got, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	snap := sampleSnapshot()
	require.NoError(t, repo.Set(ctx, snap))
	got, err = repo.Get(ctx)
	require.NoError(t, err)
	assert.Same(t, snap, got)

	now = now.Add(2 * time.Minute)
	got, _ = repo.Get(ctx)
	assert.Nil(t, got)

	require.NoError(t, repo.Set(ctx, snap))
	require.NoError(t, repo.Invalidate(ctx))
	got, _ = repo.Get(ctx)
	assert.Nil(t, got)
}

func TestMemorySnapshotRepository_NoTTL(t *testing.T) {
	repo := NewMemorySnapshotRepository(0)
	ctx := context.Background()
	require.NoError(t, repo.Set(ctx, sampleSnapshot()))

	repo.now = func() time.Time { return time.Now().Add(24 * time.Hour) }
	got, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.NotNil(t, got)
}
