package repository

import (
	"context"
	"sync"
	"time"

	"aquaflow/internal/store"
)

type MemorySnapshotRepository struct {
	mu        sync.RWMutex
	snap      *store.Snapshot
	expiresAt time.Time
	ttl       time.Duration
	now       func() time.Time
}

// NewMemorySnapshotRepository keeps one snapshot for ttl; ttl <= 0 never expires.
func NewMemorySnapshotRepository(ttl time.Duration) *MemorySnapshotRepository {
	return &MemorySnapshotRepository{
		ttl: ttl,
		now: time.Now,
	}
}

func (r *MemorySnapshotRepository) Get(_ context.Context) (*store.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.snap == nil {
		return nil, nil
	}
	if r.ttl > 0 && r.now().After(r.expiresAt) {
		return nil, nil
	}
	return r.snap, nil
}

func (r *MemorySnapshotRepository) Set(_ context.Context, snap *store.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap = snap
	r.expiresAt = r.now().Add(r.ttl)
	return nil
}

func (r *MemorySnapshotRepository) Invalidate(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap = nil
	return nil
}
