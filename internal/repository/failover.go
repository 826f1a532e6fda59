package repository

import (
	"context"
	"sync/atomic"
	"time"

	"aquaflow/internal/domain"
	"aquaflow/internal/store"

	"github.com/rs/zerolog"
)

const recheckInterval = time.Minute

// FailoverSnapshotRepository serves from primary until it errors, then from
// fallback until a recheck succeeds.
type FailoverSnapshotRepository struct {
	primary   domain.SnapshotCache
	fallback  domain.SnapshotCache
	logger    zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverSnapshotRepository(primary, fallback domain.SnapshotCache, logger *zerolog.Logger) *FailoverSnapshotRepository {
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &FailoverSnapshotRepository{
		primary:  primary,
		fallback: fallback,
		logger:   l.With().Str("component", "snapshot_cache").Logger(),
	}
}

func (r *FailoverSnapshotRepository) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary snapshot cache failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck.Store(time.Now().UnixNano())
}

// tryRecover tries the primary again once recheckInterval has passed. The primary
// may hold a snapshot from before the outage, so it is invalidated first.
func (r *FailoverSnapshotRepository) tryRecover(ctx context.Context) bool {
	if time.Since(time.Unix(0, r.lastCheck.Load())) <= recheckInterval {
		return false
	}
	if err := r.primary.Invalidate(ctx); err != nil {
		r.lastCheck.Store(time.Now().UnixNano())
		return false
	}
	r.isDown.Store(false)
	r.logger.Info().Msg("Primary snapshot cache recovered")
	return true
}

func (r *FailoverSnapshotRepository) Get(ctx context.Context) (*store.Snapshot, error) {
	if !r.isDown.Load() {
		snap, err := r.primary.Get(ctx)
		if err == nil {
			return snap, nil
		}
		r.markDown(err)
	}

	if r.tryRecover(ctx) {
		return nil, nil
	}
	return r.fallback.Get(ctx)
}

func (r *FailoverSnapshotRepository) Set(ctx context.Context, snap *store.Snapshot) error {
	if !r.isDown.Load() {
		err := r.primary.Set(ctx, snap)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.Set(ctx, snap)
}

// Invalidate always clears the fallback so a later failover never serves a stale copy.
func (r *FailoverSnapshotRepository) Invalidate(ctx context.Context) error {
	if err := r.fallback.Invalidate(ctx); err != nil {
		return err
	}
	if r.isDown.Load() {
		return nil
	}
	if err := r.primary.Invalidate(ctx); err != nil {
		r.markDown(err)
	}
	return nil
}
