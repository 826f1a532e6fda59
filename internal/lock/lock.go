// Package lock provides the single global write lock guarding the record store.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTimeout is returned when the lock could not be acquired within the wait bound.
var ErrTimeout = errors.New("could not acquire write lock in time")

// Locker hands out an exclusive lease. The returned release func is idempotent.
type Locker interface {
	Acquire(ctx context.Context, wait time.Duration) (func(), error)
}

// Memory is an in-process lock for a single store server.
type Memory struct {
	slot chan struct{}
}

func NewMemory() *Memory {
	return &Memory{slot: make(chan struct{}, 1)}
}

func (m *Memory) Acquire(ctx context.Context, wait time.Duration) (func(), error) {
	if wait <= 0 {
		select {
		case m.slot <- struct{}{}:
			return m.releaser(), nil
		default:
			return nil, ErrTimeout
		}
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case m.slot <- struct{}{}:
		return m.releaser(), nil
	case <-timer.C:
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Memory) releaser() func() {
	var once sync.Once
	return func() {
		once.Do(func() { <-m.slot })
	}
}
