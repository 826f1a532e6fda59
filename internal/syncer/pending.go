package syncer

import (
	"context"
	"sync"
)

// Pending is the outcome of one asynchronous write. The local change it
// belongs to is already applied; Pending only reports whether the store
// accepted it.
type Pending struct {
	done chan struct{}
	once sync.Once
	err  error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func (p *Pending) resolve(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

// Done is closed once the write is confirmed or has failed.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Err returns the write error, or nil while the write is in flight or after
// it was confirmed.
func (p *Pending) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Wait blocks until the write settles or ctx ends. Abandoning the wait does
// not cancel the write.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
