// Package worker runs client persistence writes on a bounded pool.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"aquaflow/internal/domain"
	"aquaflow/internal/metrics"
	"aquaflow/internal/models"
	"aquaflow/internal/store"

	"github.com/rs/zerolog"
)

var (
	// ErrQueueFull is returned by Submit when the record's lane has no free slot.
	ErrQueueFull = errors.New("dispatch queue is full")
	// ErrStopped is returned by Submit after Stop.
	ErrStopped = errors.New("dispatcher stopped")
)

const (
	defaultWorkers   = 2
	defaultQueueSize = 64
	defaultTimeout   = 15 * time.Second
)

// Sender performs one remote write.
type Sender interface {
	Send(ctx context.Context, kind models.Kind, rec store.Record) error
}

// Job is one write. Done, when set, receives the outcome exactly once.
type Job struct {
	Kind   models.Kind
	Record store.Record
	Done   func(error)
}

type Dispatcher struct {
	sender  Sender
	journal domain.Journal
	lanes   []chan Job
	workers int
	timeout time.Duration
	logger  zerolog.Logger

	mu      sync.RWMutex
	ctx     context.Context
	started bool
	stopped bool
	wg      sync.WaitGroup
}

// NewDispatcher builds a pool of workers, each owning a lane of queueSize
// slots. journal may be nil.
func NewDispatcher(sender Sender, journal domain.Journal, workers, queueSize int, logger *zerolog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	lanes := make([]chan Job, workers)
	for i := range lanes {
		lanes[i] = make(chan Job, queueSize)
	}
	return &Dispatcher{
		sender:  sender,
		journal: journal,
		lanes:   lanes,
		workers: workers,
		timeout: defaultTimeout,
		ctx:     context.Background(),
		logger:  l.With().Str("component", "dispatcher").Logger(),
	}
}

// SetTimeout bounds each remote write.
func (d *Dispatcher) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		d.timeout = timeout
	}
}

// Start launches the workers. Writes run under ctx.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return
	}
	d.started = true
	d.ctx = ctx

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.run(i)
	}
	d.logger.Info().Int("workers", d.workers).Int("queue", cap(d.lanes[0])).Msg("dispatcher started")
}

// Submit enqueues job without blocking. Jobs for the same record share a
// lane, so they reach the sender in submission order.
func (d *Dispatcher) Submit(job Job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrStopped
	}
	select {
	case d.lanes[d.lane(job)] <- job:
		return nil
	default:
		metrics.IncDispatch(string(job.Kind), "queue_full")
		return ErrQueueFull
	}
}

// Stop refuses new jobs and waits until every queued job has finished.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	for _, lane := range d.lanes {
		close(lane)
	}
	started := d.started
	d.mu.Unlock()

	if !started {
		for _, lane := range d.lanes {
			for job := range lane {
				finish(job, ErrStopped)
			}
		}
		return
	}
	d.wg.Wait()
	d.logger.Info().Msg("dispatcher stopped")
}

// lane maps a record to its worker. Settings carry no id and all share one lane.
func (d *Dispatcher) lane(job Job) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(string(job.Kind) + ":" + job.Record.ID()))
	return int(h.Sum32() % uint32(len(d.lanes)))
}

func (d *Dispatcher) run(n int) {
	defer d.wg.Done()
	for job := range d.lanes[n] {
		d.process(job)
	}
	d.logger.Debug().Int("worker", n).Msg("worker exited")
}

func (d *Dispatcher) process(job Job) {
	ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
	defer cancel()

	id := job.Record.ID()
	if id == "" {
		id = string(job.Kind)
	}
	log := d.logger.With().Str("kind", string(job.Kind)).Str("id", id).Logger()
	entry := d.recordAttempt(ctx, job, id)

	err := d.sender.Send(ctx, job.Kind, job.Record)
	if err != nil {
		metrics.IncDispatch(string(job.Kind), "failed")
		log.Debug().Err(err).Msg("write failed")
		if entry != nil {
			if jerr := d.journal.MarkFailed(context.WithoutCancel(ctx), entry.ID, err.Error()); jerr != nil {
				log.Warn().Err(jerr).Msg("journal update failed")
			}
		}
		finish(job, err)
		return
	}

	metrics.IncDispatch(string(job.Kind), "confirmed")
	log.Debug().Msg("write confirmed")
	if entry != nil {
		if jerr := d.journal.MarkConfirmed(context.WithoutCancel(ctx), entry.ID); jerr != nil {
			log.Warn().Err(jerr).Msg("journal update failed")
		}
	}
	finish(job, nil)
}

func (d *Dispatcher) recordAttempt(ctx context.Context, job Job, id string) *models.SyncTask {
	if d.journal == nil {
		return nil
	}
	payload, err := json.Marshal(job.Record)
	if err != nil {
		d.logger.Warn().Err(err).Msg("journal payload encode failed")
		payload = []byte("{}")
	}
	entry := &models.SyncTask{
		Kind:     job.Kind,
		RecordID: id,
		Payload:  string(payload),
		Status:   models.SyncPending,
	}
	if err := d.journal.RecordAttempt(ctx, entry); err != nil {
		d.logger.Warn().Err(fmt.Errorf("journal attempt: %w", err)).Msg("write will not be journaled")
		return nil
	}
	return entry
}

func finish(job Job, err error) {
	if job.Done != nil {
		job.Done(err)
	}
}
