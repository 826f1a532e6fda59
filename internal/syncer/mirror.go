// Package syncer keeps the client-side mirror of users, bookings and settings.
// Mutations are validated and applied locally first, then persisted through a
// dispatcher; failures are reported, never retried.
package syncer

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"aquaflow/internal/auth"
	"aquaflow/internal/domain"
	"aquaflow/internal/models"
	"aquaflow/internal/notify"
	"aquaflow/internal/pricing"
	"aquaflow/internal/store"
	"aquaflow/internal/worker"

	"github.com/rs/zerolog"
)

// Fetcher performs the bulk read.
type Fetcher interface {
	Fetch(ctx context.Context) (store.Snapshot, error)
}

// Dispatcher queues a write without blocking.
type Dispatcher interface {
	Submit(job worker.Job) error
}

// Unconfirmed is a record whose latest write failed.
type Unconfirmed struct {
	Kind models.Kind
	ID   string
	Err  error
	At   time.Time
}

type Options struct {
	Fetcher    Fetcher
	Dispatcher Dispatcher
	Events     domain.EventPublisher
	Notifier   notify.Notifier
	Logger     *zerolog.Logger
}

type Mirror struct {
	mu          sync.RWMutex
	users       []models.User
	bookings    []models.Booking
	settings    models.Settings
	version     int64
	unconfirmed map[string]Unconfirmed
	resetCodes  map[string]string

	fetcher  Fetcher
	disp     Dispatcher
	events   domain.EventPublisher
	notifier notify.Notifier
	logger   zerolog.Logger
	now      func() time.Time
	newCode  func() (string, error)
	bg       sync.WaitGroup
}

func NewMirror(opts Options) *Mirror {
	l := zerolog.Nop()
	if opts.Logger != nil {
		l = *opts.Logger
	}
	n := opts.Notifier
	if n == nil {
		n = notify.NewLogNotifier(opts.Logger)
	}
	return &Mirror{
		settings:    models.DefaultSettings(),
		version:     1,
		unconfirmed: make(map[string]Unconfirmed),
		resetCodes:  make(map[string]string),
		fetcher:     opts.Fetcher,
		disp:        opts.Dispatcher,
		events:      opts.Events,
		notifier:    n,
		logger:      l.With().Str("component", "mirror").Logger(),
		now:         time.Now,
		newCode:     resetCode,
	}
}

// Refresh replaces the mirror with a full bulk read. On error the mirror is
// left as it was.
func (m *Mirror) Refresh(ctx context.Context) error {
	snap, err := m.fetcher.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}

	users := make([]models.User, 0, len(snap.Users))
	for _, rec := range snap.Users {
		var u models.User
		if err := rec.Decode(&u); err != nil {
			m.logger.Warn().Err(err).Str("id", rec.ID()).Msg("skipping undecodable user")
			continue
		}
		users = append(users, u)
	}

	bookings := make([]models.Booking, 0, len(snap.Bookings))
	for _, rec := range snap.Bookings {
		var b models.Booking
		if err := rec.Decode(&b); err != nil {
			m.logger.Warn().Err(err).Str("id", rec.ID()).Msg("skipping undecodable booking")
			continue
		}
		b.Normalize()
		bookings = append(bookings, b)
	}
	sortNewestFirst(bookings)

	settings, err := models.SettingsFromMap(snap.Settings)
	if err != nil {
		return fmt.Errorf("refresh: settings: %w", err)
	}

	m.mu.Lock()
	m.users = users
	m.bookings = bookings
	m.settings = settings
	m.version++
	m.unconfirmed = make(map[string]Unconfirmed)
	version := m.version
	m.mu.Unlock()

	m.logger.Info().
		Int("users", len(users)).
		Int("bookings", len(bookings)).
		Int64("catalog_version", version).
		Msg("mirror refreshed")
	return nil
}

// Close waits for background notifications to finish.
func (m *Mirror) Close() {
	m.bg.Wait()
}

func (m *Mirror) Users() []models.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.User(nil), m.users...)
}

func (m *Mirror) User(id string) (models.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i := m.userIndex(id)
	if i < 0 {
		return models.User{}, false
	}
	return m.users[i], true
}

// Bookings returns every booking, newest first.
func (m *Mirror) Bookings() []models.Booking {
	return m.filterBookings(func(models.Booking) bool { return true })
}

func (m *Mirror) Booking(id string) (models.Booking, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i := m.bookingIndex(id)
	if i < 0 {
		return models.Booking{}, false
	}
	return m.bookings[i].Clone(), true
}

// BookingsFor returns the bookings owned by userID, newest first.
func (m *Mirror) BookingsFor(userID string) []models.Booking {
	return m.filterBookings(func(b models.Booking) bool { return b.UserID == userID })
}

// RiderQueue returns accepted bookings that are not finished yet.
func (m *Mirror) RiderQueue() []models.Booking {
	return m.filterBookings(func(b models.Booking) bool { return b.Status.Active() })
}

func (m *Mirror) Settings() models.Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings.Clone()
}

// Catalog returns the current price catalog with its version.
func (m *Mirror) Catalog() pricing.Catalog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return pricing.NewCatalog(m.settings, m.version)
}

// Unconfirmed lists records whose latest write failed, oldest failure first.
func (m *Mirror) Unconfirmed() []Unconfirmed {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Unconfirmed, 0, len(m.unconfirmed))
	for _, u := range m.unconfirmed {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].At.Equal(out[j].At) {
			return out[i].ID < out[j].ID
		}
		return out[i].At.Before(out[j].At)
	})
	return out
}

func (m *Mirror) filterBookings(keep func(models.Booking) bool) []models.Booking {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Booking, 0, len(m.bookings))
	for _, b := range m.bookings {
		if keep(b) {
			out = append(out, b.Clone())
		}
	}
	return out
}

// persist queues the write of v and returns its future. The caller holds m.mu,
// so writes are queued in the order they were applied.
func (m *Mirror) persist(kind models.Kind, ids []string, v any) *Pending {
	p := newPending()

	rec, err := store.RecordOf(v)
	if err != nil {
		m.markLocked(kind, ids, err)
		p.resolve(fmt.Errorf("%w: %w", ErrUnconfirmed, err))
		return p
	}

	job := worker.Job{
		Kind:   kind,
		Record: rec,
		Done: func(err error) {
			m.settle(kind, ids, err)
			if err != nil {
				err = fmt.Errorf("%w: %w", ErrUnconfirmed, err)
			}
			p.resolve(err)
		},
	}
	if err := m.disp.Submit(job); err != nil {
		m.markLocked(kind, ids, err)
		p.resolve(fmt.Errorf("%w: %w", ErrUnconfirmed, err))
	}
	return p
}

func (m *Mirror) settle(kind models.Kind, ids []string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.markLocked(kind, ids, err)
		return
	}
	for _, id := range ids {
		delete(m.unconfirmed, unconfirmedKey(kind, id))
	}
}

func (m *Mirror) markLocked(kind models.Kind, ids []string, err error) {
	at := m.now()
	for _, id := range ids {
		m.unconfirmed[unconfirmedKey(kind, id)] = Unconfirmed{Kind: kind, ID: id, Err: err, At: at}
	}
	m.logger.Warn().Err(err).Str("kind", string(kind)).Strs("ids", ids).Msg("change not confirmed by store")
}

func unconfirmedKey(kind models.Kind, id string) string {
	return string(kind) + ":" + id
}

func (m *Mirror) publish(eventType string, payload any) {
	if m.events == nil {
		return
	}
	if err := m.events.PublishJSON(eventType, payload); err != nil {
		m.logger.Error().Err(err).Str("event_type", eventType).Msg("publish event error")
	}
}

// actorLocked returns the stored record for actor.ID, so a stale or forged
// role on the caller's copy is ignored. Callers hold m.mu.
func (m *Mirror) actorLocked(actor models.User) (models.User, error) {
	i := m.userIndex(actor.ID)
	if i < 0 {
		return models.User{}, fmt.Errorf("%w: unknown user %q", ErrForbidden, actor.ID)
	}
	return m.users[i], nil
}

func (m *Mirror) userIndex(id string) int {
	for i, u := range m.users {
		if u.ID == id {
			return i
		}
	}
	return -1
}

func (m *Mirror) userByIdentifier(identifier string) int {
	for i, u := range m.users {
		if u.Matches(identifier) {
			return i
		}
	}
	return -1
}

func (m *Mirror) bookingIndex(id string) int {
	for i, b := range m.bookings {
		if b.ID == id {
			return i
		}
	}
	return -1
}

func sortNewestFirst(bookings []models.Booking) {
	sort.SliceStable(bookings, func(i, j int) bool {
		return bookings[i].CreatedAt.After(bookings[j].CreatedAt)
	})
}

// storedUser is the user as written to the store. Legacy plaintext
// passwords are hashed on their way out.
func storedUser(u models.User) (models.User, error) {
	if u.Password != "" && !auth.IsHashed(u.Password) {
		hash, err := auth.HashPassword(u.Password)
		if err != nil {
			return u, fmt.Errorf("hash password: %w", err)
		}
		u.Password = hash
	}
	return u, nil
}

func resetCode() (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < models.ResetCodeDigits; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", models.ResetCodeDigits, n.Int64()), nil
}
