package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"aquaflow/internal/api"
	"aquaflow/internal/auth"
	"aquaflow/internal/config"
	"aquaflow/internal/lock"
	"aquaflow/internal/models"
	"aquaflow/internal/remote"
	"aquaflow/internal/store"
	"aquaflow/internal/syncer"
	"aquaflow/internal/worker"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	auth.Cost = bcrypt.MinCost
}

type harness struct {
	a   *app
	out *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	st := store.New(store.NewMemoryWorkbook(), lock.NewMemory(), time.Second, nil)
	seed, err := store.RecordOf(models.DefaultSettings().Map())
	require.NoError(t, err)
	require.NoError(t, st.MergeSettings(ctx, seed))
	hash, err := auth.HashPassword("admin-pw")
	require.NoError(t, err)
	admin, err := store.RecordOf(models.User{ID: "U0", FullName: "Admin", Mobile: "0900", Password: hash, Type: models.RoleAdmin})
	require.NoError(t, err)
	require.NoError(t, st.Upsert(ctx, models.KindUser, admin))

	srv := httptest.NewServer(api.NewHTTPServer(config.APIConfig{}, st, nil, nil).Handler())
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfg := &config.Config{
		Client:  config.ClientConfig{Timeout: 2 * time.Second},
		Session: config.SessionConfig{Secret: "0123456789abcdef", Issuer: "aquaflow", TTL: time.Hour, TokenFile: filepath.Join(dir, "session")},
		Exports: config.ExportConfig{Path: filepath.Join(dir, "exports")},
	}

	client := remote.NewClient(srv.URL, "", "", cfg.Client.Timeout, nil)
	disp := worker.NewDispatcher(client, nil, 2, 16, nil)
	disp.Start(ctx)
	t.Cleanup(disp.Stop)

	h := &harness{out: &bytes.Buffer{}}
	h.a = &app{
		cfg:    cfg,
		logger: zerolog.Nop(),
		out:    h.out,
		in:     strings.NewReader(""),
		tokens: auth.NewTokenManager(cfg.Session.Secret, cfg.Session.Issuer, cfg.Session.TTL),
		mirror: syncer.NewMirror(syncer.Options{Fetcher: client, Dispatcher: disp}),
		now:    func() time.Time { return time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC) },
	}
	t.Cleanup(h.a.mirror.Close)
	require.NoError(t, h.a.mirror.Refresh(ctx))
	return h
}

// exec runs a command the way run does after wiring.
func (h *harness) exec(t *testing.T, name string, args ...string) (string, error) {
	t.Helper()
	h.out.Reset()
	cmd := commands[name]
	var actor *models.User
	if cmd.auth {
		u, err := h.a.currentUser()
		if err != nil {
			return "", err
		}
		actor = &u
	}
	err := cmd.run(context.Background(), h.a, actor, args)
	return h.out.String(), err
}

func TestCustomerFlow(t *testing.T) {
	h := newHarness(t)

	_, err := h.exec(t, "book", "-items", "Slim:1")
	assert.ErrorIs(t, err, errNoSession)

	out, err := h.exec(t, "register", "-name", "Ana", "-mobile", "0917", "-password", "pw")
	require.NoError(t, err)
	assert.Contains(t, out, "Account saved.")

	out, err = h.exec(t, "login", "-id", "0917", "-password", "pw")
	require.NoError(t, err)
	assert.Contains(t, out, "Welcome, Ana (CUSTOMER)")

	out, err = h.exec(t, "quote", "-items", "Slim:2:1,Jumbo:1")
	require.NoError(t, err)
	assert.Contains(t, out, "Jumbo (unknown)")
	assert.Contains(t, out, "₱200.00")

	out, err = h.exec(t, "book", "-items", "Slim:2:1", "-address", "12 Rizal St", "-date", "2025-03-06", "-slot", "9am–12pm")
	require.NoError(t, err)
	assert.Contains(t, out, "₱200.00")
	assert.Contains(t, out, "Booking saved.")

	out, err = h.exec(t, "bookings")
	require.NoError(t, err)
	assert.Contains(t, out, "Pending")
	assert.Contains(t, out, "Ana")

	_, err = h.exec(t, "report")
	assert.ErrorIs(t, err, errAdminOnly)
	_, err = h.exec(t, "settings", "gallon-price", "30")
	assert.ErrorIs(t, err, syncer.ErrForbidden)
}

func TestAdminFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	customer, p, err := h.a.mirror.Register(ctx, syncer.RegisterInput{FullName: "Ana", Mobile: "0917", Password: "pw"})
	require.NoError(t, err)
	require.NoError(t, p.Wait(ctx))
	b, p, err := h.a.mirror.CreateBooking(ctx, customer, syncer.BookingInput{
		Items: []models.CartItem{{Name: "Round", Refill: 4}}, PickupAddress: "Blk 1", PickupDate: "2025-03-05",
		TimeSlot: "1pm–5pm", PaymentMethod: models.PaymentGCash,
	})
	require.NoError(t, err)
	require.NoError(t, p.Wait(ctx))

	_, err = h.exec(t, "login", "-id", "0900", "-password", "admin-pw")
	require.NoError(t, err)

	for _, to := range []string{"accepted", "picked up", "refilled", "completed"} {
		out, err := h.exec(t, "status", "-booking", b.ID, "-to", to)
		require.NoError(t, err, to)
		assert.Contains(t, out, "Status saved.")
	}

	out, err := h.exec(t, "report", "-period", "all")
	require.NoError(t, err)
	assert.Contains(t, out, "1 completed")
	assert.Contains(t, out, "₱100.00")

	out, err = h.exec(t, "export", "-period", "all")
	require.NoError(t, err)
	assert.Contains(t, out, ".xlsx")

	out, err = h.exec(t, "settings", "add-slot", "5pm–7pm")
	require.NoError(t, err)
	assert.Contains(t, out, "Settings saved.")

	out, err = h.exec(t, "settings")
	require.NoError(t, err)
	assert.Contains(t, out, "5pm–7pm")

	out, err = h.exec(t, "role", "-user", customer.ID, "-role", "rider")
	require.NoError(t, err)
	assert.Contains(t, out, "Role saved.")

	out, err = h.exec(t, "users")
	require.NoError(t, err)
	assert.Contains(t, out, "RIDER")
}

func TestResetFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, p, err := h.a.mirror.Register(ctx, syncer.RegisterInput{FullName: "Ana", Mobile: "0917", Password: "pw"})
	require.NoError(t, err)
	require.NoError(t, p.Wait(ctx))

	_, err = h.exec(t, "reset", "-id", "0917")
	assert.Error(t, err, "no code on stdin")

	h.a.in = strings.NewReader("not-a-code\nnew-pw\n")
	_, err = h.exec(t, "reset", "-id", "0917")
	assert.ErrorIs(t, err, syncer.ErrInvalidResetCode)
}
