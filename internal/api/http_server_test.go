package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"aquaflow/internal/config"
	"aquaflow/internal/lock"
	"aquaflow/internal/models"
	"aquaflow/internal/repository"
	"aquaflow/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	err   error
	snap  store.Snapshot
	calls int
}

func (s *stubStore) Snapshot(context.Context) (store.Snapshot, error) {
	s.calls++
	return s.snap, s.err
}

func (s *stubStore) Upsert(context.Context, models.Kind, store.Record) error {
	return s.err
}

func openAPIConfig() config.APIConfig {
	return config.APIConfig{HTTP: config.APIHTTPConfig{Port: 0}}
}

func newMemoryServer(t *testing.T, cfg config.APIConfig) (*HTTPServer, *store.MemoryWorkbook) {
	t.Helper()
	book := store.NewMemoryWorkbook()
	st := store.New(book, lock.NewMemory(), time.Second, nil)
	return NewHTTPServer(cfg, st, nil, nil), book
}

func do(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHTTPServer_Health(t *testing.T) {
	srv, _ := newMemoryServer(t, openAPIConfig())
	rec := do(t, srv.Handler(), http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestHTTPServer_RequestIDPropagated(t *testing.T) {
	srv, _ := newMemoryServer(t, openAPIConfig())
	rec := do(t, srv.Handler(), http.MethodGet, "/healthz", "", map[string]string{requestIDHeader: "req-42"})
	assert.Equal(t, "req-42", rec.Header().Get(requestIDHeader))
}

func TestHTTPServer_FetchEmptyStore(t *testing.T) {
	srv, _ := newMemoryServer(t, openAPIConfig())
	rec := do(t, srv.Handler(), http.MethodGet, "/api/v1/data", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, []any{}, body["users"])
	assert.Equal(t, []any{}, body["bookings"])
	assert.Equal(t, map[string]any{}, body["settings"])
}

func TestHTTPServer_MutateThenFetch(t *testing.T) {
	srv, book := newMemoryServer(t, openAPIConfig())
	h := srv.Handler()

	user := `{"dataType":"user","payload":{"id":"U1","fullName":"Ana","mobile":"0917","type":"CUSTOMER"}}`
	rec := do(t, h, http.MethodPost, "/api/v1/data", user, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "user data saved successfully.", decodeBody(t, rec)["message"])

	// Same id overwrites in place.
	renamed := strings.Replace(user, "Ana", "Ana Cruz", 1)
	rec = do(t, h, http.MethodPost, "/api/v1/data", renamed, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, book.Table("Users").Len())

	rec = do(t, h, http.MethodPost, "/api/v1/data", `{"dataType":"settings","payload":{"gallonPrice":30}}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "settings data saved successfully.", decodeBody(t, rec)["message"])

	rec = do(t, h, http.MethodGet, "/api/v1/data", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	users, ok := body["users"].([]any)
	require.True(t, ok)
	require.Len(t, users, 1)
	assert.Equal(t, "Ana Cruz", users[0].(map[string]any)["fullName"])
	assert.EqualValues(t, 30, body["settings"].(map[string]any)["gallonPrice"])
}

func TestHTTPServer_MutateRejections(t *testing.T) {
	srv, _ := newMemoryServer(t, openAPIConfig())
	h := srv.Handler()

	cases := []struct {
		name string
		body string
		code int
	}{
		{"InvalidJSON", `{`, http.StatusBadRequest},
		{"MissingDataType", `{"payload":{"id":"U1"}}`, http.StatusBadRequest},
		{"MissingPayload", `{"dataType":"user"}`, http.StatusBadRequest},
		{"NullPayload", `{"dataType":"user","payload":null}`, http.StatusBadRequest},
		{"UnknownDataType", `{"dataType":"invoice","payload":{"id":"X"}}`, http.StatusBadRequest},
		{"PayloadNotObject", `{"dataType":"user","payload":[1,2]}`, http.StatusBadRequest},
		{"MalformedRecord", `{"dataType":"booking","payload":{"userId":"U1","status":"Pending"}}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/v1/data", tc.body, nil)
			assert.Equal(t, tc.code, rec.Code)
			assert.Equal(t, "error", decodeBody(t, rec)["status"])
		})
	}
}

func TestHTTPServer_StoreErrorCodes(t *testing.T) {
	t.Run("LockTimeout", func(t *testing.T) {
		srv := NewHTTPServer(openAPIConfig(), &stubStore{err: store.ErrLockTimeout}, nil, nil)
		rec := do(t, srv.Handler(), http.MethodPost, "/api/v1/data", `{"dataType":"user","payload":{"id":"U1"}}`, nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("BackendFailure", func(t *testing.T) {
		srv := NewHTTPServer(openAPIConfig(), &stubStore{err: errors.New("disk gone")}, nil, nil)
		rec := do(t, srv.Handler(), http.MethodPost, "/api/v1/data", `{"dataType":"user","payload":{"id":"U1"}}`, nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		rec = do(t, srv.Handler(), http.MethodGet, "/api/v1/data", "", nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "error", body["status"])
		assert.Equal(t, "disk gone", body["message"])
	})
}

func TestHTTPServer_SnapshotCache(t *testing.T) {
	st := &stubStore{snap: store.Snapshot{Users: []store.Record{}, Bookings: []store.Record{}, Settings: store.Record{}}}
	cache := repository.NewMemorySnapshotRepository(time.Minute)
	srv := NewHTTPServer(openAPIConfig(), st, cache, nil)
	h := srv.Handler()

	do(t, h, http.MethodGet, "/api/v1/data", "", nil)
	do(t, h, http.MethodGet, "/api/v1/data", "", nil)
	assert.Equal(t, 1, st.calls)

	rec := do(t, h, http.MethodPost, "/api/v1/data", `{"dataType":"settings","payload":{"gallonPrice":30}}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	do(t, h, http.MethodGet, "/api/v1/data", "", nil)
	assert.Equal(t, 2, st.calls)
}

// pausingStore reads the snapshot, then holds it until release is closed.
type pausingStore struct {
	DataStore
	reached chan struct{}
	release chan struct{}
	once    sync.Once
}

func (p *pausingStore) Snapshot(ctx context.Context) (store.Snapshot, error) {
	snap, err := p.DataStore.Snapshot(ctx)
	paused := false
	p.once.Do(func() { paused = true })
	if paused {
		close(p.reached)
		<-p.release
	}
	return snap, err
}

func TestHTTPServer_FetchDuringWriteNotCached(t *testing.T) {
	book := store.NewMemoryWorkbook()
	st := &pausingStore{
		DataStore: store.New(book, lock.NewMemory(), time.Second, nil),
		reached:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	srv := NewHTTPServer(openAPIConfig(), st, repository.NewMemorySnapshotRepository(time.Minute), nil)
	h := srv.Handler()

	fetched := make(chan *httptest.ResponseRecorder, 1)
	go func() { fetched <- do(t, h, http.MethodGet, "/api/v1/data", "", nil) }()
	<-st.reached

	rec := do(t, h, http.MethodPost, "/api/v1/data", `{"dataType":"user","payload":{"id":"U1","fullName":"Ana"}}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	close(st.release)
	stale := <-fetched
	require.Equal(t, http.StatusOK, stale.Code)
	assert.Empty(t, decodeBody(t, stale)["users"])

	body := decodeBody(t, do(t, h, http.MethodGet, "/api/v1/data", "", nil))
	users, ok := body["users"].([]any)
	require.True(t, ok)
	assert.Len(t, users, 1)
}

func TestHTTPServer_Auth(t *testing.T) {
	cfg := openAPIConfig()
	cfg.Auth = config.APIAuthConfig{
		Enabled: true,
		APIKeys: []config.APIClientKey{
			{Key: "full", Extra: "e1"},
			{Key: "reader", Extra: "e2", Permissions: []string{PermReadData}},
		},
	}
	srv, _ := newMemoryServer(t, cfg)
	h := srv.Handler()
	write := `{"dataType":"settings","payload":{"gallonPrice":30}}`

	rec := do(t, h, http.MethodGet, "/api/v1/data", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/data", "", map[string]string{"x-api-key": "full", "x-api-extra": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/data", "", map[string]string{"x-api-key": "nobody", "x-api-extra": "e1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/data", "", map[string]string{"x-api-key": "reader", "x-api-extra": "e2"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/data", write, map[string]string{"x-api-key": "reader", "x-api-extra": "e2"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/data", write, map[string]string{"x-api-key": "full", "x-api-extra": "e1"})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health stays open.
	rec = do(t, h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHTTPServer_RateLimit(t *testing.T) {
	cfg := openAPIConfig()
	cfg.RateLimit = config.APIRateLimitConfig{RPS: 0.001, Burst: 2}
	srv, _ := newMemoryServer(t, cfg)
	h := srv.Handler()

	hdr := map[string]string{"x-api-key": "k1"}
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/v1/data", "", hdr).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/v1/data", "", hdr).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, h, http.MethodGet, "/api/v1/data", "", hdr).Code)

	// Buckets are per key.
	other := map[string]string{"x-api-key": "k2"}
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/v1/data", "", other).Code)
}

func TestHTTPServer_NotFound(t *testing.T) {
	srv, _ := newMemoryServer(t, openAPIConfig())
	rec := do(t, srv.Handler(), http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "error", decodeBody(t, rec)["status"])
}
