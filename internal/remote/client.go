// Package remote talks to the record store over its HTTP interface.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"aquaflow/internal/domain"
	"aquaflow/internal/models"
	"aquaflow/internal/store"

	"github.com/rs/zerolog"
)

var (
	// ErrRemoteUnreachable means the request never produced an HTTP response.
	ErrRemoteUnreachable = errors.New("remote store unreachable")
	// ErrRemote is any other non-success answer from the store.
	ErrRemote = errors.New("remote store error")
)

const (
	dataPath         = "/api/v1/data"
	defaultTimeout   = 10 * time.Second
	maxResponseBytes = 8 << 20

	// SnapshotCacheKey is the Redis key for the client-side snapshot cache.
	SnapshotCacheKey = "aquaflow:client:snapshot"
)

type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type mutation struct {
	DataType models.Kind  `json:"dataType"`
	Payload  store.Record `json:"payload"`
}

// Client calls the bulk fetch and mutation endpoints.
type Client struct {
	baseURL    string
	apiKey     string
	apiExtra   string
	httpClient *http.Client
	logger     zerolog.Logger

	cache    domain.SnapshotCache
	cacheMu  sync.Mutex
	cacheGen uint64
}

func NewClient(baseURL, apiKey, apiExtra string, timeout time.Duration, logger *zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		apiExtra:   apiExtra,
		httpClient: &http.Client{Timeout: timeout},
		logger:     l.With().Str("component", "remote").Logger(),
	}
}

// UseCache keeps the last bulk fetch in cache. Any Send drops it.
func (c *Client) UseCache(cache domain.SnapshotCache) {
	c.cache = cache
}

// Fetch returns every user, booking and the settings document.
func (c *Client) Fetch(ctx context.Context) (store.Snapshot, error) {
	if snap := c.readCache(ctx); snap != nil {
		return *snap, nil
	}
	gen := c.cacheGeneration()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+dataPath, nil)
	if err != nil {
		return store.Snapshot{}, err
	}
	body, err := c.do(req)
	if err != nil {
		return store.Snapshot{}, err
	}

	var wrap struct {
		envelope
		store.Snapshot
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&wrap); err != nil {
		return store.Snapshot{}, fmt.Errorf("%w: decode snapshot: %v", ErrRemote, err)
	}
	if wrap.Status != "success" {
		return store.Snapshot{}, fmt.Errorf("%w: %s", ErrRemote, wrap.Message)
	}

	c.writeCache(ctx, gen, &wrap.Snapshot)
	return wrap.Snapshot, nil
}

// Send upserts one record. Settings payloads are merged by the store.
func (c *Client) Send(ctx context.Context, kind models.Kind, rec store.Record) error {
	data, err := json.Marshal(mutation{DataType: kind, Payload: rec})
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", store.ErrMalformedRecord, kind, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+dataPath, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	c.dropCache(ctx)
	if err != nil {
		return err
	}

	var resp envelope
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrRemote, err)
	}
	if resp.Status != "success" {
		return fmt.Errorf("%w: %s", ErrRemote, resp.Message)
	}
	c.logger.Debug().Str("kind", string(kind)).Str("id", rec.ID()).Msg(resp.Message)
	return nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	c.addHeaders(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrRemoteUnreachable, err)
	}
	if resp.StatusCode < 300 {
		return body, nil
	}

	var env envelope
	_ = json.Unmarshal(body, &env)
	msg := env.Message
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return nil, classify(resp.StatusCode, msg)
}

// classify maps a store status code back to the store's sentinel errors.
func classify(code int, msg string) error {
	switch code {
	case http.StatusServiceUnavailable:
		return fmt.Errorf("%w: %s", store.ErrLockTimeout, msg)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", store.ErrMalformedRecord, msg)
	default:
		return fmt.Errorf("%w: http %d: %s", ErrRemote, code, msg)
	}
}

func (c *Client) addHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	if c.apiExtra != "" {
		req.Header.Set("x-api-extra", c.apiExtra)
	}
}

func (c *Client) readCache(ctx context.Context) *store.Snapshot {
	if c.cache == nil {
		return nil
	}
	snap, err := c.cache.Get(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("snapshot cache read failed")
		return nil
	}
	return snap
}

func (c *Client) cacheGeneration() uint64 {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	return c.cacheGen
}

// writeCache keeps snap unless a Send finished after gen was taken.
func (c *Client) writeCache(ctx context.Context, gen uint64, snap *store.Snapshot) {
	if c.cache == nil {
		return
	}
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	if gen != c.cacheGen {
		return
	}
	if err := c.cache.Set(ctx, snap); err != nil {
		c.logger.Warn().Err(err).Msg("snapshot cache write failed")
	}
}

func (c *Client) dropCache(ctx context.Context) {
	if c.cache == nil {
		return
	}
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	c.cacheGen++
	if err := c.cache.Invalidate(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("snapshot cache drop failed")
	}
}
