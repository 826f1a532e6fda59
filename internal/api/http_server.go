package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"aquaflow/internal/config"
	"aquaflow/internal/domain"
	"aquaflow/internal/models"
	"aquaflow/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// DataStore is the part of store.Store the HTTP surface needs.
type DataStore interface {
	Snapshot(ctx context.Context) (store.Snapshot, error)
	Upsert(ctx context.Context, kind models.Kind, rec store.Record) error
}

// HTTPServer exposes the bulk fetch and mutation endpoints of the store.
type HTTPServer struct {
	cfg    config.APIConfig
	store  DataStore
	cache  domain.SnapshotCache
	server *http.Server

	// cacheMu orders cache fills against invalidations. cacheGen counts
	// confirmed writes; a fill is dropped if a write landed during its read.
	cacheMu  sync.Mutex
	cacheGen uint64
	auth   *HTTPAuth
	router chi.Router
	logger zerolog.Logger
}

// NewHTTPServer wires the router. cache may be nil.
func NewHTTPServer(cfg config.APIConfig, st DataStore, cache domain.SnapshotCache, logger *zerolog.Logger) *HTTPServer {
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	srv := &HTTPServer{
		cfg:    cfg,
		store:  st,
		cache:  cache,
		auth:   NewHTTPAuth(cfg),
		logger: l.With().Str("component", "http").Logger(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP, requestIDMiddleware, srv.loggingMiddleware, middleware.Recoverer)
	r.Get("/healthz", srv.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(srv.auth.Wrap)
		r.Get("/data", srv.handleFetch)
		r.Post("/data", srv.handleMutate)
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	srv.router = r

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}

	return srv
}

// Handler returns the routed handler, for embedding or tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, statusResponse{Status: statusError, Message: message})
}
