package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"aquaflow/internal/models"
	"aquaflow/internal/store"
)

const (
	statusSuccess = "success"
	statusError   = "error"

	maxBodyBytes = 1 << 20
)

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type fetchResponse struct {
	Status string `json:"status"`
	store.Snapshot
}

type mutationRequest struct {
	DataType string          `json:"dataType"`
	Payload  json.RawMessage `json:"payload"`
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (s *HTTPServer) handleFetch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := s.logger.With().Str("request_id", RequestID(ctx)).Logger()

	if s.cache != nil {
		snap, err := s.cache.Get(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("snapshot cache read failed")
		} else if snap != nil {
			writeJSON(w, http.StatusOK, fetchResponse{Status: statusSuccess, Snapshot: *snap})
			return
		}
	}

	gen := s.generation()
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		log.Error().Err(err).Msg("bulk fetch failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if s.cache != nil {
		s.fillCache(ctx, gen, &snap)
	}
	writeJSON(w, http.StatusOK, fetchResponse{Status: statusSuccess, Snapshot: snap})
}

func (s *HTTPServer) handleMutate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := s.logger.With().Str("request_id", RequestID(ctx)).Logger()

	var req mutationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.DataType == "" || isNullPayload(req.Payload) {
		writeError(w, http.StatusBadRequest, "Missing 'dataType' or 'payload' in POST request.")
		return
	}

	kind, err := models.ParseKind(req.DataType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var rec store.Record
	dec := json.NewDecoder(bytes.NewReader(req.Payload))
	dec.UseNumber()
	if err := dec.Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "payload must be a JSON object")
		return
	}

	if err := s.store.Upsert(ctx, kind, rec); err != nil {
		code := statusFor(err)
		ev := log.Warn()
		if code >= http.StatusInternalServerError {
			ev = log.Error()
		}
		ev.Err(err).Str("data_type", string(kind)).Int("status", code).Msg("mutation rejected")
		writeError(w, code, err.Error())
		return
	}

	if s.cache != nil {
		s.invalidateCache(ctx)
	}

	log.Info().Str("data_type", string(kind)).Str("id", rec.ID()).Msg("record saved")
	writeJSON(w, http.StatusOK, statusResponse{
		Status:  statusSuccess,
		Message: fmt.Sprintf("%s data saved successfully.", kind),
	})
}

func (s *HTTPServer) generation() uint64 {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.cacheGen
}

// fillCache stores snap unless a write was confirmed after gen was taken.
func (s *HTTPServer) fillCache(ctx context.Context, gen uint64, snap *store.Snapshot) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if gen != s.cacheGen {
		s.logger.Debug().Msg("stale snapshot not cached")
		return
	}
	if err := s.cache.Set(ctx, snap); err != nil {
		s.logger.Warn().Err(err).Str("request_id", RequestID(ctx)).Msg("snapshot cache write failed")
	}
}

func (s *HTTPServer) invalidateCache(ctx context.Context) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.cacheGen++
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn().Err(err).Str("request_id", RequestID(ctx)).Msg("snapshot cache invalidate failed")
	}
}

// statusFor maps store errors to HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrMalformedRecord), errors.Is(err, models.ErrUnknownKind), errors.Is(err, store.ErrNoIDColumn):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrLockTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func isNullPayload(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
