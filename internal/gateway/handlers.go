package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/absolutelyright/server/internal/domain"
	"github.com/absolutelyright/server/internal/hooks"
)

const (
	todayMaxAge   = 60 * time.Second
	historyMaxAge = 300 * time.Second

	maxSetBodyBytes = 64 << 10
)

// SetAck is the body of a successful write.
const SetAck = "ok"

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleNotFound returns a JSON 404 for unknown API routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}

func (s *Server) handleToday(w http.ResponseWriter, r *http.Request) {
	rec := s.days.Today(r.Context())
	cacheFor(w, todayMaxAge)
	writeJSON(w, http.StatusOK, rec.Flat())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	records := s.days.List(r.Context())
	cacheFor(w, historyMaxAge)
	writeJSON(w, http.StatusOK, records)
}

// handleSet replaces one day's record. The gate is checked before the day
// is validated so unauthenticated callers learn nothing about the payload.
func (s *Server) handleSet(w http.ResponseWriter, r *http.Request) {
	body, err := domain.ParseSetBody(http.MaxBytesReader(w, r.Body, maxSetBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req := domain.NormalizeSet(body)

	if err := s.gate.Check(req.Secret); err != nil {
		s.log.Warn().Str("remote", r.RemoteAddr).Str("day", req.Day).Msg("rejected write")
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	if !domain.ValidDay(req.Day) {
		writeError(w, http.StatusBadRequest, "day must be YYYY-MM-DD")
		return
	}

	if err := s.days.Upsert(r.Context(), req.Day, req.Patterns, req.TotalMessages); err != nil {
		s.log.Error().Err(err).Str("day", req.Day).Msg("write failed")
		writeError(w, http.StatusInternalServerError, "write failed")
		return
	}

	s.log.Info().
		Str("day", req.Day).
		Int("patterns", len(req.Patterns)).
		Uint64("total_messages", req.TotalMessages).
		Msg("counts updated")

	s.hooks.EmitAsync(context.WithoutCancel(r.Context()), hooks.EventCountsUpdated, map[string]any{
		"day":            req.Day,
		"patterns":       req.Patterns.Clone(),
		"total_messages": req.TotalMessages,
	})

	writeJSON(w, http.StatusOK, SetAck)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
