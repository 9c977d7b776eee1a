package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"vault-rebalancer/internal/engine"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

type analyzeResponse struct {
	RecordID        int64    `json:"record_id"`
	NeedsRebalance  bool     `json:"needs_rebalance"`
	ConfidenceScore float64  `json:"confidence_score"`
	Thoughts        []string `json:"thoughts"`
	ActionID        *int64   `json:"action_id,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.pinger.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "database unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleAnalyze triggers one analysis run. A run already in flight is
// reported with 409 rather than queued.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.engine.Run(r.Context())
	if err != nil {
		if errors.Is(err, engine.ErrRunInFlight) {
			writeJSON(w, http.StatusConflict, errorResponse{Error: "analysis already in flight"})
			return
		}
		s.logger.Error().Err(err).Msg("manual analysis run failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "analysis run failed"})
		return
	}

	resp := analyzeResponse{
		RecordID:        outcome.Record.ID,
		NeedsRebalance:  outcome.NeedsRebalance,
		ConfidenceScore: outcome.Record.ConfidenceScore,
		Thoughts:        outcome.Record.Thoughts,
	}
	if outcome.Action != nil {
		resp.ActionID = &outcome.Action.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReasoning(w http.ResponseWriter, r *http.Request) {
	records, err := s.reasoning.ListRecentReasoning(r.Context(), listLimit(r))
	if err != nil {
		s.logger.Error().Err(err).Msg("list reasoning records failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "list reasoning records failed"})
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	actions, err := s.actions.ListRecentActions(r.Context(), listLimit(r))
	if err != nil {
		s.logger.Error().Err(err).Msg("list rebalance actions failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "list rebalance actions failed"})
		return
	}
	writeJSON(w, http.StatusOK, actions)
}

func listLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
