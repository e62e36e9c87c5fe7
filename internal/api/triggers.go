package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/aqua-logic-core/internal/trigger"
)

// handleListConfigs returns all trigger rules in evaluation order.
func (s *Server) handleListConfigs(w http.ResponseWriter, _ *http.Request) {
	configs := s.rules.List()
	writeJSON(w, http.StatusOK, map[string]any{"configs": configs, "count": len(configs)})
}

// handleGetConfig returns a single trigger rule by ID.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	cfg, err := s.rules.Get(id)
	if err != nil {
		writeNotFound(w, "trigger config not found")
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}

// handleCreateConfig creates a new trigger rule.
//
// Validation failures (bad threshold ordering, unknown kind or
// priority, missing fields) are rejected here, never deferred to
// evaluation time.
func (s *Server) handleCreateConfig(w http.ResponseWriter, r *http.Request) {
	var cfg trigger.TriggerConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.rules.Create(r.Context(), &cfg); err != nil {
		switch {
		case errors.Is(err, trigger.ErrConfigExists):
			writeConflict(w, "trigger config already exists")
		case isConfigValidationError(err):
			writeBadRequest(w, err.Error())
		default:
			writeInternalError(w, "failed to create trigger config")
		}
		return
	}

	writeJSON(w, http.StatusCreated, cfg)
}

// handleEnableConfig enables a trigger rule.
func (s *Server) handleEnableConfig(w http.ResponseWriter, r *http.Request) {
	s.toggleConfig(w, r, true)
}

// handleDisableConfig disables a trigger rule.
func (s *Server) handleDisableConfig(w http.ResponseWriter, r *http.Request) {
	s.toggleConfig(w, r, false)
}

func (s *Server) toggleConfig(w http.ResponseWriter, r *http.Request, enabled bool) {
	id := chi.URLParam(r, "id")

	if err := s.rules.Toggle(r.Context(), id, enabled); err != nil {
		if errors.Is(err, trigger.ErrConfigNotFound) {
			writeNotFound(w, "trigger config not found")
			return
		}
		writeInternalError(w, "failed to toggle trigger config")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"id": id, "enabled": enabled})
}

// ThresholdUpdateRequest is the body for PATCH /triggers/configs/{id}/threshold.
type ThresholdUpdateRequest struct {
	Parameter string  `json:"parameter"`
	Field     string  `json:"field"`
	Value     float64 `json:"value"`
}

// handleUpdateThreshold adjusts one boundary of one threshold. The edit
// is atomic: a change that would violate the boundary ordering leaves
// the rule untouched.
func (s *Server) handleUpdateThreshold(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ThresholdUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	err := s.rules.UpdateThreshold(r.Context(), id, req.Parameter, req.Field, req.Value)
	if err != nil {
		switch {
		case errors.Is(err, trigger.ErrConfigNotFound):
			writeNotFound(w, "trigger config not found")
		case errors.Is(err, trigger.ErrInvalidThreshold), errors.Is(err, trigger.ErrUnknownThresholdField):
			writeBadRequest(w, err.Error())
		default:
			writeInternalError(w, "failed to update threshold")
		}
		return
	}

	cfg, err := s.rules.Get(id)
	if err != nil {
		writeInternalError(w, "failed to reload trigger config")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// handleListEvents returns recent trigger events, newest first.
//
// Query parameters:
//   - limit: maximum number of events (default all retained)
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	events := s.events.Recent(limit)
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}

// handleAcknowledgeEvent marks an event as seen by an operator.
func (s *Server) handleAcknowledgeEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.events.Acknowledge(r.Context(), id); err != nil {
		if errors.Is(err, trigger.ErrEventNotFound) {
			writeNotFound(w, "event not found")
			return
		}
		writeInternalError(w, "failed to acknowledge event")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"id": id, "acknowledged": true})
}

// handleListOverrides returns all active manual overrides.
func (s *Server) handleListOverrides(w http.ResponseWriter, _ *http.Request) {
	overrides := s.overrides.List()
	writeJSON(w, http.StatusOK, map[string]any{"overrides": overrides, "count": len(overrides)})
}

// isConfigValidationError reports whether an error is a trigger config
// validation failure.
func isConfigValidationError(err error) bool {
	return errors.Is(err, trigger.ErrInvalidConfig) ||
		errors.Is(err, trigger.ErrInvalidThreshold) ||
		errors.Is(err, trigger.ErrInvalidKind) ||
		errors.Is(err, trigger.ErrInvalidPriority)
}
