package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/aqua-logic-core/internal/device"
)

// handleListPonds returns all ponds.
func (s *Server) handleListPonds(w http.ResponseWriter, r *http.Request) {
	ponds, err := s.registry.ListPonds(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list ponds")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ponds": ponds, "count": len(ponds)})
}

// handleCreatePond creates a new pond.
func (s *Server) handleCreatePond(w http.ResponseWriter, r *http.Request) {
	var pond device.Pond
	if err := json.NewDecoder(r.Body).Decode(&pond); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.registry.CreatePond(r.Context(), &pond); err != nil {
		switch {
		case errors.Is(err, device.ErrPondExists):
			writeConflict(w, "pond already exists")
		case errors.Is(err, device.ErrInvalidName):
			writeBadRequest(w, err.Error())
		default:
			writeInternalError(w, "failed to create pond")
		}
		return
	}

	writeJSON(w, http.StatusCreated, pond)
}

// handleGetPondTelemetry returns the latest sensor snapshot for a pond.
func (s *Server) handleGetPondTelemetry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	snapshot, ok := s.telemetry.GetSnapshot(id)
	if !ok {
		writeNotFound(w, "no telemetry received for pond")
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}
