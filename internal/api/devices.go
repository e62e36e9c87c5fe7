package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/aqua-logic-core/internal/device"
	"github.com/nerrad567/aqua-logic-core/internal/trigger"
)

// handleListDevices returns all devices, with optional query filters.
//
// Query parameters:
//   - pond_id: filter by pond
//   - capability: filter by capability (aerator, heater, etc.)
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pondID := r.URL.Query().Get("pond_id")

	if capStr := r.URL.Query().Get("capability"); capStr != "" {
		devices, err := s.registry.GetDevicesByCapability(ctx, pondID, device.Capability(capStr))
		if err != nil {
			writeInternalError(w, "failed to list devices")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
		return
	}

	devices, err := s.registry.ListDevices(ctx, pondID)
	if err != nil {
		writeInternalError(w, "failed to list devices")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dev, err := s.registry.GetDevice(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, dev)
}

// handleCreateDevice creates a new device.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var dev device.HardwareDevice
	if err := json.NewDecoder(r.Body).Decode(&dev); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.registry.CreateDevice(r.Context(), &dev); err != nil {
		switch {
		case errors.Is(err, device.ErrPondNotFound):
			writeBadRequest(w, "pond does not exist")
		case errors.Is(err, device.ErrDeviceExists):
			writeConflict(w, "device already exists")
		case isValidationError(err):
			writeBadRequest(w, err.Error())
		default:
			writeInternalError(w, "failed to create device")
		}
		return
	}

	writeJSON(w, http.StatusCreated, dev)
}

// handleUpdateDevice partially updates a device.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existing, err := s.registry.GetDevice(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	// Decode partial update onto the existing device
	if err := json.NewDecoder(r.Body).Decode(existing); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	existing.ID = id // ID cannot be changed

	if err := s.registry.UpdateDevice(r.Context(), existing); err != nil {
		if isValidationError(err) {
			writeBadRequest(w, err.Error())
			return
		}
		writeInternalError(w, "failed to update device")
		return
	}

	writeJSON(w, http.StatusOK, existing)
}

// handleDeleteDevice removes a device by ID.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.registry.DeleteDevice(r.Context(), id); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to delete device")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// handleStopDevice returns a device to standby on operator command.
func (s *Server) handleStopDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	operator := r.URL.Query().Get("operator")

	if err := s.engine.StopDevice(r.Context(), id, operator); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to stop device")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "stopped"})
}

// OverrideRequest is the body for PUT /devices/{id}/override.
type OverrideRequest struct {
	PowerLevel      int    `json:"power_level"`
	DurationMinutes int    `json:"duration_minutes"`
	Reason          string `json:"reason"`
	Operator        string `json:"operator"`
}

// handleSetOverride pins a device at a fixed power under operator control.
func (s *Server) handleSetOverride(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req OverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	err := s.engine.SetManualOverride(r.Context(), id, req.PowerLevel, req.DurationMinutes, req.Reason, req.Operator)
	if err != nil {
		switch {
		case errors.Is(err, device.ErrDeviceNotFound):
			writeNotFound(w, "device not found")
		case errors.Is(err, device.ErrInvalidPowerLevel):
			writeBadRequest(w, err.Error())
		default:
			writeInternalError(w, "failed to set override")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "overridden",
		"device_id":   id,
		"power_level": req.PowerLevel,
	})
}

// handleClearOverride releases a device back to automatic control.
func (s *Server) handleClearOverride(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.engine.ClearManualOverride(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, device.ErrDeviceNotFound):
			writeNotFound(w, "device not found")
		case errors.Is(err, trigger.ErrOverrideNotFound):
			writeNotFound(w, "no override set for device")
		default:
			writeInternalError(w, "failed to clear override")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "released"})
}

// isValidationError reports whether an error is a device validation failure.
func isValidationError(err error) bool {
	return errors.Is(err, device.ErrInvalidDevice) ||
		errors.Is(err, device.ErrInvalidCapability) ||
		errors.Is(err, device.ErrInvalidStatus) ||
		errors.Is(err, device.ErrInvalidName) ||
		errors.Is(err, device.ErrInvalidPowerLevel)
}
