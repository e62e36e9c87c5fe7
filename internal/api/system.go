package api

import (
	"net/http"
	"time"

	"github.com/nerrad567/aqua-logic-core/internal/trigger"
)

// statusRecentEvents is the number of events included in the status snapshot.
const statusRecentEvents = 10

// SystemStatus is the composite status snapshot for operator dashboards.
type SystemStatus struct {
	Enabled              bool                   `json:"enabled"`
	Version              string                 `json:"version"`
	LastCheck            time.Time              `json:"last_check"`
	NextCheck            time.Time              `json:"next_check"`
	CheckIntervalSeconds int                    `json:"check_interval_seconds"`
	SkippedTicks         int64                  `json:"skipped_ticks"`
	ActiveTriggers       int                    `json:"active_triggers"`
	PendingDecisions     int                    `json:"pending_decisions"`
	TotalConfigs         int                    `json:"total_configs"`
	EnabledConfigs       int                    `json:"enabled_configs"`
	Ponds                int                    `json:"ponds"`
	Devices              int                    `json:"devices"`
	DevicesRunning       int                    `json:"devices_running"`
	ActiveOverrides      int                    `json:"active_overrides"`
	MQTTConnected        bool                   `json:"mqtt_connected"`
	RecentEvents         []trigger.TriggerEvent `json:"recent_events"`
}

// handleSystemStatus composes the full status snapshot: scheduler
// state, rule counts, device fleet summary, overrides, broker health,
// and the most recent audit events.
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sched := s.scheduler.Status()

	status := SystemStatus{
		Enabled:              sched.Enabled,
		Version:              s.version,
		LastCheck:            sched.LastCheck,
		NextCheck:            sched.NextCheck,
		CheckIntervalSeconds: sched.CheckIntervalSeconds,
		SkippedTicks:         sched.SkippedTicks,
		ActiveTriggers:       sched.ActiveTriggers,
		PendingDecisions:     sched.PendingDecisions,
	}

	status.TotalConfigs, status.EnabledConfigs = s.rules.Count()
	status.RecentEvents = s.events.Recent(statusRecentEvents)
	status.ActiveOverrides = len(s.overrides.List())
	if s.mqtt != nil {
		status.MQTTConnected = s.mqtt.IsConnected()
	}

	if ponds, err := s.registry.ListPonds(ctx); err == nil {
		status.Ponds = len(ponds)
	}
	if devices, err := s.registry.ListDevices(ctx, ""); err == nil {
		status.Devices = len(devices)
		for i := range devices {
			if devices[i].PowerLevel > 0 {
				status.DevicesRunning++
			}
		}
	}

	writeJSON(w, http.StatusOK, status)
}

// handleSystemEnable resumes scheduled evaluation. Confirmation buffers
// are reset so pre-pause readings cannot count toward an activation.
func (s *Server) handleSystemEnable(w http.ResponseWriter, _ *http.Request) {
	s.scheduler.SetEnabled(true)
	writeJSON(w, http.StatusOK, map[string]any{"enabled": true})
}

// handleSystemDisable pauses scheduled evaluation. Devices already
// running are left as they are.
func (s *Server) handleSystemDisable(w http.ResponseWriter, _ *http.Request) {
	s.scheduler.SetEnabled(false)
	writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
}

// handleSystemEvaluate forces a single evaluation pass outside the
// normal cadence and returns the decisions it produced.
func (s *Server) handleSystemEvaluate(w http.ResponseWriter, r *http.Request) {
	decisions, err := s.scheduler.RunOnce(r.Context())
	if err != nil {
		writeConflict(w, "system is disabled")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"decisions": decisions,
		"count":     len(decisions),
	})
}
