package trigger

import (
	"time"

	"github.com/nerrad567/aqua-logic-core/internal/device"
)

// PondAll targets a rule at every pond.
const PondAll = "all"

// TriggerConfig is a named rule: when a monitored parameter breaches
// its thresholds (observed now, or forecasted for prediction rules),
// command the target devices.
//
// Configs are created at seed/load time and mutated only by operator
// commands (enable/disable, threshold edits). Disabling is the only
// supported removal path during a run.
type TriggerConfig struct { //nolint:revive // trigger.TriggerConfig is clearer than trigger.Config in calling code
	// Identity
	ID   string `json:"id"`
	Name string `json:"name"`

	// Scope: a specific pond ID, or PondAll.
	PondID string `json:"pond_id"`

	// Configuration
	Enabled    bool               `json:"enabled"`
	Kind       TriggerKind        `json:"kind"`
	Thresholds []TriggerThreshold `json:"thresholds"`

	// TargetDeviceIDs lists explicit targets. Empty means "derive the
	// defaults": the pond's devices of the capability relevant to the
	// breached parameter.
	TargetDeviceIDs []string `json:"target_device_ids,omitempty"`

	// ForecastHorizonHours applies only to prediction-kind rules.
	ForecastHorizonHours int `json:"forecast_horizon_hours,omitempty"`

	// Timing parameters
	CooldownSeconds      int `json:"cooldown_seconds"`
	ConfirmationReadings int `json:"confirmation_readings"`
	AutoShutoffMinutes   int `json:"auto_shutoff_minutes"`

	Priority Priority `json:"priority"`

	// SortOrder preserves insertion order: when rules of equal priority
	// contend for the same device in one tick, the first-defined wins.
	SortOrder int `json:"sort_order"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy creates a complete independent copy of the config.
// Essential for cache isolation in the Store.
func (c *TriggerConfig) DeepCopy() *TriggerConfig {
	if c == nil {
		return nil
	}

	cpy := *c

	if c.Thresholds != nil {
		cpy.Thresholds = make([]TriggerThreshold, len(c.Thresholds))
		copy(cpy.Thresholds, c.Thresholds)
	}
	if c.TargetDeviceIDs != nil {
		cpy.TargetDeviceIDs = make([]string, len(c.TargetDeviceIDs))
		copy(cpy.TargetDeviceIDs, c.TargetDeviceIDs)
	}

	return &cpy
}

// ThresholdFor returns the threshold covering a parameter, if any.
func (c *TriggerConfig) ThresholdFor(parameter string) (TriggerThreshold, bool) {
	for _, th := range c.Thresholds {
		if th.Parameter == parameter {
			return th, true
		}
	}
	return TriggerThreshold{}, false
}

// AppliesTo reports whether the rule covers the given pond.
func (c *TriggerConfig) AppliesTo(pondID string) bool {
	return c.PondID == PondAll || c.PondID == pondID
}

// TriggerThreshold bounds one monitored parameter.
//
// Invariant (enforced at mutation time, never at evaluation time):
// CriticalMin <= SoftMin <= SoftMax <= CriticalMax.
type TriggerThreshold struct { //nolint:revive // mirrors TriggerConfig naming
	Parameter   string  `json:"parameter"`
	Unit        string  `json:"unit"`
	SoftMin     float64 `json:"soft_min"`
	SoftMax     float64 `json:"soft_max"`
	CriticalMin float64 `json:"critical_min"`
	CriticalMax float64 `json:"critical_max"`
}

// TriggerKind distinguishes how a rule's condition is sourced.
type TriggerKind string //nolint:revive // mirrors TriggerConfig naming

// TriggerKind constants.
const (
	KindThreshold  TriggerKind = "threshold"
	KindPrediction TriggerKind = "prediction"
	KindManual     TriggerKind = "manual"
	KindSafety     TriggerKind = "safety"
)

// AllKinds returns all valid trigger kinds.
func AllKinds() []TriggerKind {
	return []TriggerKind{KindThreshold, KindPrediction, KindManual, KindSafety}
}

// Priority orders rules by urgency. It also feeds the power formula
// (higher priority -> higher base intensity) and lets critical rules
// bypass the maintenance window.
type Priority string

// Priority constants.
const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// AllPriorities returns all valid priorities.
func AllPriorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}
}

// Rank returns a comparable ordering: higher means more urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 0
	}
	return 0
}

// SafetyCheck is the outcome of one gate in the safety pipeline.
// Transient: produced fresh every evaluation, persisted only through
// the block reason of the resulting event.
type SafetyCheck struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Passed   bool   `json:"passed"`
	Message  string `json:"message"`
}

// TriggerDecision is the outcome of evaluating one (pond, rule) pair
// in one tick. Transient.
type TriggerDecision struct { //nolint:revive // mirrors TriggerConfig naming
	ConfigID        string        `json:"config_id"`
	PondID          string        `json:"pond_id"`
	Parameter       string        `json:"parameter"`
	Value           float64       `json:"value"`
	ShouldTrigger   bool          `json:"should_trigger"`
	TargetDeviceIDs []string      `json:"target_device_ids"`
	PowerLevel      int           `json:"power_level"`
	Checks          []SafetyCheck `json:"checks"`
	AllChecksPassed bool          `json:"all_checks_passed"`
	Reasoning       string        `json:"reasoning"`
}

// EventAction classifies what a TriggerEvent records.
type EventAction string

// EventAction constants.
const (
	ActionActivated      EventAction = "activated"
	ActionDeactivated    EventAction = "deactivated"
	ActionIncreased      EventAction = "increased"
	ActionDecreased      EventAction = "decreased"
	ActionBlocked        EventAction = "blocked"
	ActionManualOverride EventAction = "manual_override"
)

// TriggerEvent is an immutable audit record. Once appended to the
// EventLog only the Acknowledged flag may change.
type TriggerEvent struct { //nolint:revive // mirrors TriggerConfig naming
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	ConfigID  string  `json:"config_id"`
	PondID    string  `json:"pond_id"`
	Parameter string  `json:"parameter"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`

	Action          EventAction `json:"action"`
	DeviceIDs       []string    `json:"device_ids"`
	Priority        Priority    `json:"priority"`
	PredictionBased bool        `json:"prediction_based"`
	Confirmed       bool        `json:"confirmed"`

	// Message carries a free-text note on operator and housekeeping
	// events. BlockReason is set only on blocked actions and cites the
	// failed safety check.
	Message      string `json:"message,omitempty"`
	BlockReason  string `json:"block_reason,omitempty"`
	Acknowledged bool   `json:"acknowledged"`
}

// DeepCopy creates an independent copy of the event.
func (e *TriggerEvent) DeepCopy() *TriggerEvent {
	if e == nil {
		return nil
	}
	cpy := *e
	if e.DeviceIDs != nil {
		cpy.DeviceIDs = make([]string, len(e.DeviceIDs))
		copy(cpy.DeviceIDs, e.DeviceIDs)
	}
	return &cpy
}

// ManualOverride pins a device's state, excluding it from automatic
// control while enabled.
type ManualOverride struct {
	DeviceID   string     `json:"device_id"`
	Enabled    bool       `json:"enabled"`
	PowerLevel int        `json:"power_level"`
	StartedAt  time.Time  `json:"started_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Reason     string     `json:"reason"`
	Operator   string     `json:"operator"`
}

// DeepCopy creates an independent copy of the override.
func (o *ManualOverride) DeepCopy() *ManualOverride {
	if o == nil {
		return nil
	}
	cpy := *o
	if o.ExpiresAt != nil {
		t := *o.ExpiresAt
		cpy.ExpiresAt = &t
	}
	return &cpy
}

// defaultCapabilities maps a monitored parameter to the device
// capability commanded when a rule has no explicit target list.
var defaultCapabilities = map[string]device.Capability{
	"dissolved_oxygen": device.CapAerator,
	"temperature":      device.CapHeater,
	"ph":               device.CapWaterPump,
	"ammonia":          device.CapWaterPump,
	"nitrite":          device.CapWaterPump,
	"salinity":         device.CapWaterPump,
	"turbidity":        device.CapWaterPump,
}

// CapabilityForParameter returns the default target capability for a
// monitored parameter.
func CapabilityForParameter(parameter string) (device.Capability, bool) {
	c, ok := defaultCapabilities[parameter]
	return c, ok
}
