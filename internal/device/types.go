package device

import "time"

// Pond represents a monitored body of water holding livestock.
// Every hardware device belongs to exactly one pond.
type Pond struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// HardwareDevice represents a single controllable actuator attached to
// a pond. This matches the database schema in
// migrations/20260815_120000_initial_schema.up.sql.
//
// Status and PowerLevel are mutated only by the decision engine;
// ManualOverride (and the pinned power that comes with it) only by the
// override store. Devices are never destroyed during a run.
type HardwareDevice struct {
	// Identity
	ID     string `json:"id"`
	Name   string `json:"name"`
	PondID string `json:"pond_id"`

	// Classification
	Capability Capability `json:"capability"`

	// Current state
	Status         DeviceStatus `json:"status"`
	PowerLevel     int          `json:"power_level"`
	ManualOverride bool         `json:"manual_override"`
	LastTrigger    *time.Time   `json:"last_trigger,omitempty"`
	IsConnected    bool         `json:"is_connected"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy creates a complete independent copy of the device.
// Essential for cache isolation: the Registry hands out copies so
// callers can never mutate cached state in place.
func (d *HardwareDevice) DeepCopy() *HardwareDevice {
	if d == nil {
		return nil
	}

	cpy := *d

	if d.LastTrigger != nil {
		t := *d.LastTrigger
		cpy.LastTrigger = &t
	}

	return &cpy
}

// IsHealthy reports whether the device can accept commands: it must be
// connected and not in error or maintenance status.
func (d *HardwareDevice) IsHealthy() bool {
	if !d.IsConnected {
		return false
	}
	switch d.Status {
	case StatusError, StatusMaintenance, StatusOffline:
		return false
	case StatusOnline, StatusRunning, StatusStandby:
		return true
	}
	return false
}

// Capability represents what an actuator does for a pond.
type Capability string

// Capability constants.
const (
	CapAerator    Capability = "aerator"
	CapOxygenPump Capability = "oxygen_pump"
	CapWaterPump  Capability = "water_pump"
	CapHeater     Capability = "heater"
	CapFeeder     Capability = "feeder"
)

// AllCapabilities returns all valid capability values.
func AllCapabilities() []Capability {
	return []Capability{
		CapAerator, CapOxygenPump, CapWaterPump, CapHeater, CapFeeder,
	}
}

// DeviceStatus represents the operational state of a device.
type DeviceStatus string //nolint:revive // device.DeviceStatus is clearer than device.Status in calling code

// DeviceStatus constants.
//
// standby/running are owned by the decision engine; offline, error and
// maintenance are entered and exited only via external health signals.
const (
	StatusOnline      DeviceStatus = "online"
	StatusOffline     DeviceStatus = "offline"
	StatusRunning     DeviceStatus = "running"
	StatusStandby     DeviceStatus = "standby"
	StatusError       DeviceStatus = "error"
	StatusMaintenance DeviceStatus = "maintenance"
)

// AllDeviceStatuses returns all valid device status values.
func AllDeviceStatuses() []DeviceStatus {
	return []DeviceStatus{
		StatusOnline, StatusOffline, StatusRunning,
		StatusStandby, StatusError, StatusMaintenance,
	}
}

// Power level bounds for all devices.
const (
	MinPowerLevel = 0
	MaxPowerLevel = 100
)
