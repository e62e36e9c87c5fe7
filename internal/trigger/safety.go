package trigger

import (
	"fmt"
	"time"

	"github.com/nerrad567/aqua-logic-core/internal/device"
)

// Safety check names and categories.
const (
	CheckSensorValidity    = "Sensor Validity"
	CheckCooldown          = "Cooldown"
	CheckDeviceHealth      = "Device Health"
	CheckConfirmation      = "Confirmation"
	CheckMaintenanceWindow = "Maintenance Window"

	categoryData      = "data"
	categoryRateLimit = "rate_limit"
	categoryHardware  = "hardware"
	categoryNoise     = "noise"
	categorySchedule  = "schedule"
)

// plausibleRange bounds the physically possible values of a parameter.
type plausibleRange struct {
	Min, Max float64
}

// plausibleRanges guards against impossible sensor readings (a DO
// probe reporting 35 mg/L is broken, not an emergency). Parameters
// without an entry pass the validity check.
var plausibleRanges = map[string]plausibleRange{
	"dissolved_oxygen": {Min: 0, Max: 20},
	"ph":               {Min: 0, Max: 14},
	"temperature":      {Min: -5, Max: 45},
	"ammonia":          {Min: 0, Max: 10},
	"nitrite":          {Min: 0, Max: 10},
	"salinity":         {Min: 0, Max: 50},
	"turbidity":        {Min: 0, Max: 1000},
}

// MaintenanceWindow is a daily local-time blackout during which
// non-critical triggers are blocked.
type MaintenanceWindow struct {
	StartHour   int
	StartMinute int
	EndHour     int
	EndMinute   int
	Location    *time.Location
}

// Contains reports whether t falls inside the window. Windows that
// wrap midnight (e.g. 23:00-01:00) are handled.
func (w MaintenanceWindow) Contains(t time.Time) bool {
	loc := w.Location
	if loc == nil {
		loc = time.Local
	}
	local := t.In(loc)
	minutes := local.Hour()*60 + local.Minute()
	start := w.StartHour*60 + w.StartMinute
	end := w.EndHour*60 + w.EndMinute

	if start == end {
		return false
	}
	if start < end {
		return minutes >= start && minutes < end
	}
	return minutes >= start || minutes < end
}

// Pipeline runs the five safety checks that gate every candidate
// (pond, rule, devices) evaluation. Checks are independent: each
// produces its own pass/fail regardless of the others, so a blocked
// decision records every failed gate for transparency.
type Pipeline struct {
	window MaintenanceWindow

	// now is swappable for tests.
	now func() time.Time
}

// NewPipeline creates a safety pipeline with the given maintenance window.
func NewPipeline(window MaintenanceWindow) *Pipeline {
	return &Pipeline{
		window: window,
		now:    time.Now,
	}
}

// PipelineInput carries everything one pipeline run needs.
type PipelineInput struct {
	Parameter string
	Value     float64

	// LastActivated is the time of the most recent activated event for
	// this (rule, pond); zero when the rule has never fired.
	LastActivated   time.Time
	CooldownSeconds int

	Devices []device.HardwareDevice

	ConfirmationCount    int
	ConfirmationRequired int

	Priority Priority
}

// Run executes all five checks and returns their outcomes in
// presentation order. Pass/fail of each check is order-insensitive.
func (p *Pipeline) Run(in PipelineInput) []SafetyCheck {
	return []SafetyCheck{
		p.checkSensorValidity(in.Parameter, in.Value),
		p.checkCooldown(in.LastActivated, in.CooldownSeconds),
		p.checkDeviceHealth(in.Devices),
		p.checkConfirmation(in.ConfirmationCount, in.ConfirmationRequired),
		p.checkMaintenanceWindow(in.Priority),
	}
}

// AllPassed reports whether every check in a pipeline result passed.
func AllPassed(checks []SafetyCheck) bool {
	for _, c := range checks {
		if !c.Passed {
			return false
		}
	}
	return true
}

// FailureReasons concatenates the messages of failed checks.
func FailureReasons(checks []SafetyCheck) string {
	var reason string
	for _, c := range checks {
		if c.Passed {
			continue
		}
		if reason != "" {
			reason += "; "
		}
		reason += c.Name + ": " + c.Message
	}
	return reason
}

// checkSensorValidity fails when the observed value is physically
// implausible. A failing validity check fails the whole pipeline
// regardless of the rule condition.
func (p *Pipeline) checkSensorValidity(parameter string, value float64) SafetyCheck {
	check := SafetyCheck{Name: CheckSensorValidity, Category: categoryData, Passed: true}

	r, ok := plausibleRanges[parameter]
	if !ok {
		check.Message = fmt.Sprintf("no plausibility bounds configured for %q", parameter)
		return check
	}
	if value < r.Min || value > r.Max {
		check.Passed = false
		check.Message = fmt.Sprintf("%s reading %.2f outside plausible range [%.1f, %.1f]",
			parameter, value, r.Min, r.Max)
		return check
	}
	check.Message = fmt.Sprintf("%s reading %.2f within plausible range", parameter, value)
	return check
}

// checkCooldown fails while the rule's cooldown since its last
// activation has not elapsed.
func (p *Pipeline) checkCooldown(lastActivated time.Time, cooldownSeconds int) SafetyCheck {
	check := SafetyCheck{Name: CheckCooldown, Category: categoryRateLimit, Passed: true}

	if lastActivated.IsZero() || cooldownSeconds <= 0 {
		check.Message = "no active cooldown"
		return check
	}

	cooldown := time.Duration(cooldownSeconds) * time.Second
	elapsed := p.now().Sub(lastActivated)
	if elapsed < cooldown {
		remaining := cooldown - elapsed
		check.Passed = false
		check.Message = fmt.Sprintf("cooldown active, %ds remaining", int(remaining.Seconds())+1)
		return check
	}

	check.Message = fmt.Sprintf("cooldown elapsed (%ds since last activation)", int(elapsed.Seconds()))
	return check
}

// checkDeviceHealth fails when any target device is disconnected or
// in error/maintenance status.
func (p *Pipeline) checkDeviceHealth(devices []device.HardwareDevice) SafetyCheck {
	check := SafetyCheck{Name: CheckDeviceHealth, Category: categoryHardware, Passed: true}

	var unhealthy []string
	for i := range devices {
		if !devices[i].IsHealthy() {
			unhealthy = append(unhealthy,
				fmt.Sprintf("%s (%s, connected=%t)", devices[i].ID, devices[i].Status, devices[i].IsConnected))
		}
	}

	if len(unhealthy) > 0 {
		check.Passed = false
		check.Message = fmt.Sprintf("unhealthy devices: %v", unhealthy)
		return check
	}
	check.Message = fmt.Sprintf("all %d target devices healthy", len(devices))
	return check
}

// checkConfirmation fails until the breach has been observed for the
// rule's required number of consecutive readings.
func (p *Pipeline) checkConfirmation(count, required int) SafetyCheck {
	check := SafetyCheck{Name: CheckConfirmation, Category: categoryNoise, Passed: true}

	if required < 1 {
		required = 1
	}
	if count < required {
		check.Passed = false
		check.Message = fmt.Sprintf("%d of %d confirmation readings", count, required)
		return check
	}
	check.Message = fmt.Sprintf("confirmed with %d readings", count)
	return check
}

// checkMaintenanceWindow blocks non-critical triggers during the daily
// blackout; critical-priority rules bypass it.
func (p *Pipeline) checkMaintenanceWindow(priority Priority) SafetyCheck {
	check := SafetyCheck{Name: CheckMaintenanceWindow, Category: categorySchedule, Passed: true}

	if !p.window.Contains(p.now()) {
		check.Message = "outside maintenance window"
		return check
	}
	if priority == PriorityCritical {
		check.Message = "inside maintenance window, bypassed by critical priority"
		return check
	}

	check.Passed = false
	check.Message = fmt.Sprintf("maintenance window %02d:%02d-%02d:%02d active",
		p.window.StartHour, p.window.StartMinute, p.window.EndHour, p.window.EndMinute)
	return check
}
