package trigger

import (
	"math"

	"github.com/nerrad567/aqua-logic-core/internal/device"
)

// Severity classifies how badly a value breaches its thresholds.
type Severity int

// Severity levels.
const (
	SeverityNone Severity = iota
	SeverityWarning
	SeverityCritical
)

// Breach direction.
type breachDirection int

const (
	breachNone breachDirection = iota
	breachLow
	breachHigh
)

// EvaluateThreshold classifies a value against a threshold: no breach,
// warning (past a soft bound) or critical (past a critical bound).
func EvaluateThreshold(value float64, th TriggerThreshold) Severity {
	sev, _ := classify(value, th)
	return sev
}

func classify(value float64, th TriggerThreshold) (Severity, breachDirection) {
	switch {
	case value <= th.CriticalMin:
		return SeverityCritical, breachLow
	case value >= th.CriticalMax:
		return SeverityCritical, breachHigh
	case value <= th.SoftMin:
		return SeverityWarning, breachLow
	case value >= th.SoftMax:
		return SeverityWarning, breachHigh
	}
	return SeverityNone, breachNone
}

// CrossedBoundary returns the threshold boundary a breaching value
// crossed, for event records. Zero when there is no breach.
func CrossedBoundary(value float64, th TriggerThreshold) float64 {
	switch sev, dir := classify(value, th); {
	case sev == SeverityCritical && dir == breachLow:
		return th.CriticalMin
	case sev == SeverityCritical && dir == breachHigh:
		return th.CriticalMax
	case sev == SeverityWarning && dir == breachLow:
		return th.SoftMin
	case sev == SeverityWarning && dir == breachHigh:
		return th.SoftMax
	}
	return 0
}

// ComputePowerLevel maps breach severity to actuator intensity.
//
// For a low-side breach: at or below critical_min the power saturates
// at 100. Between soft_min and critical_min it interpolates from a
// priority-dependent base (70 critical, 60 high, 50 otherwise) up to
// base+30, so intensity rises monotonically as the value worsens.
// High-side breaches mirror the same curve between soft_max and
// critical_max. No breach yields 0.
func ComputePowerLevel(value float64, th TriggerThreshold, priority Priority) int {
	sev, dir := classify(value, th)
	if sev == SeverityNone {
		return device.MinPowerLevel
	}
	if sev == SeverityCritical {
		return device.MaxPowerLevel
	}

	var ratio float64
	switch dir {
	case breachLow:
		span := th.SoftMin - th.CriticalMin
		if span <= 0 {
			ratio = 1
		} else {
			ratio = (th.SoftMin - value) / span
		}
	case breachHigh:
		span := th.CriticalMax - th.SoftMax
		if span <= 0 {
			ratio = 1
		} else {
			ratio = (value - th.SoftMax) / span
		}
	case breachNone:
		return device.MinPowerLevel
	}
	ratio = clamp(ratio, 0, 1)

	base := 50.0
	switch priority {
	case PriorityCritical:
		base = 70
	case PriorityHigh:
		base = 60
	case PriorityMedium, PriorityLow:
	}

	power := int(math.Round(base + ratio*30))
	if power > device.MaxPowerLevel {
		power = device.MaxPowerLevel
	}
	return power
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
