package trigger

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxNameLength    = 100
	maxThresholds    = 10
	maxTargetDevices = 50
)

var (
	validKinds      map[TriggerKind]struct{}
	validPriorities map[Priority]struct{}
)

func init() {
	validKinds = make(map[TriggerKind]struct{}, len(AllKinds()))
	for _, k := range AllKinds() {
		validKinds[k] = struct{}{}
	}

	validPriorities = make(map[Priority]struct{}, len(AllPriorities()))
	for _, p := range AllPriorities() {
		validPriorities[p] = struct{}{}
	}
}

// ValidateConfig performs comprehensive validation on a trigger config.
// Returns an error describing the first validation failure found.
//
// Configuration errors are rejected here, at mutation time — never
// deferred to evaluation time.
func ValidateConfig(c *TriggerConfig) error {
	if c == nil {
		return ErrInvalidConfig
	}

	name := strings.TrimSpace(c.Name)
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidConfig)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidConfig, maxNameLength)
	}

	if strings.TrimSpace(c.PondID) == "" {
		return fmt.Errorf("%w: pond_id is required (use %q for all ponds)", ErrInvalidConfig, PondAll)
	}

	if err := ValidateKind(c.Kind); err != nil {
		return err
	}
	if err := ValidatePriority(c.Priority); err != nil {
		return err
	}

	if len(c.Thresholds) == 0 && (c.Kind == KindThreshold || c.Kind == KindPrediction) {
		return fmt.Errorf("%w: %s rule requires at least one threshold", ErrInvalidConfig, c.Kind)
	}
	if len(c.Thresholds) > maxThresholds {
		return fmt.Errorf("%w: too many thresholds (max %d)", ErrInvalidConfig, maxThresholds)
	}
	for i := range c.Thresholds {
		if err := ValidateThreshold(&c.Thresholds[i]); err != nil {
			return err
		}
	}

	if len(c.TargetDeviceIDs) > maxTargetDevices {
		return fmt.Errorf("%w: too many target devices (max %d)", ErrInvalidConfig, maxTargetDevices)
	}

	if c.Kind == KindPrediction && c.ForecastHorizonHours <= 0 {
		return fmt.Errorf("%w: prediction rule requires a positive forecast horizon", ErrInvalidConfig)
	}

	if c.CooldownSeconds < 0 {
		return fmt.Errorf("%w: cooldown_seconds cannot be negative", ErrInvalidConfig)
	}
	if c.ConfirmationReadings < 1 {
		return fmt.Errorf("%w: confirmation_readings must be at least 1", ErrInvalidConfig)
	}
	if c.AutoShutoffMinutes < 0 {
		return fmt.Errorf("%w: auto_shutoff_minutes cannot be negative", ErrInvalidConfig)
	}

	return nil
}

// ValidateThreshold checks the boundary ordering invariant:
// critical_min <= soft_min <= soft_max <= critical_max.
func ValidateThreshold(th *TriggerThreshold) error {
	if th == nil {
		return ErrInvalidThreshold
	}
	if strings.TrimSpace(th.Parameter) == "" {
		return fmt.Errorf("%w: parameter cannot be empty", ErrInvalidThreshold)
	}
	if th.CriticalMin > th.SoftMin {
		return fmt.Errorf("%w: %s critical_min (%v) > soft_min (%v)",
			ErrInvalidThreshold, th.Parameter, th.CriticalMin, th.SoftMin)
	}
	if th.SoftMin > th.SoftMax {
		return fmt.Errorf("%w: %s soft_min (%v) > soft_max (%v)",
			ErrInvalidThreshold, th.Parameter, th.SoftMin, th.SoftMax)
	}
	if th.SoftMax > th.CriticalMax {
		return fmt.Errorf("%w: %s soft_max (%v) > critical_max (%v)",
			ErrInvalidThreshold, th.Parameter, th.SoftMax, th.CriticalMax)
	}
	return nil
}

// ValidateKind checks if a trigger kind is valid.
func ValidateKind(k TriggerKind) error {
	if _, ok := validKinds[k]; ok {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidKind, k)
}

// ValidatePriority checks if a priority is valid.
func ValidatePriority(p Priority) error {
	if _, ok := validPriorities[p]; ok {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidPriority, p)
}

// GenerateID creates a new UUID for a config or event.
func GenerateID() string {
	return uuid.New().String()
}
