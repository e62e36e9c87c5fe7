package device

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxNameLength = 100
)

// Pre-computed validation sets for O(1) lookups instead of O(n) linear search.
var (
	validCapabilities map[Capability]struct{}
	validStatuses     map[DeviceStatus]struct{}
)

func init() {
	validCapabilities = make(map[Capability]struct{}, len(AllCapabilities()))
	for _, c := range AllCapabilities() {
		validCapabilities[c] = struct{}{}
	}

	validStatuses = make(map[DeviceStatus]struct{}, len(AllDeviceStatuses()))
	for _, s := range AllDeviceStatuses() {
		validStatuses[s] = struct{}{}
	}
}

// ValidateDevice performs comprehensive validation on a device.
// Returns an error describing the first validation failure found.
func ValidateDevice(d *HardwareDevice) error {
	if d == nil {
		return ErrInvalidDevice
	}

	if err := ValidateName(d.Name); err != nil {
		return err
	}

	if strings.TrimSpace(d.PondID) == "" {
		return fmt.Errorf("%w: pond_id is required", ErrInvalidDevice)
	}

	if err := ValidateCapability(d.Capability); err != nil {
		return err
	}

	// Status is set at creation; validate if the caller supplied one
	if d.Status != "" {
		if err := ValidateStatus(d.Status); err != nil {
			return err
		}
	}

	if err := ValidatePowerLevel(d.PowerLevel); err != nil {
		return err
	}

	return nil
}

// ValidateName checks if a device or pond name is valid.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidateCapability checks if a capability is valid.
// Uses O(1) map lookup for efficiency.
func ValidateCapability(c Capability) error {
	if _, ok := validCapabilities[c]; ok {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidCapability, c)
}

// ValidateStatus checks if a device status is valid.
// Uses O(1) map lookup for efficiency.
func ValidateStatus(s DeviceStatus) error {
	if _, ok := validStatuses[s]; ok {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// ValidatePowerLevel checks a power level lies within 0-100.
func ValidatePowerLevel(power int) error {
	if power < MinPowerLevel || power > MaxPowerLevel {
		return fmt.Errorf("%w: %d (must be %d-%d)", ErrInvalidPowerLevel, power, MinPowerLevel, MaxPowerLevel)
	}
	return nil
}

// GenerateID creates a new UUID for a device or pond.
func GenerateID() string {
	return uuid.New().String()
}
