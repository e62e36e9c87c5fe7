package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when creating a device with an ID that already exists.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrPondNotFound is returned when a referenced pond does not exist.
	ErrPondNotFound = errors.New("device: pond not found")

	// ErrPondExists is returned when creating a pond with an ID that already exists.
	ErrPondExists = errors.New("device: pond already exists")

	// ErrInvalidDevice is returned when device validation fails.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrInvalidCapability is returned when a capability value is not recognised.
	ErrInvalidCapability = errors.New("device: invalid capability")

	// ErrInvalidStatus is returned when a status value is not recognised.
	ErrInvalidStatus = errors.New("device: invalid status")

	// ErrInvalidName is returned when a device or pond name is empty or too long.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrInvalidPowerLevel is returned when a power level is outside 0-100.
	ErrInvalidPowerLevel = errors.New("device: invalid power level")
)
