package trigger

import "errors"

// Domain errors for the trigger package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, trigger.ErrConfigNotFound) {
//	    // handle not found case
//	}
var (
	// ErrConfigNotFound is returned when a trigger config ID does not exist.
	ErrConfigNotFound = errors.New("trigger: config not found")

	// ErrConfigExists is returned when creating a config with an ID that already exists.
	ErrConfigExists = errors.New("trigger: config already exists")

	// ErrInvalidConfig is returned when config validation fails.
	ErrInvalidConfig = errors.New("trigger: invalid config")

	// ErrInvalidThreshold is returned when threshold boundaries are mis-ordered
	// or reference an empty parameter.
	ErrInvalidThreshold = errors.New("trigger: invalid threshold")

	// ErrInvalidPriority is returned when a priority value is not recognised.
	ErrInvalidPriority = errors.New("trigger: invalid priority")

	// ErrInvalidKind is returned when a trigger kind is not recognised.
	ErrInvalidKind = errors.New("trigger: invalid kind")

	// ErrUnknownThresholdField is returned when an operator threshold update
	// names a field that does not exist.
	ErrUnknownThresholdField = errors.New("trigger: unknown threshold field")

	// ErrEventNotFound is returned when an event ID does not exist in the log.
	ErrEventNotFound = errors.New("trigger: event not found")

	// ErrOverrideNotFound is returned when clearing an override that is not set.
	ErrOverrideNotFound = errors.New("trigger: override not found")

	// ErrSystemDisabled is returned when a manual evaluation is requested
	// while the system is disabled.
	ErrSystemDisabled = errors.New("trigger: system disabled")
)
