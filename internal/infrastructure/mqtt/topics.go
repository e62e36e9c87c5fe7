package mqtt

import "fmt"

// Topic prefixes for the Aqua Logic MQTT namespace.
//
// Telemetry flows in from the sensor-ingestion pipeline; commands flow
// out to the device-command boundary. Core never talks to hardware
// directly - the command topics are the hand-off point.
const (
	// TopicPrefix is the base for all Aqua Logic topics.
	TopicPrefix = "aqualogic"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "aqualogic/system"
)

// Topics provides builders for Aqua Logic MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	cmdTopic := topics.DeviceCommand("pond-1", "aerator-1-1")
//	// Returns: "aqualogic/command/pond-1/aerator-1-1"
type Topics struct{}

// PondSnapshot returns the topic carrying sensor snapshots for a pond.
//
// Example: aqualogic/telemetry/pond-1/snapshot
func (Topics) PondSnapshot(pondID string) string {
	return fmt.Sprintf("%s/telemetry/%s/snapshot", TopicPrefix, pondID)
}

// PondForecast returns the topic carrying forecasted values for a pond.
//
// Example: aqualogic/telemetry/pond-1/forecast
func (Topics) PondForecast(pondID string) string {
	return fmt.Sprintf("%s/telemetry/%s/forecast", TopicPrefix, pondID)
}

// DeviceCommand returns the topic for commands to a device.
//
// Example: aqualogic/command/pond-1/aerator-1-1
func (Topics) DeviceCommand(pondID, deviceID string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, pondID, deviceID)
}

// TriggerEvent returns the topic on which trigger events are announced.
//
// Example: aqualogic/event/low-do-emergency
func (Topics) TriggerEvent(configID string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefix, configID)
}

// SystemStatus returns the system status topic (online/offline, LWT).
//
// Example: aqualogic/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllSnapshots returns a pattern matching sensor snapshots for all ponds.
//
// Pattern: aqualogic/telemetry/+/snapshot
func (Topics) AllSnapshots() string {
	return fmt.Sprintf("%s/telemetry/+/snapshot", TopicPrefix)
}

// AllForecasts returns a pattern matching forecasts for all ponds.
//
// Pattern: aqualogic/telemetry/+/forecast
func (Topics) AllForecasts() string {
	return fmt.Sprintf("%s/telemetry/+/forecast", TopicPrefix)
}

// AllCommands returns a pattern matching all device commands.
//
// Pattern: aqualogic/command/+/+
func (Topics) AllCommands() string {
	return fmt.Sprintf("%s/command/+/+", TopicPrefix)
}
