// Package mqtt provides the MQTT transport layer for Aqua Logic Core.
//
// The broker is the boundary between Core and the outside world: the
// sensor-ingestion pipeline publishes per-pond snapshots and forecasts
// on aqualogic/telemetry/..., and Core publishes device commands on
// aqualogic/command/{pond}/{device}. Delivery to physical controllers
// is the responsibility of whatever consumes the command topics; Core's
// own device registry remains the source of truth for "what we last
// commanded".
//
// The Client wraps paho.mqtt.golang with automatic reconnection,
// re-subscription, Last Will and Testament on aqualogic/system/status,
// and panic-safe message handlers.
package mqtt
