// Package influxdb provides the optional telemetry sink for Aqua Logic Core.
//
// Trigger events and commanded power levels are written as points for
// operator dashboards. Writes are batched and non-blocking; the engine
// never waits on the sink, and a missing or unhealthy InfluxDB degrades
// to "no telemetry" rather than affecting control decisions.
package influxdb
