// Package telemetry holds the latest sensor picture for each pond.
//
// The Store is fed by the MQTT telemetry topics and read by the
// decision engine on every tick. Only the most recent snapshot and
// forecast per pond are kept; the engine works off "now", and
// long-term history belongs to the ingestion pipeline upstream.
//
// Readings older than the configured max age are treated as missing,
// so a silent sensor degrades to "rule not evaluable" rather than the
// engine acting on stale data.
package telemetry
