package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteTriggerEvent records a trigger event as a telemetry point.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Used for operator dashboards charting activations, blocks, and the
// observed values that caused them.
//
// Parameters:
//   - configID: The trigger configuration that fired
//   - pondID: The pond evaluated
//   - action: The recorded action (activated, blocked, ...)
//   - parameter: The monitored parameter (e.g. "dissolved_oxygen")
//   - value: The observed or predicted value
func (c *Client) WriteTriggerEvent(configID, pondID, action, parameter string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"trigger_events",
		map[string]string{
			"config_id": configID,
			"pond_id":   pondID,
			"action":    action,
			"parameter": parameter,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteDevicePower records the power level commanded to a device.
//
// Parameters:
//   - deviceID: Device identifier
//   - pondID: The pond the device belongs to
//   - powerLevel: Commanded power (0-100)
func (c *Client) WriteDevicePower(deviceID, pondID string, powerLevel int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"device_power",
		map[string]string{
			"device_id": deviceID,
			"pond_id":   pondID,
		},
		map[string]interface{}{
			"power_level": powerLevel,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
