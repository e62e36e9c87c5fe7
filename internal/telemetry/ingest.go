package telemetry

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// snapshotMessage is the wire format published on
// aqualogic/telemetry/{pond}/snapshot by the ingestion pipeline.
type snapshotMessage struct {
	Values    map[string]float64 `json:"values"`
	Timestamp time.Time          `json:"timestamp"`
}

// forecastMessage is the wire format published on
// aqualogic/telemetry/{pond}/forecast by the forecasting models.
type forecastMessage struct {
	Values       map[string]float64 `json:"values"`
	HorizonHours int                `json:"horizon_hours"`
	Timestamp    time.Time          `json:"timestamp"`
}

// HandleSnapshotMessage decodes a snapshot payload and stores it.
// Matches the mqtt.MessageHandler signature so it can be subscribed
// directly.
func (s *Store) HandleSnapshotMessage(topic string, payload []byte) error {
	pondID, err := pondIDFromTopic(topic)
	if err != nil {
		return err
	}

	var msg snapshotMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if len(msg.Values) == 0 {
		return fmt.Errorf("%w: snapshot has no values", ErrMalformedPayload)
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	s.UpdateSnapshot(pondID, msg.Values, msg.Timestamp)
	return nil
}

// HandleForecastMessage decodes a forecast payload and stores it.
func (s *Store) HandleForecastMessage(topic string, payload []byte) error {
	pondID, err := pondIDFromTopic(topic)
	if err != nil {
		return err
	}

	var msg forecastMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if len(msg.Values) == 0 {
		return fmt.Errorf("%w: forecast has no values", ErrMalformedPayload)
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	s.UpdateForecast(pondID, msg.Values, msg.HorizonHours, msg.Timestamp)
	return nil
}

// pondIDFromTopic extracts the pond segment from
// aqualogic/telemetry/{pond}/{snapshot|forecast}.
func pondIDFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[1] != "telemetry" || parts[2] == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	return parts[2], nil
}
