package telemetry

import "errors"

// Domain errors for the telemetry package.
var (
	// ErrMalformedPayload is returned when a telemetry message cannot be decoded.
	ErrMalformedPayload = errors.New("telemetry: malformed payload")

	// ErrInvalidTopic is returned when a message arrives on an unrecognised topic.
	ErrInvalidTopic = errors.New("telemetry: invalid topic")
)
