package telemetry

import "fmt"

// DecodeError is returned when an inbound payload is not a UTF-8 JSON object.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode report: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ValidationError names the first report field that was missing or malformed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid report field %s: %s", e.Field, e.Reason)
}
