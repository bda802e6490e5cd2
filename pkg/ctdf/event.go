package ctdf

import (
	"time"
)

// Event is the envelope used whenever a committed telemetry event leaves the
// process, over websockets or the events queue.
type Event struct {
	Type      EventType `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Body      any       `json:"data"`
}

type EventType string

const (
	EventTypeTelemetryUpdate EventType = "telemetria-update"
)

func NewTelemetryUpdateEvent(telemetryEvent TelemetryEvent) Event {
	return Event{
		Type:      EventTypeTelemetryUpdate,
		Timestamp: telemetryEvent.RecordedAt,
		Body:      telemetryEvent,
	}
}
