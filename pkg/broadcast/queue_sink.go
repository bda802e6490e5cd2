package broadcast

import (
	"context"
	"encoding/json"

	"github.com/adjust/rmq/v5"
	"github.com/travigo/telemetria/pkg/ctdf"
)

// QueueSink pushes the telemetria-update envelope of every event onto an rmq
// queue for downstream consumers that need at-least-once delivery.
type QueueSink struct {
	queue rmq.Queue
}

func NewQueueSink(connection rmq.Connection, queueName string) (*QueueSink, error) {
	queue, err := connection.OpenQueue(queueName)
	if err != nil {
		return nil, err
	}

	return &QueueSink{queue: queue}, nil
}

func (s *QueueSink) Deliver(_ context.Context, event ctdf.TelemetryEvent) error {
	payload, err := json.Marshal(ctdf.NewTelemetryUpdateEvent(event))
	if err != nil {
		return err
	}

	return s.queue.PublishBytes(payload)
}
