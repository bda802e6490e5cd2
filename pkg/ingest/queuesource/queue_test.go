package queuesource

import (
	"context"
	"testing"

	"github.com/adjust/rmq/v5"
)

func TestBatchConsumerAcksAcceptedDeliveries(t *testing.T) {
	out := make(chan []byte, 2)
	batchConsumer := NewBatchConsumer(context.Background(), out)

	first := rmq.NewTestDeliveryString(`{"id_onibus":1}`)
	second := rmq.NewTestDeliveryString(`{"id_onibus":2}`)

	batchConsumer.Consume(rmq.Deliveries{first, second})

	if first.State != rmq.Acked || second.State != rmq.Acked {
		t.Errorf("deliveries should be acked, got %v and %v", first.State, second.State)
	}
	if payload := <-out; string(payload) != `{"id_onibus":1}` {
		t.Errorf("unexpected first payload %s", payload)
	}
	if payload := <-out; string(payload) != `{"id_onibus":2}` {
		t.Errorf("unexpected second payload %s", payload)
	}
}

func TestBatchConsumerLeavesDeliveriesOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batchConsumer := NewBatchConsumer(ctx, make(chan []byte))
	delivery := rmq.NewTestDeliveryString(`{"id_onibus":1}`)

	batchConsumer.Consume(rmq.Deliveries{delivery})

	if delivery.State != rmq.Unacked {
		t.Errorf("delivery should stay unacked, got %v", delivery.State)
	}
}

func TestPublish(t *testing.T) {
	connection := rmq.NewTestConnection()

	if err := Publish(connection, "telemetria-reports", []byte(`{"id_onibus":1}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if delivery := connection.GetDelivery("telemetria-reports", 0); delivery != `{"id_onibus":1}` {
		t.Errorf("unexpected delivery %q", delivery)
	}
}
