package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/travigo/telemetria/pkg/broadcast"
	"github.com/travigo/telemetria/pkg/config"
	"github.com/travigo/telemetria/pkg/ledger"
	"github.com/travigo/telemetria/pkg/redis_client"
	"github.com/travigo/telemetria/pkg/telemetry"
)

func withRedis(t *testing.T) (*miniredis.Miniredis, rmq.TestConnection) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	connection := rmq.NewTestConnection()

	redis_client.Client = client
	redis_client.QueueConnection = connection
	t.Cleanup(func() {
		client.Close()
		redis_client.Client = nil
		redis_client.QueueConnection = nil
	})

	return server, connection
}

func TestNewSource(t *testing.T) {
	tests := []struct {
		kind    string
		name    string
		wantErr bool
	}{
		{config.SourceMQTT, "mqtt", false},
		{config.SourceSTOMP, "stomp", false},
		{config.SourceQueue, "", true},
		{"kafka", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			cfg := config.Default()
			cfg.Source.Kind = tt.kind

			source, err := NewSource(cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewSource() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && source.Name() != tt.name {
				t.Errorf("Name() = %q, want %q", source.Name(), tt.name)
			}
			if err == nil && source.Connected() {
				t.Error("a source should not report connected before Run")
			}
		})
	}
}

func TestNewSourceQueue(t *testing.T) {
	withRedis(t)

	cfg := config.Default()
	cfg.Source.Kind = config.SourceQueue

	source, err := NewSource(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if source.Name() != "queue" {
		t.Errorf("Name() = %q", source.Name())
	}
}

func TestNewPipelineFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Telemetry.StopNameFormat = "Parada %s"
	cfg.Telemetry.Filter = `route == "L1"`

	history := ledger.New(ledger.NewFileStore(t.TempDir() + "/telemetria.json"))
	pipeline, err := NewPipelineFromConfig(cfg, history, newTestHub(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pipeline.Filter == nil {
		t.Fatal("filter should be configured")
	}

	event, err := pipeline.Process(context.Background(), []byte(`{"id_onibus":1,"id_rota":"L1","id_parada":4,"id_proxima_parada":5,"distancia_km":2}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Location.CurrentStop.Name != "Parada 4" {
		t.Errorf("stop name = %q", event.Location.CurrentStop.Name)
	}

	cfg.Telemetry.Filter = "route =="
	if _, err := NewPipelineFromConfig(cfg, history, nil); err == nil {
		t.Error("expected an error for an invalid filter")
	}
}

func TestAttachSinksRequiresRedis(t *testing.T) {
	cfg := config.Default()
	cfg.Broadcast.RedisChannel = "telemetria-update"

	if err := AttachSinks(context.Background(), cfg, newTestHub(t)); err == nil {
		t.Error("expected an error without a redis connection")
	}
}

func TestAttachSinks(t *testing.T) {
	_, connection := withRedis(t)

	cfg := config.Default()
	cfg.Broadcast.RedisChannel = "telemetria-update"
	cfg.Broadcast.EventsQueue = "telemetria-events"

	hub := broadcast.NewHub(4)

	if err := AttachSinks(context.Background(), cfg, hub); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hub.Count() != 2 {
		t.Fatalf("expected 2 attached sinks, got %d", hub.Count())
	}

	event, err := telemetry.Normalizer{}.Parse([]byte(`{"id_onibus":1,"id_rota":"L1","id_parada":4,"id_proxima_parada":5,"distancia_km":2}`))
	if err != nil {
		t.Fatal(err)
	}
	event.IsNewEvent = true
	event.RecordedAt = time.Now()
	hub.Publish(event)

	// Close waits for the sinks to drain
	hub.Close()

	if deliveries := connection.GetDeliveries("telemetria-events"); len(deliveries) != 1 {
		t.Errorf("expected 1 queued event, got %d", len(deliveries))
	}
}
