package stompsource

import (
	"context"
	"testing"
	"time"

	"github.com/travigo/telemetria/pkg/config"
)

func TestRunStopsWhenContextIsCancelled(t *testing.T) {
	source := New(config.STOMPConfig{
		Address:     "127.0.0.1:1",
		Destination: "/queue/onibus.telemetria",
	})

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		result <- source.Run(ctx, make(chan []byte))
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-result:
		if err != nil {
			t.Errorf("Run() = %v, want nil after cancellation", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	if source.Connected() {
		t.Error("source should not report a connection")
	}
}

func TestPublishUnreachable(t *testing.T) {
	err := Publish(config.STOMPConfig{Address: "127.0.0.1:1", Destination: "/queue/test"}, []byte(`{}`))
	if err == nil {
		t.Error("expected a dial error")
	}
}
