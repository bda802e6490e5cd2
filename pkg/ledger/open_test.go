package ledger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/travigo/telemetria/pkg/config"
)

func TestOpenFileStore(t *testing.T) {
	cfg := config.Default()
	cfg.Ledger.Path = filepath.Join(t.TempDir(), "data", "telemetria.json")
	cfg.Ledger.MaxLength = 5

	history, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if history.Len() != 0 {
		t.Errorf("expected an empty ledger, got %d events", history.Len())
	}
	if _, err := os.Stat(cfg.Ledger.Path); err != nil {
		t.Errorf("history file should be created: %v", err)
	}

	for stop := 0; stop < 8; stop++ {
		history.Commit(context.Background(), parse(t, report(stop, stop+1, 1)))
	}
	if history.Len() != 5 {
		t.Errorf("configured max length not applied, length = %d", history.Len())
	}
}

func TestOpenStoreNeedsConnection(t *testing.T) {
	tests := []string{config.StoreRedis, config.StoreMongo, "sqlite"}

	for _, store := range tests {
		t.Run(store, func(t *testing.T) {
			cfg := config.Default().Ledger
			cfg.Store = store

			if _, err := OpenStore(cfg); err == nil {
				t.Errorf("OpenStore(%q) should fail without a connection", store)
			}
		})
	}
}
