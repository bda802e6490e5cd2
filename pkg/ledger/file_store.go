package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/travigo/telemetria/pkg/ctdf"
)

// FileStore keeps the ledger as a single JSON array on disk, rewritten in full
// on every save.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (s *FileStore) Load(ctx context.Context) ([]ctdf.TelemetryEvent, error) {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Info().Str("path", s.Path).Msg("History file not found, creating an empty one")

		events := []ctdf.TelemetryEvent{}
		return events, s.Save(ctx, events)
	} else if err != nil {
		return nil, err
	}

	var events []ctdf.TelemetryEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("parse history file %s: %w", s.Path, err)
	}
	if events == nil {
		events = []ctdf.TelemetryEvent{}
	}

	log.Info().Str("path", s.Path).Int("records", len(events)).Msg("Loaded telemetry history")

	return events, nil
}

// Save writes to a temporary file next to the target and renames it over the
// old one so a crash never leaves a half written array behind.
func (s *FileStore) Save(_ context.Context, events []ctdf.TelemetryEvent) error {
	if events == nil {
		events = []ctdf.TelemetryEvent{}
	}

	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return err
	}

	temp, err := os.CreateTemp(filepath.Dir(s.Path), filepath.Base(s.Path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(temp.Name())

	if _, err := temp.Write(data); err != nil {
		temp.Close()
		return err
	}
	if err := temp.Close(); err != nil {
		return err
	}

	return os.Rename(temp.Name(), s.Path)
}
