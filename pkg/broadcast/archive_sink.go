package broadcast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/rs/zerolog/log"
	"github.com/travigo/telemetria/pkg/ctdf"
)

// ArchiveSink indexes stop transitions into weekly Elasticsearch indexes.
// Refreshes are skipped as they only move the vehicle between the same stops.
type ArchiveSink struct {
	Indexer     esutil.BulkIndexer
	IndexPrefix string
}

func NewArchiveSink(indexer esutil.BulkIndexer, indexPrefix string) *ArchiveSink {
	return &ArchiveSink{
		Indexer:     indexer,
		IndexPrefix: indexPrefix,
	}
}

func (s *ArchiveSink) IndexName(event ctdf.TelemetryEvent) string {
	year, week := event.RecordedAt.ISOWeek()

	return fmt.Sprintf("%s-%d-%02d", s.IndexPrefix, year, week)
}

func (s *ArchiveSink) Deliver(ctx context.Context, event ctdf.TelemetryEvent) error {
	if !event.IsNewEvent {
		return nil
	}

	document, err := json.Marshal(event)
	if err != nil {
		return err
	}

	indexName := s.IndexName(event)

	return s.Indexer.Add(ctx, esutil.BulkIndexerItem{
		Index:  indexName,
		Action: "index",
		Body:   bytes.NewReader(document),
		OnFailure: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
			if err != nil {
				log.Error().Err(err).Str("indexName", indexName).Msg("Failed to index document")
			} else {
				log.Error().Str("type", res.Error.Type).Str("reason", res.Error.Reason).Msg("Failed to index document")
			}
		},
	})
}
