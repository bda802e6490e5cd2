package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/travigo/telemetria/pkg/broadcast"
	"github.com/travigo/telemetria/pkg/config"
	"github.com/travigo/telemetria/pkg/elastic_client"
	"github.com/travigo/telemetria/pkg/ingest/mqttsource"
	"github.com/travigo/telemetria/pkg/ingest/queuesource"
	"github.com/travigo/telemetria/pkg/ingest/stompsource"
	"github.com/travigo/telemetria/pkg/ledger"
	"github.com/travigo/telemetria/pkg/redis_client"
	"github.com/travigo/telemetria/pkg/telemetry"
)

// NewSource returns the upstream selected by cfg.Source.Kind. The queue source
// needs redis_client to be connected first.
func NewSource(cfg config.Config) (Source, error) {
	switch cfg.Source.Kind {
	case config.SourceMQTT, "":
		return mqttsource.New(cfg.Source.MQTT), nil
	case config.SourceSTOMP:
		return stompsource.New(cfg.Source.STOMP), nil
	case config.SourceQueue:
		if redis_client.QueueConnection == nil {
			return nil, errors.New("queue source needs a redis connection")
		}
		return queuesource.New(redis_client.QueueConnection, cfg.Source.Queue), nil
	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Source.Kind)
	}
}

// NewPipelineFromConfig builds the pipeline with the configured stop name
// format and optional filter.
func NewPipelineFromConfig(cfg config.Config, history *ledger.Ledger, hub *broadcast.Hub) (*Pipeline, error) {
	pipeline := NewPipeline(telemetry.Normalizer{StopNameFormat: cfg.Telemetry.StopNameFormat}, history, hub)

	if cfg.Telemetry.Filter != "" {
		filter, err := NewFilter(cfg.Telemetry.Filter)
		if err != nil {
			return nil, err
		}
		pipeline.Filter = filter

		log.Info().Str("filter", filter.String()).Msg("Telemetry filter enabled")
	}

	return pipeline, nil
}

// AttachSinks subscribes every sink enabled in cfg.Broadcast to hub.
func AttachSinks(ctx context.Context, cfg config.Config, hub *broadcast.Hub) error {
	if cfg.Broadcast.RedisChannel != "" {
		if redis_client.Client == nil {
			return errors.New("redis channel sink needs a redis connection")
		}

		hub.Attach(ctx, "redis-channel", broadcast.NewRedisChannelSink(redis_client.Client, cfg.Broadcast.RedisChannel))
		log.Info().Str("channel", cfg.Broadcast.RedisChannel).Msg("Publishing events to redis channel")
	}

	if cfg.Broadcast.EventsQueue != "" {
		if redis_client.QueueConnection == nil {
			return errors.New("events queue sink needs a redis connection")
		}

		sink, err := broadcast.NewQueueSink(redis_client.QueueConnection, cfg.Broadcast.EventsQueue)
		if err != nil {
			return err
		}

		hub.Attach(ctx, "events-queue", sink)
		log.Info().Str("queue", cfg.Broadcast.EventsQueue).Msg("Publishing events to queue")
	}

	if cfg.Broadcast.Archive {
		if err := elastic_client.Connect(cfg.Elastic, true); err != nil {
			return err
		}

		hub.Attach(ctx, "archive", broadcast.NewArchiveSink(elastic_client.BulkIndexer(), cfg.Broadcast.ArchiveIndex))
		log.Info().Str("index", cfg.Broadcast.ArchiveIndex).Msg("Archiving new events to Elasticsearch")
	}

	return nil
}
