package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"github.com/travigo/telemetria/pkg/api"
	"github.com/travigo/telemetria/pkg/broadcast"
	"github.com/travigo/telemetria/pkg/config"
	"github.com/travigo/telemetria/pkg/database"
	"github.com/travigo/telemetria/pkg/elastic_client"
	"github.com/travigo/telemetria/pkg/ingest/mqttsource"
	"github.com/travigo/telemetria/pkg/ingest/queuesource"
	"github.com/travigo/telemetria/pkg/ingest/stompsource"
	"github.com/travigo/telemetria/pkg/ledger"
	"github.com/travigo/telemetria/pkg/redis_client"
	"github.com/travigo/telemetria/pkg/telemetry"
	"github.com/urfave/cli/v2"
)

const shutdownTimeout = 15 * time.Second

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "ingest",
		Usage: "Bus telemetry ingestion server",
		Subcommands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "consume telemetry reports and serve the query API",
				Action: run,
			},
			{
				Name:  "publish-test",
				Usage: "send sample reports to the configured source",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "vehicle", Value: 1},
					&cli.StringFlag{Name: "route", Value: "101"},
					&cli.Int64Flag{Name: "stop", Value: 10, Usage: "first current stop id"},
					&cli.Float64Flag{Name: "distance", Value: 1.5},
					&cli.Float64Flag{Name: "minutes", Value: 4},
					&cli.IntFlag{Name: "count", Value: 1, Usage: "number of reports, the stop advances every second report"},
					&cli.DurationFlag{Name: "interval", Value: time.Second},
					&cli.StringFlag{Name: "raw", Usage: "send this payload verbatim instead of a generated report"},
				},
				Action: publishTest,
			},
		},
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	if cfg.UsesRedis() {
		if err := redis_client.Connect(cfg.Redis); err != nil {
			return err
		}
	}

	history, err := ledger.Open(ctx, cfg)
	if history == nil {
		return err
	} else if err != nil {
		log.Error().Err(err).Msg("Stored history could not be loaded, starting empty")
	} else {
		log.Info().Int("events", history.Len()).Str("store", cfg.Ledger.Store).Msg("Loaded stored history")
	}

	hub := broadcast.NewHub(cfg.Broadcast.BufferSize)

	pipeline, err := NewPipelineFromConfig(cfg, history, hub)
	if err != nil {
		return err
	}

	if err := AttachSinks(ctx, cfg, hub); err != nil {
		return err
	}

	source, err := NewSource(cfg)
	if err != nil {
		return err
	}

	inbound := make(chan []byte, cfg.Broadcast.BufferSize)

	sourceCtx, stopSource := context.WithCancel(ctx)
	defer stopSource()
	pipelineCtx, stopPipeline := context.WithCancel(ctx)
	defer stopPipeline()

	var sourceWorker, pipelineWorker, webWorker conc.WaitGroup
	pipelineWorker.Go(func() {
		pipeline.Run(pipelineCtx, inbound)
	})
	sourceWorker.Go(func() {
		if err := source.Run(sourceCtx, inbound); err != nil {
			log.Error().Err(err).Str("source", source.Name()).Msg("Telemetry source stopped")
		}
	})
	webWorker.Go(func() {
		err := api.SetupServer(ctx, cfg.Listen, api.Dependencies{
			Config:          cfg,
			Ledger:          history,
			Hub:             hub,
			Upstream:        source,
			PipelineStats:   func() any { return pipeline.Stats() },
			QueueConnection: redis_client.QueueConnection,
		})
		if err != nil {
			log.Error().Err(err).Msg("Web server stopped")
		}
	})

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	<-signals // wait for signal
	go func() {
		<-signals // hard exit on second signal (in case shutdown gets stuck)
		os.Exit(1)
	}()

	log.Info().Msg("Shutting down")

	// reports already accepted from the source are committed before anything
	// downstream goes away
	stopSource()
	sourceWorker.Wait()
	stopPipeline()
	pipelineWorker.Wait()
	hub.Close()

	cancel()
	webWorker.Wait()

	if redis_client.QueueConnection != nil {
		<-redis_client.QueueConnection.StopAllConsuming() // wait for all Consume() calls to finish
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := elastic_client.WaitUntilQueueEmpty(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to flush archive indexer")
	}
	if err := database.Disconnect(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to disconnect from MongoDB")
	}

	return nil
}

func publishTest(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	if cfg.Source.Kind == config.SourceQueue {
		if err := redis_client.Connect(cfg.Redis); err != nil {
			return err
		}
	}

	for i := 0; i < c.Int("count"); i++ {
		if i > 0 {
			time.Sleep(c.Duration("interval"))
		}

		payload := []byte(c.String("raw"))
		if len(payload) == 0 {
			stop := c.Int64("stop") + int64(i/2)

			payload, err = json.Marshal(map[string]any{
				telemetry.FieldVehicleID:  c.Int64("vehicle"),
				telemetry.FieldRouteID:    c.String("route"),
				telemetry.FieldStopID:     stop,
				telemetry.FieldNextStopID: stop + 1,
				telemetry.FieldDistanceKm: c.Float64("distance"),
				telemetry.FieldMinutes:    c.Float64("minutes"),
			})
			if err != nil {
				return err
			}
		}

		if err := publish(c.Context, cfg, payload); err != nil {
			return fmt.Errorf("publish report %d: %w", i+1, err)
		}

		log.Info().Str("source", cfg.Source.Kind).Bytes("report", payload).Msg("Published test report")
	}

	return nil
}

func publish(ctx context.Context, cfg config.Config, payload []byte) error {
	switch cfg.Source.Kind {
	case config.SourceSTOMP:
		return stompsource.Publish(cfg.Source.STOMP, payload)
	case config.SourceQueue:
		return queuesource.Publish(redis_client.QueueConnection, cfg.Source.Queue.Name, payload)
	default:
		return mqttsource.Publish(ctx, cfg.Source.MQTT, payload)
	}
}
