package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/travigo/telemetria/pkg/consumer"
	"github.com/travigo/telemetria/pkg/ingest"
	"github.com/travigo/telemetria/pkg/ledger"
	"github.com/urfave/cli/v2"

	_ "time/tzdata"
)

func main() {
	if os.Getenv("TELEMETRIA_LOG_FORMAT") != "JSON" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	if os.Getenv("TELEMETRIA_DEBUG") == "YES" {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	app := &cli.App{
		Name:        "telemetria",
		Description: "Bus telemetry ingestion, history and realtime broadcast server",

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to a YAML config file",
				EnvVars: []string{"TELEMETRIA_CONFIG"},
			},
		},

		Commands: []*cli.Command{
			ingest.RegisterCLI(),
			ledger.RegisterCLI(),
			consumer.RegisterCLI(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal().Err(err).Send()
	}
}
