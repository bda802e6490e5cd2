package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/kr/pretty"
	"github.com/rs/zerolog/log"
	"github.com/travigo/telemetria/pkg/config"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "ledger",
		Usage: "Inspect or clear the stored telemetry history",
		Subcommands: []*cli.Command{
			{
				Name:  "inspect",
				Usage: "print the stored history, most recent first",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Value: 10,
						Usage: "number of events to print",
					},
				},
				Action: func(c *cli.Context) error {
					history, err := openFromCLI(c)
					if err != nil {
						return err
					}

					latest, err := history.Latest()
					if errors.Is(err, ErrEmptyLedger) {
						log.Info().Msg("History is empty")
						return nil
					}

					fmt.Printf("%d events stored, head recorded at %s\n", history.Len(), latest.RecordedAt)
					for _, event := range history.History(c.Int("limit")) {
						pretty.Println(event)
					}

					return nil
				},
			},
			{
				Name:  "reset",
				Usage: "clear the stored history",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "confirm the history should be cleared",
					},
				},
				Action: func(c *cli.Context) error {
					if !c.Bool("yes") {
						return errors.New("refusing to clear the history without --yes")
					}

					history, err := openFromCLI(c)
					if history == nil {
						return err
					} else if err != nil {
						log.Warn().Err(err).Msg("Stored history could not be read, clearing it anyway")
					}

					cleared := history.Len()
					if err := history.Reset(c.Context); err != nil {
						return err
					}

					log.Info().Int("cleared", cleared).Msg("History reset")

					return nil
				},
			},
		},
	}
}

func openFromCLI(c *cli.Context) (*Ledger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}

	return Open(ctx, cfg)
}
