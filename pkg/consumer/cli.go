package consumer

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/travigo/telemetria/pkg/config"
	"github.com/travigo/telemetria/pkg/redis_client"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "queue",
		Usage: "Maintenance for the redis backed report and event queues",
		Subcommands: []*cli.Command{
			{
				Name:  "cleaner",
				Usage: "return unacked reports held by dead consumers to their queues",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "interval",
						Value: defaultCleanerInterval,
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}
					if err := redis_client.Connect(cfg.Redis); err != nil {
						return err
					}

					ctx, cancel := context.WithCancel(c.Context)
					defer cancel()

					go RunCleaner(ctx, redis_client.QueueConnection, c.Duration("interval"))

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
					defer signal.Stop(signals)

					<-signals // wait for signal
					go func() {
						<-signals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					cancel()
					<-redis_client.QueueConnection.StopAllConsuming() // wait for all Consume() calls to finish

					return nil
				},
			},
			{
				Name:  "stats",
				Usage: "print the size of every queue",
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}
					if err := redis_client.Connect(cfg.Redis); err != nil {
						return err
					}

					queues, err := redis_client.QueueConnection.GetOpenQueues()
					if err != nil {
						return err
					}

					stats, err := redis_client.QueueConnection.CollectStats(queues)
					if err != nil {
						return err
					}

					for name, queue := range stats.QueueStats {
						log.Info().
							Str("queue", name).
							Int64("ready", queue.ReadyCount).
							Int64("rejected", queue.RejectedCount).
							Int64("unacked", queue.UnackedCount()).
							Msg("Queue stats")
					}

					return nil
				},
			},
		},
	}
}
