package consumer

import (
	"context"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"
)

const defaultCleanerInterval = time.Minute

// RunCleaner returns deliveries held by dead consumers back to their queues
// every interval until ctx is done.
func RunCleaner(ctx context.Context, connection rmq.Connection, interval time.Duration) {
	cleaner := rmq.NewCleaner(connection)

	log.Info().Str("interval", interval.String()).Msg("Starting queue cleaner process")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			returned, err := cleaner.Clean()
			if err != nil {
				log.Error().Err(err).Msg("Failed to clean")
				continue
			}

			if returned != 0 {
				log.Info().Msgf("Cleaned %d records", returned)
			}
		}
	}
}
