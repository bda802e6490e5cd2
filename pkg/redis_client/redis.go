package redis_client

import (
	"context"

	"github.com/adjust/rmq/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/travigo/telemetria/pkg/config"
)

var Client *redis.Client
var QueueConnection rmq.Connection

const queueConnectionTag = "telemetria"

func Connect(cfg config.RedisConfig) error {
	options := &redis.Options{
		Addr: cfg.Address,
		DB:   cfg.Database,
	}
	if cfg.Password != "" {
		options.Password = cfg.Password
	}

	client := redis.NewClient(options)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return err
	}

	return UseClient(client)
}

// UseClient installs an already connected client, along with the rmq
// connection on top of it.
func UseClient(client *redis.Client) error {
	queueErrors := make(chan error, 10)
	queueConnection, err := rmq.OpenConnectionWithRedisClient(queueConnectionTag, client, queueErrors)
	if err != nil {
		return err
	}

	go func() {
		for err := range queueErrors {
			log.Error().Err(err).Msg("Queue connection error")
		}
	}()

	Client = client
	QueueConnection = queueConnection

	log.Info().Str("address", client.Options().Addr).Msg("Redis client setup")

	return nil
}
