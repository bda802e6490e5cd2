package broadcast

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/travigo/telemetria/pkg/ctdf"
)

// RedisChannelSink publishes every event on a redis pub/sub channel so
// processes outside this one can observe the stream.
type RedisChannelSink struct {
	Client  *redis.Client
	Channel string
}

func NewRedisChannelSink(client *redis.Client, channel string) *RedisChannelSink {
	if channel == "" {
		channel = string(ctdf.EventTypeTelemetryUpdate)
	}

	return &RedisChannelSink{
		Client:  client,
		Channel: channel,
	}
}

func (s *RedisChannelSink) Deliver(ctx context.Context, event ctdf.TelemetryEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return s.Client.Publish(ctx, s.Channel, payload).Err()
}
