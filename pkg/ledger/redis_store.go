package ledger

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/redis/go-redis/v9"
	"github.com/travigo/telemetria/pkg/ctdf"
)

const DefaultRedisKey = "telemetria:historico"

// RedisStore keeps the JSON array under a single redis key with no expiry.
type RedisStore struct {
	cache *cache.Cache[string]
	key   string
}

func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}

	return &RedisStore{
		cache: cache.New[string](redisstore.NewRedis(client)),
		key:   key,
	}
}

func (s *RedisStore) Load(ctx context.Context) ([]ctdf.TelemetryEvent, error) {
	value, err := s.cache.Get(ctx, s.key)
	if isNotFound(err) {
		events := []ctdf.TelemetryEvent{}
		return events, s.Save(ctx, events)
	} else if err != nil {
		return nil, err
	}

	var events []ctdf.TelemetryEvent
	if err := json.Unmarshal([]byte(value), &events); err != nil {
		return nil, err
	}
	if events == nil {
		events = []ctdf.TelemetryEvent{}
	}

	return events, nil
}

func (s *RedisStore) Save(ctx context.Context, events []ctdf.TelemetryEvent) error {
	if events == nil {
		events = []ctdf.TelemetryEvent{}
	}

	data, err := json.Marshal(events)
	if err != nil {
		return err
	}

	return s.cache.Set(ctx, s.key, string(data))
}

// isNotFound matches the gocache miss error whether it is returned by value or
// by pointer, and the raw redis miss underneath it.
func isNotFound(err error) bool {
	if err == nil {
		return false
	}

	var notFound store.NotFound
	var notFoundPointer *store.NotFound

	return errors.As(err, &notFound) || errors.As(err, &notFoundPointer) || errors.Is(err, redis.Nil)
}
