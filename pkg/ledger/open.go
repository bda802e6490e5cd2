package ledger

import (
	"context"
	"fmt"

	"github.com/travigo/telemetria/pkg/config"
	"github.com/travigo/telemetria/pkg/database"
	"github.com/travigo/telemetria/pkg/redis_client"
)

// OpenStore returns the Store selected by cfg. The redis and mongo stores
// expect their client to be connected already.
func OpenStore(cfg config.LedgerConfig) (Store, error) {
	switch cfg.Store {
	case config.StoreFile, "":
		return NewFileStore(cfg.Path), nil
	case config.StoreRedis:
		if redis_client.Client == nil {
			return nil, fmt.Errorf("ledger store %q needs a redis connection", cfg.Store)
		}
		return NewRedisStore(redis_client.Client, cfg.RedisKey), nil
	case config.StoreMongo:
		if database.Instance == nil {
			return nil, fmt.Errorf("ledger store %q needs a mongodb connection", cfg.Store)
		}
		return NewMongoStore(database.GetCollection(cfg.MongoCollection), cfg.MongoDocument), nil
	default:
		return nil, fmt.Errorf("unknown ledger store %q", cfg.Store)
	}
}

// Open connects the backend selected by cfg when needed and loads the ledger
// from it. A failed load is returned alongside a usable, empty ledger.
func Open(ctx context.Context, cfg config.Config) (*Ledger, error) {
	if cfg.Ledger.Store == config.StoreRedis && redis_client.Client == nil {
		if err := redis_client.Connect(cfg.Redis); err != nil {
			return nil, err
		}
	}
	if cfg.UsesMongo() && database.Instance == nil {
		if err := database.Connect(cfg.Mongo); err != nil {
			return nil, err
		}
	}

	store, err := OpenStore(cfg.Ledger)
	if err != nil {
		return nil, err
	}

	history := New(store, WithMaxLength(cfg.Ledger.MaxLength))

	return history, history.Load(ctx)
}
