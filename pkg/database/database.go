package database

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/travigo/telemetria/pkg/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoInstance struct {
	Client   *mongo.Client
	Database *mongo.Database
}

var Instance *MongoInstance

func Connect(cfg config.MongoConfig) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Connection))
	if err != nil {
		return err
	}

	if err := client.Ping(ctx, nil); err != nil {
		return err
	}

	Instance = &MongoInstance{
		Client:   client,
		Database: client.Database(cfg.Database),
	}

	log.Info().Str("database", cfg.Database).Msg("MongoDB client setup")

	return nil
}

func GetCollection(collectionName string) *mongo.Collection {
	return Instance.Database.Collection(collectionName)
}

func Disconnect(ctx context.Context) error {
	if Instance == nil {
		return nil
	}

	return Instance.Client.Disconnect(ctx)
}
