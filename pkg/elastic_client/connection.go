package elastic_client

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/rs/zerolog/log"
	"github.com/travigo/telemetria/pkg/config"
)

var Client *elasticsearch.Client
var bulkIndexer esutil.BulkIndexer

func Connect(cfg config.ElasticConfig, required bool) error {
	if cfg.Address == "" && !required {
		log.Info().Msg("Skipping Elasticsearch setup")
		return nil
	} else if cfg.Address == "" && required {
		return errors.New("elasticsearch address not set")
	}

	retryBackoff := backoff.NewExponentialBackOff()

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.Address},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: http.DefaultTransport.(*http.Transport).Clone(),

		RetryOnStatus: []int{502, 503, 504, 429},

		RetryBackoff: func(i int) time.Duration {
			if i == 1 {
				retryBackoff.Reset()
			}
			return retryBackoff.NextBackOff()
		},
		MaxRetries: 5,
	})
	if err != nil {
		return err
	}

	if _, err := es.Info(); err != nil {
		return err
	}

	Client = es

	bulkIndexer, err = esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client:        es,
		FlushInterval: 15 * time.Second,
	})
	if err != nil {
		return err
	}

	log.Info().Msgf("Elasticsearch client setup for %s", cfg.Address)

	return nil
}

// BulkIndexer is nil until Connect has succeeded.
func BulkIndexer() esutil.BulkIndexer {
	return bulkIndexer
}

func WaitUntilQueueEmpty(ctx context.Context) error {
	if bulkIndexer == nil {
		return nil
	}

	return bulkIndexer.Close(ctx)
}
