package consumer

import (
	"errors"
	"fmt"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"
)

type RedisConsumer struct {
	Connection rmq.Connection
	QueueName  string

	NumberConsumers int
	BatchSize       int64

	Timeout time.Duration

	Consumer rmq.BatchConsumer

	queue rmq.Queue
}

func (c *RedisConsumer) Start() error {
	if c.Connection == nil {
		return errors.New("queue connection not set")
	}

	log.Info().Str("queue", c.QueueName).Int("consumers", c.NumberConsumers).Msg("Starting consumers")

	queue, err := c.Connection.OpenQueue(c.QueueName)
	if err != nil {
		return err
	}
	if err := queue.StartConsuming(int64(c.NumberConsumers)*c.BatchSize, time.Second); err != nil {
		return err
	}

	for i := 0; i < c.NumberConsumers; i++ {
		name := fmt.Sprintf("%s-%d", c.QueueName, i)
		if _, err := queue.AddBatchConsumer(name, c.BatchSize, c.Timeout, c.Consumer); err != nil {
			return err
		}
	}

	c.queue = queue

	return nil
}

// Stop waits for in-flight batches on this queue to finish.
func (c *RedisConsumer) Stop() {
	if c.queue == nil {
		return
	}

	<-c.queue.StopConsuming()
}
