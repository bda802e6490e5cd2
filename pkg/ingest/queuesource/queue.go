package queuesource

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"
	"github.com/travigo/telemetria/pkg/config"
	"github.com/travigo/telemetria/pkg/consumer"
)

// Source consumes raw reports that another process has pushed onto a redis
// backed rmq queue.
type Source struct {
	Connection rmq.Connection
	Config     config.QueueConfig

	connected atomic.Bool
}

func New(connection rmq.Connection, cfg config.QueueConfig) *Source {
	return &Source{
		Connection: connection,
		Config:     cfg,
	}
}

func (s *Source) Name() string {
	return "queue"
}

func (s *Source) Connected() bool {
	return s.connected.Load()
}

func (s *Source) Run(ctx context.Context, out chan<- []byte) error {
	redisConsumer := &consumer.RedisConsumer{
		Connection:      s.Connection,
		QueueName:       s.Config.Name,
		NumberConsumers: s.Config.NumberConsumers,
		BatchSize:       s.Config.BatchSize,
		Timeout:         time.Second,
		Consumer:        NewBatchConsumer(ctx, out),
	}

	if err := redisConsumer.Start(); err != nil {
		return err
	}
	s.connected.Store(true)

	<-ctx.Done()

	s.connected.Store(false)
	redisConsumer.Stop()

	return nil
}

type BatchConsumer struct {
	ctx context.Context
	out chan<- []byte
}

func NewBatchConsumer(ctx context.Context, out chan<- []byte) *BatchConsumer {
	return &BatchConsumer{ctx: ctx, out: out}
}

// Consume hands every delivery to the pipeline and acks it once accepted.
// Deliveries left over at shutdown stay unacked for the cleaner to return.
func (c *BatchConsumer) Consume(batch rmq.Deliveries) {
	for _, delivery := range batch {
		select {
		case c.out <- []byte(delivery.Payload()):
			if err := delivery.Ack(); err != nil {
				log.Error().Err(err).Msg("Failed to ack telemetry report")
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// Publish pushes a single payload onto the queue.
func Publish(connection rmq.Connection, queueName string, payload []byte) error {
	queue, err := connection.OpenQueue(queueName)
	if err != nil {
		return err
	}

	return queue.PublishBytes(payload)
}
