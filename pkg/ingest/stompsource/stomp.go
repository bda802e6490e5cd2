package stompsource

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-stomp/stomp/v3"
	"github.com/rs/zerolog/log"
	"github.com/travigo/telemetria/pkg/config"
)

var errSubscriptionClosed = errors.New("stomp subscription closed")

// Source subscribes to a STOMP destination, reconnecting with exponential
// backoff whenever the connection drops.
type Source struct {
	Config config.STOMPConfig

	connected atomic.Bool
}

func New(cfg config.STOMPConfig) *Source {
	return &Source{Config: cfg}
}

func (s *Source) Name() string {
	return "stomp"
}

func (s *Source) Connected() bool {
	return s.connected.Load()
}

func (s *Source) Run(ctx context.Context, out chan<- []byte) error {
	retryBackoff := backoff.NewExponentialBackOff()
	retryBackoff.MaxInterval = 30 * time.Second
	retryBackoff.MaxElapsedTime = 0

	operation := func() error {
		return s.consume(ctx, out, retryBackoff.Reset)
	}
	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).Str("address", s.Config.Address).Str("retry", wait.String()).Msg("STOMP connection failed")
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(retryBackoff, ctx), notify)
	if ctx.Err() != nil {
		return nil
	}

	return err
}

func (s *Source) consume(ctx context.Context, out chan<- []byte, connected func()) error {
	conn, err := dial(s.Config)
	if err != nil {
		return err
	}
	defer conn.Disconnect()

	subscription, err := conn.Subscribe(s.Config.Destination, stomp.AckAuto)
	if err != nil {
		return err
	}

	s.connected.Store(true)
	defer s.connected.Store(false)
	connected()

	log.Info().Str("address", s.Config.Address).Str("destination", s.Config.Destination).Msg("Subscribed to STOMP destination")

	for {
		select {
		case <-ctx.Done():
			subscription.Unsubscribe()
			return backoff.Permanent(ctx.Err())
		case message, ok := <-subscription.C:
			if !ok {
				return errSubscriptionClosed
			}
			if message.Err != nil {
				return message.Err
			}

			select {
			case out <- message.Body:
			case <-ctx.Done():
				return backoff.Permanent(ctx.Err())
			}
		}
	}
}

func dial(cfg config.STOMPConfig) (*stomp.Conn, error) {
	var options []func(*stomp.Conn) error
	if cfg.Login != "" {
		options = append(options, stomp.ConnOpt.Login(cfg.Login, cfg.Passcode))
	}

	return stomp.Dial("tcp", cfg.Address, options...)
}

// Publish sends a single payload to the configured destination.
func Publish(cfg config.STOMPConfig, payload []byte) error {
	conn, err := dial(cfg)
	if err != nil {
		return err
	}
	defer conn.Disconnect()

	return conn.Send(cfg.Destination, "application/json", payload)
}
