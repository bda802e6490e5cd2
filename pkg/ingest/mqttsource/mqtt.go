package mqttsource

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/url"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
	"github.com/travigo/telemetria/pkg/config"
)

const (
	reconnectInterval = 5 * time.Second
	connectTimeout    = 30 * time.Second
	disconnectQuiesce = 250
)

// Source subscribes to the vehicle telemetry topic on an MQTT broker.
type Source struct {
	Config config.MQTTConfig

	connected atomic.Bool
}

func New(cfg config.MQTTConfig) *Source {
	return &Source{Config: cfg}
}

func (s *Source) Name() string {
	return "mqtt"
}

func (s *Source) Connected() bool {
	return s.connected.Load()
}

func (s *Source) Run(ctx context.Context, out chan<- []byte) error {
	options, err := s.clientOptions(ctx, out)
	if err != nil {
		return err
	}

	client := mqtt.NewClient(options)
	defer func() {
		client.Disconnect(disconnectQuiesce)
		s.connected.Store(false)
	}()

	// Connect keeps retrying in the background until the broker answers
	token := client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return err
		}
	case <-ctx.Done():
		return nil
	}

	<-ctx.Done()

	return nil
}

func (s *Source) clientOptions(ctx context.Context, out chan<- []byte) (*mqtt.ClientOptions, error) {
	options, err := baseOptions(s.Config)
	if err != nil {
		return nil, err
	}

	options.SetConnectRetry(true)
	options.SetConnectRetryInterval(reconnectInterval)

	options.SetOnConnectHandler(func(client mqtt.Client) {
		s.connected.Store(true)
		log.Info().Str("broker", s.Config.Broker).Msg("Connected to MQTT broker")

		token := client.Subscribe(s.Config.Topic, byte(s.Config.QoS), func(_ mqtt.Client, message mqtt.Message) {
			payload := append([]byte(nil), message.Payload()...)

			select {
			case out <- payload:
			case <-ctx.Done():
			}
		})

		go func() {
			<-token.Done()
			if err := token.Error(); err != nil {
				log.Error().Err(err).Str("topic", s.Config.Topic).Msg("Failed to subscribe to MQTT topic")
				return
			}

			log.Info().Str("topic", s.Config.Topic).Int("qos", s.Config.QoS).Msg("Subscribed to MQTT topic")
		}()
	})
	options.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.connected.Store(false)
		log.Warn().Err(err).Msg("MQTT connection lost")
	})
	options.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		log.Info().Str("broker", s.Config.Broker).Msg("Reconnecting to MQTT broker")
	})

	return options, nil
}

func baseOptions(cfg config.MQTTConfig) (*mqtt.ClientOptions, error) {
	broker, err := url.Parse(cfg.Broker)
	if err != nil {
		return nil, fmt.Errorf("parse mqtt broker: %w", err)
	}
	if broker.Host == "" {
		return nil, errors.New("mqtt broker must be a URL such as tcp://host:1883")
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = fmt.Sprintf("servidor-%08x", rand.Uint32())
	}

	options := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(reconnectInterval).
		SetConnectTimeout(connectTimeout)

	if cfg.Username != "" {
		options.SetUsername(cfg.Username)
		options.SetPassword(cfg.Password)
	}

	switch broker.Scheme {
	case "mqtts", "ssl", "tls":
		options.SetTLSConfig(&tls.Config{
			ServerName: broker.Hostname(),
			MinVersion: tls.VersionTLS12,
		})
	}

	return options, nil
}

// Publish sends a single payload to the configured topic and waits for the
// broker to accept it.
func Publish(ctx context.Context, cfg config.MQTTConfig, payload []byte) error {
	options, err := baseOptions(cfg)
	if err != nil {
		return err
	}
	options.SetClientID(fmt.Sprintf("publisher-%08x", rand.Uint32()))
	options.SetAutoReconnect(false)

	client := mqtt.NewClient(options)

	if err := wait(ctx, client.Connect()); err != nil {
		return fmt.Errorf("connect to mqtt broker: %w", err)
	}
	defer client.Disconnect(disconnectQuiesce)

	return wait(ctx, client.Publish(cfg.Topic, byte(cfg.QoS), false, payload))
}

func wait(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
