package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/travigo/telemetria/pkg/util"
	"gopkg.in/yaml.v3"
)

const EnvironmentPrefix = "TELEMETRIA_"

const (
	StoreFile  = "file"
	StoreRedis = "redis"
	StoreMongo = "mongo"

	SourceMQTT  = "mqtt"
	SourceSTOMP = "stomp"
	SourceQueue = "queue"
)

type Config struct {
	Listen    string `yaml:"listen" validate:"required"`
	StaticDir string `yaml:"static_dir"`

	Ledger    LedgerConfig    `yaml:"ledger"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Source    SourceConfig    `yaml:"source"`
	Broadcast BroadcastConfig `yaml:"broadcast"`

	Redis   RedisConfig   `yaml:"redis"`
	Mongo   MongoConfig   `yaml:"mongo"`
	Elastic ElasticConfig `yaml:"elastic"`
	Auth    AuthConfig    `yaml:"auth"`
}

type LedgerConfig struct {
	Store           string `yaml:"store" validate:"oneof=file redis mongo"`
	Path            string `yaml:"path" validate:"required_if=Store file"`
	RedisKey        string `yaml:"redis_key"`
	MongoCollection string `yaml:"mongo_collection"`
	MongoDocument   string `yaml:"mongo_document"`
	MaxLength       int    `yaml:"max_length" validate:"min=1"`
}

type TelemetryConfig struct {
	// StopNameFormat is used for stops reported without a display name, e.g.
	// "Parada %s".
	StopNameFormat string `yaml:"stop_name_format" validate:"required,contains=%s"`

	// Filter is an optional expression evaluated against every valid report.
	// Reports for which it is false are dropped before commit.
	Filter string `yaml:"filter"`

	DefaultHistoryLimit int `yaml:"default_history_limit" validate:"min=1,ltefield=MaxHistoryLimit"`
	MaxHistoryLimit     int `yaml:"max_history_limit" validate:"min=1"`
}

type SourceConfig struct {
	Kind  string      `yaml:"kind" validate:"oneof=mqtt stomp queue"`
	MQTT  MQTTConfig  `yaml:"mqtt"`
	STOMP STOMPConfig `yaml:"stomp"`
	Queue QueueConfig `yaml:"queue"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker" validate:"required"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic" validate:"required"`
	QoS      int    `yaml:"qos" validate:"min=0,max=2"`
	ClientID string `yaml:"client_id"`
}

type STOMPConfig struct {
	Address     string `yaml:"address" validate:"required"`
	Login       string `yaml:"login"`
	Passcode    string `yaml:"passcode"`
	Destination string `yaml:"destination" validate:"required"`
}

type QueueConfig struct {
	Name            string `yaml:"name" validate:"required"`
	NumberConsumers int    `yaml:"number_consumers" validate:"min=1"`
	BatchSize       int64  `yaml:"batch_size" validate:"min=1"`
}

type BroadcastConfig struct {
	BufferSize int `yaml:"buffer_size" validate:"min=1"`

	RedisChannel string `yaml:"redis_channel"`
	EventsQueue  string `yaml:"events_queue"`
	Archive      bool   `yaml:"archive"`
	ArchiveIndex string `yaml:"archive_index" validate:"required_if=Archive true"`
}

type RedisConfig struct {
	Address  string `yaml:"address" validate:"required"`
	Password string `yaml:"password"`
	Database int    `yaml:"database" validate:"min=0"`
}

type MongoConfig struct {
	Connection string `yaml:"connection" validate:"required"`
	Database   string `yaml:"database" validate:"required"`
}

type ElasticConfig struct {
	Address  string `yaml:"address"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type AuthConfig struct {
	Domain   string `yaml:"domain"`
	Audience string `yaml:"audience" validate:"required_with=Domain"`
}

func (c *Config) UsesRedis() bool {
	return c.Ledger.Store == StoreRedis ||
		c.Source.Kind == SourceQueue ||
		c.Broadcast.RedisChannel != "" ||
		c.Broadcast.EventsQueue != ""
}

func (c *Config) UsesMongo() bool {
	return c.Ledger.Store == StoreMongo
}

func Default() Config {
	return Config{
		Listen: ":3000",
		Ledger: LedgerConfig{
			Store:           StoreFile,
			Path:            "data/telemetria.json",
			RedisKey:        "telemetria:historico",
			MongoCollection: "telemetria",
			MongoDocument:   "historico",
			MaxLength:       100,
		},
		Telemetry: TelemetryConfig{
			StopNameFormat:      "Stop %s",
			DefaultHistoryLimit: 10,
			MaxHistoryLimit:     100,
		},
		Source: SourceConfig{
			Kind: SourceMQTT,
			MQTT: MQTTConfig{
				Broker: "tcp://localhost:1883",
				Topic:  "onibus/telemetria",
				QoS:    1,
			},
			STOMP: STOMPConfig{
				Address:     "localhost:61613",
				Destination: "/queue/onibus.telemetria",
			},
			Queue: QueueConfig{
				Name:            "telemetria-reports",
				NumberConsumers: 1,
				BatchSize:       10,
			},
		},
		Broadcast: BroadcastConfig{
			BufferSize:   64,
			ArchiveIndex: "telemetria-events",
		},
		Redis: RedisConfig{
			Address: "localhost:6379",
		},
		Mongo: MongoConfig{
			Connection: "mongodb://localhost:27017/",
			Database:   "telemetria",
		},
		Elastic: ElasticConfig{
			Address: "http://localhost:9200",
		},
	}
}

// Load builds the configuration from the defaults, the optional YAML file at
// path, a .env file in the working directory and finally TELEMETRIA_*
// environment variables, in that order of precedence.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("Failed to load .env file")
	}

	if err := ApplyEnvironment(&cfg, util.GetEnvironmentVariables()); err != nil {
		return cfg, err
	}

	if err := Validate(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func Validate(cfg Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}

// ApplyEnvironment overrides cfg with any non empty variable from env.
func ApplyEnvironment(cfg *Config, env map[string]string) error {
	// PORT is honoured for platforms that only hand out a port number
	if env["PORT"] != "" {
		cfg.Listen = ":" + env["PORT"]
	}

	stringValues := map[string]*string{
		"LISTEN":     &cfg.Listen,
		"STATIC_DIR": &cfg.StaticDir,

		"LEDGER_STORE":            &cfg.Ledger.Store,
		"LEDGER_PATH":             &cfg.Ledger.Path,
		"LEDGER_REDIS_KEY":        &cfg.Ledger.RedisKey,
		"LEDGER_MONGO_COLLECTION": &cfg.Ledger.MongoCollection,
		"LEDGER_MONGO_DOCUMENT":   &cfg.Ledger.MongoDocument,

		"STOP_NAME_FORMAT": &cfg.Telemetry.StopNameFormat,
		"FILTER":           &cfg.Telemetry.Filter,

		"SOURCE":                  &cfg.Source.Kind,
		"MQTT_BROKER":             &cfg.Source.MQTT.Broker,
		"MQTT_USERNAME":           &cfg.Source.MQTT.Username,
		"MQTT_PASSWORD":           &cfg.Source.MQTT.Password,
		"MQTT_TOPIC":              &cfg.Source.MQTT.Topic,
		"MQTT_CLIENT_ID":          &cfg.Source.MQTT.ClientID,
		"STOMP_ADDRESS":           &cfg.Source.STOMP.Address,
		"STOMP_LOGIN":             &cfg.Source.STOMP.Login,
		"STOMP_PASSCODE":          &cfg.Source.STOMP.Passcode,
		"STOMP_DESTINATION":       &cfg.Source.STOMP.Destination,
		"QUEUE_NAME":              &cfg.Source.Queue.Name,
		"BROADCAST_REDIS_CHANNEL": &cfg.Broadcast.RedisChannel,
		"BROADCAST_EVENTS_QUEUE":  &cfg.Broadcast.EventsQueue,
		"BROADCAST_ARCHIVE_INDEX": &cfg.Broadcast.ArchiveIndex,

		"REDIS_ADDRESS":      &cfg.Redis.Address,
		"REDIS_PASSWORD":     &cfg.Redis.Password,
		"MONGODB_CONNECTION": &cfg.Mongo.Connection,
		"MONGODB_DATABASE":   &cfg.Mongo.Database,

		"ELASTICSEARCH_ADDRESS":  &cfg.Elastic.Address,
		"ELASTICSEARCH_USERNAME": &cfg.Elastic.Username,
		"ELASTICSEARCH_PASSWORD": &cfg.Elastic.Password,
	}
	for key, target := range stringValues {
		if value := env[EnvironmentPrefix+key]; value != "" {
			*target = value
		}
	}

	intValues := map[string]*int{
		"LEDGER_MAX_LENGTH":      &cfg.Ledger.MaxLength,
		"HISTORY_DEFAULT_LIMIT":  &cfg.Telemetry.DefaultHistoryLimit,
		"HISTORY_MAX_LIMIT":      &cfg.Telemetry.MaxHistoryLimit,
		"MQTT_QOS":               &cfg.Source.MQTT.QoS,
		"QUEUE_NUMBER_CONSUMERS": &cfg.Source.Queue.NumberConsumers,
		"BROADCAST_BUFFER_SIZE":  &cfg.Broadcast.BufferSize,
		"REDIS_DATABASE":         &cfg.Redis.Database,
	}
	for key, target := range intValues {
		value := env[EnvironmentPrefix+key]
		if value == "" {
			continue
		}

		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvironmentPrefix, key, err)
		}
		*target = n
	}

	if value := env[EnvironmentPrefix+"QUEUE_BATCH_SIZE"]; value != "" {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("%sQUEUE_BATCH_SIZE: %w", EnvironmentPrefix, err)
		}
		cfg.Source.Queue.BatchSize = n
	}

	if value := env[EnvironmentPrefix+"BROADCAST_ARCHIVE"]; value != "" {
		cfg.Broadcast.Archive = isYes(value)
	}

	// Auth keeps the variable names the auth0 middleware documents
	if env["AUTH0_DOMAIN"] != "" {
		cfg.Auth.Domain = env["AUTH0_DOMAIN"]
	}
	if env["AUTH0_AUDIENCE"] != "" {
		cfg.Auth.Audience = env["AUTH0_AUDIENCE"]
	}

	return nil
}

func isYes(value string) bool {
	switch strings.ToUpper(value) {
	case "YES", "TRUE", "1":
		return true
	}

	return false
}
