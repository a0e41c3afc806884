package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	BrokerKafka = "kafka"
	BrokerRedis = "redis"
)

type Config struct {
	Env        string `env:"APP_ENV" envDefault:"dev"`
	Port       int    `env:"PORT" envDefault:"8080"`
	WorkerPort int    `env:"WORKER_PORT" envDefault:"8081"`

	DB    DBConfig
	DBURL string `env:"DB_URL"`

	Broker       string   `env:"BROKER" envDefault:"kafka"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"127.0.0.1:9092" envSeparator:","`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	// StreamMaxLen caps each Redis stream (approximately); 0 disables trimming.
	StreamMaxLen int64 `env:"STREAM_MAX_LEN" envDefault:"100000"`

	NotificationTopic   string        `env:"NOTIFICATION_TOPIC" envDefault:"notifications"`
	ConsumerGroup       string        `env:"CONSUMER_GROUP" envDefault:"notification-group"`
	NotificationDelayMS int64         `env:"NOTIFICATION_DELAY_MS" envDefault:"120000"`
	ConsumerConcurrency int           `env:"CONSUMER_CONCURRENCY" envDefault:"16"`
	// ConsumerName must survive restarts so pending stream entries find their owner again.
	ConsumerName  string        `env:"CONSUMER_NAME"`
	ClaimInterval time.Duration `env:"CLAIM_INTERVAL" envDefault:"30s"`

	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"250ms"`
	OutboxBatch        int           `env:"OUTBOX_BATCH" envDefault:"50"`
	PublishTimeout     time.Duration `env:"PUBLISH_TIMEOUT" envDefault:"10s"`

	OtelEnabled  bool   `env:"OTEL_ENABLED" envDefault:"false"`
	OtelEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
}

type DBConfig struct {
	Host     string `env:"DB_HOST" envDefault:"127.0.0.1"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"registrations"`
	Password string `env:"DB_PASSWORD" envDefault:"registrations"`
	Name     string `env:"DB_NAME" envDefault:"registrations"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
	MaxConns int32  `env:"DB_MAX_CONNS" envDefault:"5"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	// a missing .env is fine, real deployments set the environment directly
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.DBURL == "" {
		cfg.DBURL = buildDBURL(cfg.DB)
	}

	if cfg.ConsumerName == "" {
		host, err := os.Hostname()
		if err != nil {
			return Config{}, fmt.Errorf("resolve consumer name: %w", err)
		}
		cfg.ConsumerName = host
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	switch c.Broker {
	case BrokerKafka, BrokerRedis:
	default:
		return fmt.Errorf("unsupported BROKER %q (want %q or %q)", c.Broker, BrokerKafka, BrokerRedis)
	}

	if c.NotificationDelayMS < 0 {
		return fmt.Errorf("NOTIFICATION_DELAY_MS must not be negative")
	}

	if c.ConsumerConcurrency <= 0 {
		return fmt.Errorf("CONSUMER_CONCURRENCY must be positive")
	}

	if c.PublishTimeout <= 0 {
		return fmt.Errorf("PUBLISH_TIMEOUT must be positive")
	}

	if c.StreamMaxLen < 0 {
		return fmt.Errorf("STREAM_MAX_LEN must not be negative")
	}

	return nil
}

// NotificationDelay is the minimum time between a registration's creation and its notification.
func (c Config) NotificationDelay() time.Duration {
	return time.Duration(c.NotificationDelayMS) * time.Millisecond
}

// ClaimMinIdle is how long a stream entry stays pending before another consumer
// may take it over: the notification delay plus a margin for the send itself.
func (c Config) ClaimMinIdle() time.Duration {
	return c.NotificationDelay() + time.Minute
}

func buildDBURL(db DBConfig) string {
	return "postgres://" + db.User + ":" + db.Password + "@" + db.Host + ":" + db.Port + "/" + db.Name + "?sslmode=" + db.SSLMode
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}
