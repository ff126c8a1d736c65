// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/Ramsey-B/clover/pkg/batch"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/logging"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/tracing/exporters"
)

type Config struct {
	AppName         string        `env:"APP_NAME" envDefault:"clover"`
	Version         string        `env:"APP_VERSION" envDefault:"dev"`
	Port            int           `env:"PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	StartupAttempts int           `env:"STARTUP_ATTEMPTS" envDefault:"5"`

	Log      LogConfig      `envPrefix:"LOG_"`
	Database DatabaseConfig `envPrefix:"DB_"`
	Redis    RedisConfig    `envPrefix:"REDIS_"`
	Kafka    KafkaConfig    `envPrefix:"KAFKA_"`
	Auth     AuthConfig     `envPrefix:"AUTH_"`
	Tracing  TracingConfig  `envPrefix:"TRACING_"`
	Match    MatchConfig    `envPrefix:"MATCH_"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Pretty bool   `env:"PRETTY" envDefault:"false"`
}

type DatabaseConfig struct {
	Host            string        `env:"HOST" envDefault:"localhost"`
	Port            string        `env:"PORT" envDefault:"5432"`
	User            string        `env:"USER" envDefault:"clover"`
	Password        string        `env:"PASSWORD"`
	Name            string        `env:"NAME" envDefault:"clover"`
	SSLMode         string        `env:"SSL_MODE" envDefault:"disable"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"30m"`
	MigrationsPath  string        `env:"MIGRATIONS_PATH" envDefault:"db/pg"`
	AutoMigrate     bool          `env:"AUTO_MIGRATE" envDefault:"true"`
	AutoRollback    bool          `env:"AUTO_ROLLBACK" envDefault:"false"`
}

// RedisConfig is optional; an empty host disables the batch lock.
type RedisConfig struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

// KafkaConfig is optional; no brokers disables event publishing.
type KafkaConfig struct {
	Brokers      []string      `env:"BROKERS" envSeparator:","`
	Topic        string        `env:"TOPIC" envDefault:"clover.events"`
	BatchSize    int           `env:"BATCH_SIZE" envDefault:"100"`
	BatchTimeout time.Duration `env:"BATCH_TIMEOUT" envDefault:"10ms"`
	RequiredAcks int           `env:"REQUIRED_ACKS" envDefault:"-1"`
	Compression  string        `env:"COMPRESSION" envDefault:"snappy"`
}

// AuthConfig enables OIDC bearer authentication when Issuer is set.
type AuthConfig struct {
	Issuer   string `env:"ISSUER"`
	ClientID string `env:"CLIENT_ID"`
}

type TracingConfig struct {
	Enabled  bool   `env:"ENABLED" envDefault:"false"`
	Endpoint string `env:"ENDPOINT" envDefault:"localhost:4317"`
	Protocol string `env:"PROTOCOL" envDefault:"grpc"`
	Insecure bool   `env:"INSECURE" envDefault:"true"`
	// Headers is "key=value" pairs separated by commas.
	Headers string        `env:"HEADERS"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

type MatchConfig struct {
	BatchSize        int           `env:"BATCH_SIZE" envDefault:"500"`
	Workers          int           `env:"WORKERS" envDefault:"8"`
	BatchTimeout     time.Duration `env:"BATCH_TIMEOUT" envDefault:"5m"`
	LockTTL          time.Duration `env:"LOCK_TTL" envDefault:"1m"`
	ScheduleInterval time.Duration `env:"SCHEDULE_INTERVAL" envDefault:"0s"`
}

// Load reads an optional .env file, then the environment.
func Load(dotenvFiles ...string) (*Config, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, file := range dotenvFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", file, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d is out of range", c.Port))
	}
	if c.Match.BatchSize <= 0 {
		errs = append(errs, errors.New("MATCH_BATCH_SIZE must be positive"))
	}
	if c.Match.Workers <= 0 {
		errs = append(errs, errors.New("MATCH_WORKERS must be positive"))
	}
	if c.Match.BatchTimeout <= 0 {
		errs = append(errs, errors.New("MATCH_BATCH_TIMEOUT must be positive"))
	}
	if c.Auth.Issuer != "" && c.Auth.ClientID == "" {
		errs = append(errs, errors.New("AUTH_CLIENT_ID is required when AUTH_ISSUER is set"))
	}
	if c.Tracing.Protocol != exporters.ProtocolGRPC && c.Tracing.Protocol != exporters.ProtocolHTTP {
		errs = append(errs, fmt.Errorf("TRACING_PROTOCOL %q must be grpc or http", c.Tracing.Protocol))
	}
	return errors.Join(errs...)
}

func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{AppName: c.AppName, Level: c.Log.Level, Pretty: c.Log.Pretty}
}

func (c *Config) DatabaseConfig() database.Config {
	return database.Config{
		Host:            c.Database.Host,
		Port:            c.Database.Port,
		User:            c.Database.User,
		Password:        c.Database.Password,
		Name:            c.Database.Name,
		SSLMode:         c.Database.SSLMode,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
	}
}

func (c *Config) MigrationConfig() *database.MigrationConfig {
	return &database.MigrationConfig{
		MigrationFolderPath: c.Database.MigrationsPath,
		AutoRollback:        c.Database.AutoRollback,
	}
}

func (c *Config) RedisConfig() redis.Config {
	return redis.Config{Host: c.Redis.Host, Port: c.Redis.Port, Password: c.Redis.Password, DB: c.Redis.DB}
}

func (c *Config) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}

func (c *Config) ProducerConfig() kafka.ProducerConfig {
	return kafka.ProducerConfig{
		Brokers:      c.Kafka.Brokers,
		Topic:        c.Kafka.Topic,
		BatchSize:    c.Kafka.BatchSize,
		BatchTimeout: c.Kafka.BatchTimeout,
		RequiredAcks: c.Kafka.RequiredAcks,
		Compression:  c.Kafka.Compression,
	}
}

func (c *Config) TracingConfig() tracing.Config {
	return tracing.Config{
		ServiceName: c.AppName,
		Enabled:     c.Tracing.Enabled,
		OTLP: exporters.OTLPConfig{
			Endpoint: c.Tracing.Endpoint,
			Protocol: c.Tracing.Protocol,
			Insecure: c.Tracing.Insecure,
			Headers:  exporters.ParseHeaders(c.Tracing.Headers),
			Timeout:  c.Tracing.Timeout,
		},
	}
}

func (c *Config) BatchConfig() batch.Config {
	return batch.Config{
		BatchSize: c.Match.BatchSize,
		Timeout:   c.Match.BatchTimeout,
		LockTTL:   c.Match.LockTTL,
	}
}
