// Package redis holds the Redis client and the distributed lock that keeps
// batch runs from overlapping.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration. An empty Host disables Redis.
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c Config) Enabled() bool {
	return c.Host != ""
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Client wraps the Redis client with logging.
type Client struct {
	rdb    *redis.Client
	logger ectologger.Logger
}

// NewClient connects to Redis and pings it.
func NewClient(ctx context.Context, cfg Config, logger ectologger.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	client, err := NewClientFromRedis(ctx, rdb, logger)
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr(), err)
	}

	logger.Infof("Connected to Redis at %s", cfg.Addr())
	return client, nil
}

// NewClientFromRedis wraps an existing go-redis client.
func NewClientFromRedis(ctx context.Context, rdb *redis.Client, logger ectologger.Logger) (*Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Client{
		rdb:    rdb,
		logger: logger,
	}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Redis returns the underlying client.
func (c *Client) Redis() *redis.Client {
	return c.rdb
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
