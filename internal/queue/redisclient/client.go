// Package redisclient carries registration events over Redis Streams.
package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	redisdb *redis.Client
	maxLen  int64
}

type Config struct {
	Addr     string
	Password string
	DB       int
	// PoolSize should cover the consumer concurrency plus the blocking read.
	PoolSize int
	// StreamMaxLen approximately caps every stream written by Send. Trimming
	// drops the oldest entries even when a lagging group has not read or
	// acknowledged them, so it must stay well above the expected backlog.
	// Zero leaves streams untrimmed.
	StreamMaxLen int64
}

func New(cfg Config) *Client {
	opts := &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}

	return &Client{redisdb: redis.NewClient(opts), maxLen: cfg.StreamMaxLen}
}

// Wrap adopts an existing go-redis client, e.g. one built from a URL in tests.
// Streams written through it are not trimmed.
func Wrap(redisdb *redis.Client) *Client {
	return &Client{redisdb: redisdb}
}

func (c *Client) Ping(ctx context.Context) error {
	if err := c.redisdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.redisdb.Close()
}
