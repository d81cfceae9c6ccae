package redis

import (
	"context"

	"github.com/redis/go-redis/v9"

	"meridian/internal/adapters/config"
	"meridian/pkg/errors"
)

// Client owns the Redis connection used for the insight archive
type Client struct {
	rdb *redis.Client
}

// NewClient connects and verifies the connection within ctx
func NewClient(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "ping redis")
	}

	return &Client{rdb: rdb}, nil
}

// Client returns the underlying client
func (c *Client) Client() *redis.Client {
	return c.rdb
}

// Close closes the connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Health checks Redis connectivity
func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
