// Package redis wraps the go-redis client used for the scoped-vault
// resolution cache.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"vaultcore/internal/platform/config"
)

// Client embeds the go-redis client so callers use its command surface
// directly; the wrapper only owns construction and teardown.
type Client struct {
	*redis.Client
}

// New connects and pings. Returns (nil, nil) when no URL is configured:
// the resolution cache is optional and the service runs without it.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{Client: client}, nil
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.Client.Close()
}
