// Package redis implements the bot's shared-state interfaces (event bus,
// order rate limit, single-trader lock) on go-redis/v9.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// ClientConfig holds connection parameters for the Redis client.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
	// KeyPrefix namespaces every key and channel, e.g. "emojibot:team-7".
	KeyPrefix string
}

// Client wraps a go-redis Client and the key namespace shared by every
// component built on it.
type Client struct {
	rdb    *redis.Client
	prefix string
}

// New connects to Redis and pings it. It fails if the server is unreachable.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	opts := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr, err)
	}

	return &Client{rdb: rdb, prefix: strings.TrimSuffix(cfg.KeyPrefix, ":")}, nil
}

// Ping checks the Redis connection.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Underlying returns the raw *redis.Client.
func (c *Client) Underlying() *redis.Client {
	return c.rdb
}

// Key joins parts under the client's prefix with ':'.
func (c *Client) Key(parts ...string) string {
	if c.prefix == "" {
		return strings.Join(parts, ":")
	}
	return c.prefix + ":" + strings.Join(parts, ":")
}
