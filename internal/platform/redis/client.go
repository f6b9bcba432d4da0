// Package redis connects the gate to the Redis instance shared by the gate
// directory cache and notification dedupe.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"efti-gate/internal/platform/config"
)

const (
	connectAttempts = 3
	connectBackoff  = 500 * time.Millisecond
)

// Client is the pooled connection used by the cache and the deduper.
type Client struct {
	*redis.Client
}

// New dials Redis and waits until it answers PING, retrying briefly so the
// gate can start alongside its Redis container. It returns nil, nil when no
// URL is configured; callers then keep their in-process fallbacks.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)
	if err := ping(ctx, client); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Client{Client: client}, nil
}

func ping(ctx context.Context, client *redis.Client) error {
	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		if err = client.Ping(ctx).Err(); err == nil {
			return nil
		}
		if attempt == connectAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("redis ping: %w", ctx.Err())
		case <-time.After(connectBackoff * time.Duration(attempt)):
		}
	}
	return fmt.Errorf("redis ping after %d attempts: %w", connectAttempts, err)
}

// Health reports whether Redis answers PING.
func (c *Client) Health(ctx context.Context) error {
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health: %w", err)
	}
	return nil
}
