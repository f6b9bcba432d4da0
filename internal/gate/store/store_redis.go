package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"efti-gate/internal/gate/models"
)

const (
	allGatesKey   = "efti:gates:all"
	gateKeyPrefix = "efti:gate:"
)

// Backing is the directory the cache reads through to.
type Backing interface {
	Save(ctx context.Context, gate models.Gate) error
	FindByID(ctx context.Context, gateID string) (*models.Gate, error)
	List(ctx context.Context) ([]models.Gate, error)
}

// RedisCache is a read-through cache over the gate directory. Cache failures
// degrade to the backing store.
type RedisCache struct {
	backing Backing
	client  redis.UniversalClient
	ttl     time.Duration
	logger  *slog.Logger
}

func NewRedisCache(backing Backing, client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{backing: backing, client: client, ttl: ttl, logger: logger}
}

// Save writes through and drops cached entries.
func (c *RedisCache) Save(ctx context.Context, gate models.Gate) error {
	if err := c.backing.Save(ctx, gate); err != nil {
		return err
	}
	if err := c.client.Del(ctx, allGatesKey, gateKey(gate.ID)).Err(); err != nil {
		c.logger.WarnContext(ctx, "gate cache invalidation failed", "gate_id", gate.ID, "error", err)
	}
	return nil
}

func (c *RedisCache) FindByID(ctx context.Context, gateID string) (*models.Gate, error) {
	var cached models.Gate
	if c.get(ctx, gateKey(gateID), &cached) {
		return &cached, nil
	}
	gate, err := c.backing.FindByID(ctx, gateID)
	if err != nil {
		return nil, err
	}
	c.set(ctx, gateKey(gateID), gate)
	return gate, nil
}

func (c *RedisCache) List(ctx context.Context) ([]models.Gate, error) {
	var cached []models.Gate
	if c.get(ctx, allGatesKey, &cached) {
		return cached, nil
	}
	gates, err := c.backing.List(ctx)
	if err != nil {
		return nil, err
	}
	c.set(ctx, allGatesKey, gates)
	return gates, nil
}

// FindByCountries filters the cached directory listing.
func (c *RedisCache) FindByCountries(ctx context.Context, countries []models.CountryIndicator) ([]models.Gate, error) {
	all, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	want := make(map[models.CountryIndicator]struct{}, len(countries))
	for _, country := range countries {
		want[country] = struct{}{}
	}
	var out []models.Gate
	for _, g := range all {
		if _, ok := want[g.Country]; ok {
			out = append(out, g)
		}
	}
	return out, nil
}

func (c *RedisCache) get(ctx context.Context, key string, dst any) bool {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "gate cache read failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.logger.WarnContext(ctx, "gate cache entry corrupt", "key", key, "error", err)
		return false
	}
	return true
}

func (c *RedisCache) set(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "gate cache write failed", "key", key, "error", err)
	}
}

func gateKey(gateID string) string {
	return gateKeyPrefix + strings.ToLower(gateID)
}
