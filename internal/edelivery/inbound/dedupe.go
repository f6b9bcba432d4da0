package inbound

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupeKeyPrefix = "efti:notification:"

// RedisDeduper marks notification ids in Redis so every gate replica sees them.
type RedisDeduper struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisDeduper(client redis.UniversalClient, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

// MarkNew records id and reports whether it was unseen.
func (d *RedisDeduper) MarkNew(ctx context.Context, id string) (bool, error) {
	ok, err := d.client.SetNX(ctx, dedupeKeyPrefix+id, "1", d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark notification: %w", err)
	}
	return ok, nil
}

// Release forgets id so a redelivery is handled again.
func (d *RedisDeduper) Release(ctx context.Context, id string) error {
	if err := d.client.Del(ctx, dedupeKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("release notification: %w", err)
	}
	return nil
}

// MemoryDeduper is the single-process variant. Expired ids are dropped when
// looked up, and the whole set is swept at most once per TTL.
type MemoryDeduper struct {
	mu        sync.Mutex
	ttl       time.Duration
	seen      map[string]time.Time
	nextSweep time.Time
	now       func() time.Time
}

func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	return &MemoryDeduper{ttl: ttl, seen: make(map[string]time.Time), now: time.Now}
}

func (d *MemoryDeduper) MarkNew(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	if !now.Before(d.nextSweep) {
		d.sweep(now)
	}
	if exp, ok := d.seen[id]; ok && now.Before(exp) {
		return false, nil
	}
	d.seen[id] = now.Add(d.ttl)
	return true, nil
}

func (d *MemoryDeduper) sweep(now time.Time) {
	for k, exp := range d.seen {
		if !now.Before(exp) {
			delete(d.seen, k)
		}
	}
	d.nextSweep = now.Add(d.ttl)
}

func (d *MemoryDeduper) Release(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, id)
	return nil
}
