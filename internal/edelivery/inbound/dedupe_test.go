package inbound

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDeduper(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	d := NewMemoryDeduper(time.Minute)
	d.now = func() time.Time { return now }

	fresh, err := d.MarkNew(ctx, "m-1")
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, _ = d.MarkNew(ctx, "m-1")
	assert.False(t, fresh, "second delivery is a duplicate")

	require.NoError(t, d.Release(ctx, "m-1"))
	fresh, _ = d.MarkNew(ctx, "m-1")
	assert.True(t, fresh, "released id is handled again")

	now = now.Add(2 * time.Minute)
	fresh, _ = d.MarkNew(ctx, "m-1")
	assert.True(t, fresh, "expired marker is forgotten")
}

func TestMemoryDeduperSweepsOncePerTTL(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	now := start
	d := NewMemoryDeduper(time.Minute)
	d.now = func() time.Time { return now }

	for _, id := range []string{"m-a", "m-b"} {
		fresh, err := d.MarkNew(ctx, id)
		require.NoError(t, err)
		require.True(t, fresh)
	}

	now = start.Add(30 * time.Second)
	_, _ = d.MarkNew(ctx, "m-c")
	assert.Len(t, d.seen, 3, "no sweep inside the window")

	now = start.Add(61 * time.Second)
	_, _ = d.MarkNew(ctx, "m-d")
	assert.Len(t, d.seen, 2, "expired ids are swept once the window passes")
	assert.Contains(t, d.seen, "m-c")
	assert.Contains(t, d.seen, "m-d")

	now = start.Add(91 * time.Second)
	fresh, _ := d.MarkNew(ctx, "m-c")
	assert.True(t, fresh, "an expired id is new on lookup before the next sweep")
}
