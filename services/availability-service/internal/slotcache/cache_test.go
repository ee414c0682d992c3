package slotcache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/consultbook/services/availability-service/internal/availability"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func sampleSlots() []availability.Slot {
	at := time.Date(2025, 6, 16, 9, 0, 0, 0, time.UTC)
	return []availability.Slot{
		{Time: "09:00", Available: true, StartsAt: at},
		{Time: "09:30", Available: false, Status: availability.SlotTaken, StartsAt: at.Add(30 * time.Minute)},
	}
}

func TestCacheRoundTrip(t *testing.T) {
	_, rdb := setupTestRedis(t)
	c := New(rdb, time.Minute)
	ctx := context.Background()
	k := Key{ProfessionalID: "pro-1", Date: "2025-06-16", Duration: 30 * time.Minute}

	_, gen, ok, err := c.Get(ctx, k)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, gen)

	require.NoError(t, c.Set(ctx, k, gen, sampleSlots()))
	got, _, ok, err := c.Get(ctx, k)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, availability.SlotStatus(""), got[0].Status)
	assert.Equal(t, availability.SlotTaken, got[1].Status)
	assert.True(t, sampleSlots()[1].StartsAt.Equal(got[1].StartsAt))

	other := k
	other.Duration = time.Hour
	_, _, ok, err = c.Get(ctx, other)
	require.NoError(t, err)
	assert.False(t, ok, "durations are cached separately")
}

func TestCacheInvalidate(t *testing.T) {
	_, rdb := setupTestRedis(t)
	c := New(rdb, time.Minute)
	ctx := context.Background()
	k := Key{ProfessionalID: "pro-1", Date: "2025-06-16", Duration: 30 * time.Minute}
	k2 := Key{ProfessionalID: "pro-2", Date: "2025-06-16", Duration: 30 * time.Minute}

	require.NoError(t, c.Set(ctx, k, 0, sampleSlots()))
	require.NoError(t, c.Set(ctx, k2, 0, sampleSlots()))
	require.NoError(t, c.Invalidate(ctx, "pro-1"))

	_, gen, ok, err := c.Get(ctx, k)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.EqualValues(t, 1, gen)

	_, _, ok, err = c.Get(ctx, k2)
	require.NoError(t, err)
	assert.True(t, ok, "other professionals keep their cache")
}

func TestCacheSetUnderStaleGenerationIsNeverServed(t *testing.T) {
	_, rdb := setupTestRedis(t)
	c := New(rdb, time.Minute)
	ctx := context.Background()
	k := Key{ProfessionalID: "pro-1", Date: "2025-06-16", Duration: 30 * time.Minute}

	_, gen, ok, err := c.Get(ctx, k)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Invalidate(ctx, "pro-1"))
	require.NoError(t, c.Set(ctx, k, gen, sampleSlots()))

	_, _, ok, err = c.Get(ctx, k)
	require.NoError(t, err)
	assert.False(t, ok, "a list computed before the invalidation must not be served")
}

func TestCacheTTL(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	c := New(rdb, 30*time.Second)
	ctx := context.Background()
	k := Key{ProfessionalID: "pro-1", Date: "2025-06-16", Duration: 30 * time.Minute}

	require.NoError(t, c.Set(ctx, k, 0, sampleSlots()))
	mr.FastForward(31 * time.Second)
	_, _, ok, err := c.Get(ctx, k)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNilCacheIsNoop(t *testing.T) {
	var c *Cache
	ctx := context.Background()
	_, _, ok, err := c.Get(ctx, Key{})
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, c.Set(ctx, Key{}, 0, nil))
	assert.NoError(t, c.Invalidate(ctx, "x"))
}

func TestReadyCheck(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	assert.NoError(t, ReadyCheck(rdb)(context.Background()))
	mr.Close()
	assert.Error(t, ReadyCheck(rdb)(context.Background()))
	assert.Error(t, ReadyCheck(nil)(context.Background()))
}
