package slotcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalRoundTripAndInvalidate(t *testing.T) {
	c := NewLocal(16, time.Minute)
	ctx := context.Background()
	k := Key{ProfessionalID: "pro-1", Date: "2025-06-16", Duration: 30 * time.Minute}
	other := Key{ProfessionalID: "pro-2", Date: "2025-06-16", Duration: 30 * time.Minute}

	_, gen, ok, err := c.Get(ctx, k)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, k, gen, sampleSlots()))
	require.NoError(t, c.Set(ctx, other, 0, sampleSlots()))
	got, _, ok, err := c.Get(ctx, k)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleSlots(), got)

	got[0].Time = "mutated"
	again, _, _, _ := c.Get(ctx, k)
	assert.Equal(t, "09:00", again[0].Time, "callers get a copy")

	require.NoError(t, c.Invalidate(ctx, "pro-1"))
	_, _, ok, _ = c.Get(ctx, k)
	assert.False(t, ok)
	_, _, ok, _ = c.Get(ctx, other)
	assert.True(t, ok, "other professionals keep their entries")
}

func TestLocalEvictsBeyondSize(t *testing.T) {
	c := NewLocal(2, time.Minute)
	ctx := context.Background()
	for _, d := range []string{"2025-06-16", "2025-06-17", "2025-06-18"} {
		require.NoError(t, c.Set(ctx, Key{ProfessionalID: "pro-1", Date: d, Duration: time.Hour}, 0, sampleSlots()))
	}
	assert.Equal(t, 2, c.Len())
	_, _, ok, _ := c.Get(ctx, Key{ProfessionalID: "pro-1", Date: "2025-06-16", Duration: time.Hour})
	assert.False(t, ok)
}

func TestLocalDropsSetUnderStaleGeneration(t *testing.T) {
	c := NewLocal(16, time.Minute)
	ctx := context.Background()
	k := Key{ProfessionalID: "pro-1", Date: "2025-06-16", Duration: 30 * time.Minute}

	_, gen, _, err := c.Get(ctx, k)
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx, "pro-1"))
	require.NoError(t, c.Set(ctx, k, gen, sampleSlots()))

	_, _, ok, _ := c.Get(ctx, k)
	assert.False(t, ok)
	assert.Zero(t, c.Len(), "stale lists are not stored at all")
}
