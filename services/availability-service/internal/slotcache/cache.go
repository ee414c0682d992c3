package slotcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/md-rashed-zaman/consultbook/services/availability-service/internal/availability"
)

// Cache stores computed day slot lists in Redis. Each professional has a
// generation counter baked into every key; bumping it orphans all cached days
// of that professional at once, and the orphans age out through the TTL.
type Cache struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	prefix string
}

func New(rdb redis.Cmdable, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cache{rdb: rdb, ttl: ttl, prefix: "slots"}
}

// Key identifies one computed day.
type Key struct {
	ProfessionalID string
	Date           string
	Duration       time.Duration
}

func (c *Cache) generationKey(professionalID string) string {
	return c.prefix + ":" + professionalID + ":gen"
}

func (c *Cache) generation(ctx context.Context, professionalID string) (int64, error) {
	raw, err := c.rdb.Get(ctx, c.generationKey(professionalID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}

func (c *Cache) dayKey(k Key, gen int64) string {
	return fmt.Sprintf("%s:%s:g%d:%s:%d", c.prefix, k.ProfessionalID, gen, k.Date, int(k.Duration/time.Minute))
}

// Get returns the cached slots and whether they were present, together with
// the generation the lookup ran under. A caller that computes the day after a
// miss must hand that generation back to Set.
func (c *Cache) Get(ctx context.Context, k Key) ([]availability.Slot, int64, bool, error) {
	if c == nil {
		return nil, 0, false, nil
	}
	gen, err := c.generation(ctx, k.ProfessionalID)
	if err != nil {
		return nil, 0, false, fmt.Errorf("slot cache generation: %w", err)
	}
	raw, err := c.rdb.Get(ctx, c.dayKey(k, gen)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, gen, false, nil
	}
	if err != nil {
		return nil, gen, false, fmt.Errorf("slot cache get: %w", err)
	}
	var slots []availability.Slot
	if err := json.Unmarshal(raw, &slots); err != nil {
		return nil, gen, false, fmt.Errorf("slot cache decode: %w", err)
	}
	return slots, gen, true, nil
}

// Set stores slots under generation gen. If the professional was invalidated
// since gen was read, the entry lands under an orphaned key and is never served.
func (c *Cache) Set(ctx context.Context, k Key, gen int64, slots []availability.Slot) error {
	if c == nil {
		return nil
	}
	raw, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("slot cache encode: %w", err)
	}
	if err := c.rdb.Set(ctx, c.dayKey(k, gen), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("slot cache set: %w", err)
	}
	return nil
}

// Invalidate drops every cached day of the professional.
func (c *Cache) Invalidate(ctx context.Context, professionalID string) error {
	if c == nil {
		return nil
	}
	if err := c.rdb.Incr(ctx, c.generationKey(professionalID)).Err(); err != nil {
		return fmt.Errorf("slot cache invalidate: %w", err)
	}
	return nil
}

func ReadyCheck(rdb redis.Cmdable) func(context.Context) error {
	return func(ctx context.Context) error {
		if rdb == nil {
			return errors.New("redis not configured")
		}
		return rdb.Ping(ctx).Err()
	}
}
