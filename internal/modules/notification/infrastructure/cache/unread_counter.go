// Package cache keeps per-user unread counters in Redis so unread-count
// reads and the counts pushed over the hub do not hit Postgres on every
// event. Postgres remains the source of truth; the counter is backfilled
// lazily on a miss.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "notifications:unread:"
	counterTTL = 24 * time.Hour
)

type UnreadCounter struct {
	rdb *redis.Client
}

func NewUnreadCounter(rdb *redis.Client) *UnreadCounter {
	return &UnreadCounter{rdb: rdb}
}

func (c *UnreadCounter) key(userID uuid.UUID) string {
	return keyPrefix + userID.String()
}

// Get returns the cached counter. The second return reports a cache hit.
func (c *UnreadCounter) Get(ctx context.Context, userID uuid.UUID) (int, bool, error) {
	val, err := c.rdb.Get(ctx, c.key(userID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("reading unread counter: %w", err)
	}
	if val < 0 {
		val = 0
	}
	return val, true, nil
}

// Set overwrites the counter, refreshing its TTL.
func (c *UnreadCounter) Set(ctx context.Context, userID uuid.UUID, count int) error {
	if count < 0 {
		count = 0
	}
	return c.rdb.Set(ctx, c.key(userID), count, counterTTL).Err()
}

// Increment bumps the counter if it is cached. On a miss it does nothing;
// incrementing an absent key would mint a counter with an unknown base, so
// the next Get backfills from Postgres instead.
func (c *UnreadCounter) Increment(ctx context.Context, userID uuid.UUID) error {
	key := c.key(userID)
	exists, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("checking unread counter: %w", err)
	}
	if exists == 0 {
		return nil
	}
	return c.rdb.Incr(ctx, key).Err()
}

// Decrement lowers the counter if it is cached, floored at zero.
func (c *UnreadCounter) Decrement(ctx context.Context, userID uuid.UUID) error {
	key := c.key(userID)
	exists, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("checking unread counter: %w", err)
	}
	if exists == 0 {
		return nil
	}
	val, err := c.rdb.Decr(ctx, key).Result()
	if err != nil {
		return err
	}
	if val < 0 {
		return c.rdb.Set(ctx, key, 0, counterTTL).Err()
	}
	return nil
}

// Reset pins the counter at zero.
func (c *UnreadCounter) Reset(ctx context.Context, userID uuid.UUID) error {
	return c.rdb.Set(ctx, c.key(userID), 0, counterTTL).Err()
}

// Invalidate drops the counter so the next read backfills from Postgres.
func (c *UnreadCounter) Invalidate(ctx context.Context, userID uuid.UUID) error {
	return c.rdb.Del(ctx, c.key(userID)).Err()
}
