package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "cache:"

// Redis backs the Cache interface with a shared Redis instance, selected by
// configuration when REDIS_ADDR is set. Redis expires entries itself, so
// TotalEntries always equals ActiveEntries here. Values round-trip through
// JSON, which means numeric values come back as float64.
type Redis struct {
	rdb *redis.Client
}

func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

func (c *Redis) Get(ctx context.Context, key string) (any, bool) {
	raw, err := c.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		slog.Warn("redis cache get failed", "key", key, "error", err)
		return nil, false
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		slog.Warn("redis cache value decode failed", "key", key, "error", err)
		return nil, false
	}
	return v, true
}

func (c *Redis) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	b, err := json.Marshal(value)
	if err != nil {
		slog.Warn("redis cache value encode failed", "key", key, "error", err)
		return
	}

	if err := c.rdb.Set(ctx, redisKeyPrefix+key, b, ttl).Err(); err != nil {
		slog.Warn("redis cache set failed", "key", key, "error", err)
	}
}

func (c *Redis) Delete(ctx context.Context, key string) {
	if err := c.rdb.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		slog.Warn("redis cache delete failed", "key", key, "error", err)
	}
}

func (c *Redis) InvalidatePrefix(ctx context.Context, prefix string) int {
	removed := 0
	iter := c.rdb.Scan(ctx, 0, redisKeyPrefix+prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			slog.Warn("redis cache invalidate delete failed", "key", iter.Val(), "error", err)
			continue
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		slog.Warn("redis cache invalidate scan failed", "prefix", prefix, "error", err)
	}
	return removed
}

func (c *Redis) Clear(ctx context.Context) {
	c.InvalidatePrefix(ctx, "")
}

func (c *Redis) Stats(ctx context.Context) Stats {
	total := 0
	iter := c.rdb.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		total++
	}
	if err := iter.Err(); err != nil {
		slog.Warn("redis cache stats scan failed", "error", err)
	}
	return Stats{TotalEntries: total, ActiveEntries: total}
}
