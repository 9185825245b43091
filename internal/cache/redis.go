package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis shares cached bodies across API replicas. Redis failures degrade to
// cache misses.
type Redis struct {
	rdb    redis.UniversalClient
	ttl    time.Duration
	prefix string
	log    *slog.Logger
}

func NewRedis(rdb redis.UniversalClient, ttl time.Duration, log *slog.Logger) *Redis {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}

	return &Redis{rdb: rdb, ttl: ttl, prefix: "attendhub:cache:", log: log}
}

func (c *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.WarnContext(ctx, "cache get failed", "key", key, "err", err)
		}
		return nil, false
	}
	return b, true
}

func (c *Redis) Set(ctx context.Context, key string, val []byte) {
	if err := c.rdb.Set(ctx, c.prefix+key, val, c.ttl).Err(); err != nil {
		c.log.WarnContext(ctx, "cache set failed", "key", key, "err", err)
	}
}

func (c *Redis) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.prefix + k
	}

	if err := c.rdb.Del(ctx, full...).Err(); err != nil {
		c.log.WarnContext(ctx, "cache delete failed", "keys", keys, "err", err)
	}
}

// Generation reports false when redis cannot be read so callers skip caching.
func (c *Redis) Generation(ctx context.Context, key string) (int64, bool) {
	gen, err := c.rdb.Get(ctx, c.genKey(key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, true
		}
		c.log.WarnContext(ctx, "cache generation read failed", "key", key, "err", err)
		return 0, false
	}
	return gen, true
}

// Bump relies on INCR being atomic across replicas; old generations age out
// through the ttl.
func (c *Redis) Bump(ctx context.Context, key string) {
	if err := c.rdb.Incr(ctx, c.genKey(key)).Err(); err != nil {
		c.log.WarnContext(ctx, "cache generation bump failed", "key", key, "err", err)
	}
}

func (c *Redis) genKey(key string) string {
	return c.prefix + "gen:" + key
}
