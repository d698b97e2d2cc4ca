package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a fixed-window counter shared by every API replica.
type Redis struct {
	rdb    *redis.Client
	prefix string
	limit  int64
	window time.Duration
}

// NewRedis allows limit requests per key in each window.
func NewRedis(rdb *redis.Client, prefix string, limit int, window time.Duration) *Redis {
	return &Redis{rdb: rdb, prefix: prefix, limit: int64(limit), window: window}
}

var _ Limiter = (*Redis)(nil)

func (r *Redis) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	k := r.prefix + key

	count, err := r.rdb.Incr(ctx, k).Result()
	if err != nil {
		return false, 0, fmt.Errorf("ratelimit incr: %w", err)
	}
	if count == 1 {
		if err := r.rdb.Expire(ctx, k, r.window).Err(); err != nil {
			return false, 0, fmt.Errorf("ratelimit expire: %w", err)
		}
	}
	if count <= r.limit {
		return true, 0, nil
	}

	ttl, err := r.rdb.TTL(ctx, k).Result()
	if err != nil {
		return false, 0, fmt.Errorf("ratelimit ttl: %w", err)
	}
	if ttl < 0 {
		// a previous Expire was lost; re-arm so the key cannot block forever
		_ = r.rdb.Expire(ctx, k, r.window).Err()
		ttl = r.window
	}
	return false, ttl, nil
}
