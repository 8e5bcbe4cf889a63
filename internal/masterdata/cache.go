package masterdata

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// ListCache keeps the unpaged "/all" payloads in redis. Concurrent misses for
// the same key collapse into one repository load.
type ListCache struct {
	rdb   *redis.Client
	ttl   time.Duration
	group singleflight.Group
}

// NewListCache constructs the cache. A nil client disables caching.
func NewListCache(rdb *redis.Client, ttl time.Duration) *ListCache {
	return &ListCache{rdb: rdb, ttl: ttl}
}

const keyPrefix = "masterdata:all:"

// Get returns the cached JSON payload for key, filling it on a miss. Redis
// failures degrade to a direct load.
func (c *ListCache) Get(ctx context.Context, key string, fill func(context.Context) (any, error)) ([]byte, error) {
	if c == nil || c.rdb == nil {
		value, err := fill(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(value)
	}
	full := keyPrefix + key
	if data, err := c.rdb.Get(ctx, full).Bytes(); err == nil {
		return data, nil
	}
	result, err, _ := c.group.Do(full, func() (any, error) {
		value, err := fill(ctx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		_ = c.rdb.Set(ctx, full, data, c.ttl).Err()
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

// Invalidate drops the cached payloads for the given keys.
func (c *ListCache) Invalidate(ctx context.Context, keys ...string) {
	if c == nil || c.rdb == nil {
		return
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = keyPrefix + k
	}
	_ = c.rdb.Del(ctx, full...).Err()
}
