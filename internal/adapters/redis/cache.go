package redisad

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"placeharvest/internal/adapters/observability"
)

const keyPrefix = "placeharvest:"

// Cache stores JSON values in Redis under a fixed key prefix.
type Cache struct{ c *redis.Client }

func New(addr, pass string, db int) *Cache {
	return &Cache{c: redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})}
}

func (r *Cache) Ping(ctx context.Context) error { return r.c.Ping(ctx).Err() }

func (r *Cache) Close() error { return r.c.Close() }

func (r *Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	v, err := r.c.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.ObserveCache("redis", "miss")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	observability.ObserveCache("redis", "hit")
	return true, json.Unmarshal(v, dst)
}

func (r *Cache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	observability.ObserveCache("redis", "set")
	return r.c.Set(ctx, keyPrefix+key, b, time.Duration(ttlSec)*time.Second).Err()
}

func (r *Cache) Del(ctx context.Context, key string) error {
	observability.ObserveCache("redis", "del")
	return r.c.Del(ctx, keyPrefix+key).Err()
}

// DelPrefix removes every key starting with prefix and returns how many were
// dropped. SCAN keeps the server responsive on large keyspaces.
func (r *Cache) DelPrefix(ctx context.Context, prefix string) (int, error) {
	var cursor uint64
	n := 0
	for {
		keys, next, err := r.c.Scan(ctx, cursor, keyPrefix+prefix+"*", 200).Result()
		if err != nil {
			return n, err
		}
		if len(keys) > 0 {
			if err := r.c.Del(ctx, keys...).Err(); err != nil {
				return n, err
			}
			n += len(keys)
			observability.ObserveCache("redis", "del")
		}
		if next == 0 {
			return n, nil
		}
		cursor = next
	}
}
