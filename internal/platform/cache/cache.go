package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Cache wraps Redis with JSON marshalling and single-flight loading.
// A nil Cache degrades to calling the loader directly, so callers never
// depend on Redis being available for correctness.
type Cache struct {
	client *redis.Client
	group  singleflight.Group
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// GetOrCreate loads a cached value into dest, populating it from the loader
// on a miss. Concurrent callers for the same key share one loader execution;
// waiters re-check the cache once the flight lands.
func (c *Cache) GetOrCreate(ctx context.Context, key string, ttl time.Duration, dest interface{}, loader func(context.Context) (interface{}, error)) error {
	if loader == nil {
		return errors.New("cache: loader required")
	}
	if c == nil || c.client == nil {
		value, err := loader(ctx)
		if err != nil {
			return err
		}
		return rebind(value, dest)
	}

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	if !errors.Is(err, redis.Nil) {
		return err
	}

	raw, err, _ := c.do(ctx, key, ttl, loader)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func (c *Cache) do(ctx context.Context, key string, ttl time.Duration, loader func(context.Context) (interface{}, error)) ([]byte, error, bool) {
	ch := c.group.DoChan(key, func() (interface{}, error) {
		// Re-check: another flight may have populated the key while we
		// were queued behind it.
		if payload, err := c.client.Get(ctx, key).Bytes(); err == nil {
			return payload, nil
		}
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
			return nil, err
		}
		return raw, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err(), false
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err, res.Shared
		}
		return res.Val.([]byte), nil, res.Shared
	}
}

// Remove drops the given keys. Missing keys are not an error.
func (c *Cache) Remove(ctx context.Context, keys ...string) error {
	if c == nil || c.client == nil || len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// RemoveMatch drops every key matching the given glob pattern.
func (c *Cache) RemoveMatch(ctx context.Context, pattern string) error {
	if c == nil || c.client == nil {
		return nil
	}
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func rebind(value, dest interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
