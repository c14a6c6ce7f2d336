// Package cache is the tagged read-through cache behind every anonymous read
// path. Writers never populate it directly; they only invalidate tags after a
// successful mutation.
package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	entryPrefix = "cache:entry:"
	tagPrefix   = "cache:tag:"

	// Tag sets outlive their entries so late invalidations still find them.
	tagTTL = 24 * time.Hour
)

type Cache interface {
	// ReadThrough returns the cached bytes for key, or runs producer,
	// stores the result under key with the given tags, and returns it.
	ReadThrough(ctx context.Context, key string, tags []string, ttl time.Duration, producer func(ctx context.Context) ([]byte, error)) ([]byte, error)
	// Invalidate expires every entry associated with any of the tags.
	Invalidate(ctx context.Context, tags ...string) error
}

// RedisCache implements Cache with one string key per entry and one set per
// tag holding the entry keys it covers.
type RedisCache struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) ReadThrough(ctx context.Context, key string, tags []string, ttl time.Duration, producer func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	entryKey := entryPrefix + key

	data, err := c.client.Get(ctx, entryKey).Bytes()
	if err == nil {
		return data, nil
	}
	if err != redis.Nil {
		// A broken cache must not take reads down; fall through to the
		// producer and skip the write-back.
		log.Printf("cache: get %s: %v", entryKey, err)
		return producer(ctx)
	}

	data, err = producer(ctx)
	if err != nil {
		return nil, err
	}

	pipe := c.client.Pipeline()
	pipe.Set(ctx, entryKey, data, ttl)
	for _, tag := range tags {
		tagKey := tagPrefix + tag
		pipe.SAdd(ctx, tagKey, entryKey)
		pipe.Expire(ctx, tagKey, tagTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("cache: populate %s: %v", entryKey, err)
	}
	return data, nil
}

func (c *RedisCache) Invalidate(ctx context.Context, tags ...string) error {
	for _, tag := range tags {
		tagKey := tagPrefix + tag
		members, err := c.client.SMembers(ctx, tagKey).Result()
		if err != nil {
			return err
		}
		pipe := c.client.Pipeline()
		if len(members) > 0 {
			pipe.Del(ctx, members...)
		}
		pipe.Del(ctx, tagKey)
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Disabled bypasses caching entirely: every read is live, invalidation is a
// no-op. Used when no Redis address is configured.
type Disabled struct{}

func (Disabled) ReadThrough(ctx context.Context, _ string, _ []string, _ time.Duration, producer func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	return producer(ctx)
}

func (Disabled) Invalidate(context.Context, ...string) error { return nil }

// Through is the typed read-through helper the services use.
func Through[T any](ctx context.Context, c Cache, key string, tags []string, ttl time.Duration, producer func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	raw, err := c.ReadThrough(ctx, key, tags, ttl, func(ctx context.Context) ([]byte, error) {
		v, err := producer(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return zero, err
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, err
	}
	return out, nil
}

// InvalidateLogged invalidates tags after a successful mutation. Invalidation
// failure never fails the mutation; it is logged and the entries expire by TTL.
func InvalidateLogged(ctx context.Context, c Cache, tags ...string) {
	if err := c.Invalidate(ctx, tags...); err != nil {
		log.Printf("cache: invalidate %v: %v", tags, err)
	}
}
