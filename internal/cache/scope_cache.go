// Package cache keeps resolved visibility sets in Redis, keyed by user and roster version, so a
// roster change invalidates every entry without explicit purges.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ScopeCache stores visible user id lists.
type ScopeCache interface {
	Get(ctx context.Context, userID, rosterVersion string) ([]string, bool, error)
	Set(ctx context.Context, userID, rosterVersion string, ids []string) error
}

type redisScopeCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisScopeCache returns a cache; a nil client or non-positive ttl disables caching.
func NewRedisScopeCache(client *redis.Client, prefix string, ttl time.Duration) ScopeCache {
	if client == nil || ttl <= 0 {
		return noopScopeCache{}
	}
	if prefix == "" {
		prefix = "taskboard"
	}
	return &redisScopeCache{client: client, prefix: prefix, ttl: ttl}
}

// ScopeKey builds the Redis key for a cached scope.
func ScopeKey(prefix, userID, rosterVersion string) string {
	return prefix + ":scope:" + userID + ":" + rosterVersion
}

func (c *redisScopeCache) Get(ctx context.Context, userID, rosterVersion string) ([]string, bool, error) {
	payload, err := c.client.Get(ctx, ScopeKey(c.prefix, userID, rosterVersion)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var ids []string
	if err := json.Unmarshal(payload, &ids); err != nil {
		return nil, false, err
	}
	return ids, true, nil
}

func (c *redisScopeCache) Set(ctx context.Context, userID, rosterVersion string, ids []string) error {
	payload, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, ScopeKey(c.prefix, userID, rosterVersion), payload, c.ttl).Err()
}

type noopScopeCache struct{}

func (noopScopeCache) Get(context.Context, string, string) ([]string, bool, error) {
	return nil, false, nil
}

func (noopScopeCache) Set(context.Context, string, string, []string) error { return nil }
