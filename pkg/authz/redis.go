package authz

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisActorCache stores materialized actors in Redis as JSON
type RedisActorCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisActorCache creates a Redis-backed actor cache
func NewRedisActorCache(client *redis.Client, ttl time.Duration) *RedisActorCache {
	return &RedisActorCache{
		client: client,
		ttl:    ttl,
		prefix: "fieldops:actor:",
	}
}

func (c *RedisActorCache) key(userID int64) string {
	return fmt.Sprintf("%s%d", c.prefix, userID)
}

// Get returns the cached actor, or nil on a miss
func (c *RedisActorCache) Get(ctx context.Context, userID int64) (*Actor, error) {
	key := c.key(userID)

	data, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil // Cache miss
	} else if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var actor Actor
	if err := json.Unmarshal([]byte(data), &actor); err != nil {
		// If unmarshal fails, delete corrupt data
		c.client.Del(ctx, key)
		return nil, fmt.Errorf("failed to unmarshal actor: %w", err)
	}

	return &actor, nil
}

// Set stores the actor with the configured TTL
func (c *RedisActorCache) Set(ctx context.Context, actor *Actor) error {
	data, err := json.Marshal(actor)
	if err != nil {
		return fmt.Errorf("failed to marshal actor: %w", err)
	}
	return c.client.Set(ctx, c.key(actor.ID), data, c.ttl).Err()
}

// Delete removes the cached actor
func (c *RedisActorCache) Delete(ctx context.Context, userID int64) error {
	return c.client.Del(ctx, c.key(userID)).Err()
}
