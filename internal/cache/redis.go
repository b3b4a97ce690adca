// Package cache stores pipeline results in Redis with a TTL.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hunterwarburton/pantry/internal/core"
	"github.com/hunterwarburton/pantry/internal/logger"
)

// DefaultTTL is applied when Put is called with a non-positive ttl.
const DefaultTTL = 300 * time.Second

// RedisCache implements core.ResultCache.
type RedisCache struct {
	client *redis.Client
	log    logger.Sink
}

// NewRedisCache creates a cache for the Redis server at addr (host:port).
func NewRedisCache(addr, password string, log logger.Sink) *RedisCache {
	return NewRedisCacheFromClient(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	}), log)
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client, log logger.Sink) *RedisCache {
	if log == nil {
		log = logger.Nop()
	}
	return &RedisCache{client: client, log: log}
}

// Put JSON-encodes value and stores it under key for ttl.
func (c *RedisCache) Put(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: encoding %s: %v", core.ErrCache, key, err)
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: SET %s: %v", core.ErrCache, key, err)
	}
	c.log.Debugf("Cached %d bytes under %s for %s", len(data), key, ttl)
	return nil
}

// Ping checks the connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrCache, err)
	}
	return nil
}

// Close closes the client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
