package diagnose

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "aura:diagnose:"

// Cache stores classifications by input text. Failures are treated as misses.
type Cache interface {
	Get(ctx context.Context, text string) (*Result, bool)
	Set(ctx context.Context, text string, r *Result)
}

// CacheKey returns the cache key for text.
func CacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// RedisCache is a Cache backed by Redis.
type RedisCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisCache connects lazily to addr. A zero ttl stores entries without expiry.
func NewRedisCache(addr, password string, db int, ttl time.Duration, logger *zap.Logger) *RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisCache{rdb: rdb, ttl: ttl, logger: logger}
}

// Get looks up text.
func (c *RedisCache) Get(ctx context.Context, text string) (*Result, bool) {
	data, err := c.rdb.Get(ctx, CacheKey(text)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Debug("diagnose cache get failed", zap.Error(err))
		}
		return nil, false
	}
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		c.logger.Debug("diagnose cache entry unreadable", zap.Error(err))
		return nil, false
	}
	return &r, true
}

// Set stores r for text.
func (c *RedisCache) Set(ctx context.Context, text string, r *Result) {
	data, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, CacheKey(text), data, c.ttl).Err(); err != nil {
		c.logger.Debug("diagnose cache set failed", zap.Error(err))
	}
}

// Ping checks the Redis connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis client.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
