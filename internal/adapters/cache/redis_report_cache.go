package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/kevin07696/marketplace-ledger/internal/config"
	"go.uber.org/zap"
)

const keyPrefix = "ledger:report:"

// redisCmdable is the subset of *redis.Client the cache uses
type redisCmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisReportCache stores computed reports as JSON with a fixed TTL.
// It is display-only: nothing in the ledger reads money back from it.
type RedisReportCache struct {
	client redisCmdable
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisClient connects to Redis and pings it. A failed ping returns the
// error so the caller can run without the cache.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// NewRedisReportCache creates a report cache on top of a Redis client
func NewRedisReportCache(client redisCmdable, ttl time.Duration, logger *zap.Logger) *RedisReportCache {
	return &RedisReportCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Get decodes the cached value into dest. A missing key is a miss, not an error.
func (c *RedisReportCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("report cache get %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		c.logger.Warn("Discarding undecodable cached report",
			zap.String("key", key),
			zap.Error(err),
		)
		return false, nil
	}
	return true, nil
}

// Set stores value as JSON under key with the cache TTL
func (c *RedisReportCache) Set(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("report cache encode %s: %w", key, err)
	}
	if err := c.client.Set(ctx, keyPrefix+key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("report cache set %s: %w", key, err)
	}
	return nil
}
