package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"github.com/fraudguard/fraudguard/internal/domain"
)

// RedisCache implements the prediction cache on Redis with SET EX / GET.
type RedisCache struct {
	client *redis.Client
}

const keyPrefix = "fg:prediction:"

// NewRedisCache creates a Redis-backed prediction cache.
func NewRedisCache(cfg domain.CacheConfig) (*RedisCache, error) {
	addr := cfg.RedisAddr
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	connect := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return client.Ping(ctx).Err()
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5)
	if err := backoff.Retry(connect, policy); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// Get returns the cached result for a transaction, or nil, nil on a miss.
func (c *RedisCache) Get(ctx context.Context, transactionID string) (*domain.PredictionResult, error) {
	if transactionID == "" {
		return nil, fmt.Errorf("transactionID is required")
	}

	data, err := c.client.Get(ctx, keyPrefix+transactionID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: cache read failed: %v", domain.ErrStoreUnavailable, err)
	}

	var result domain.PredictionResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	result.Cached = true
	return &result, nil
}

// Put stores the result with the given TTL. SET writes the value and the
// expiry as one operation, so a reader sees the whole entry or nothing.
func (c *RedisCache) Put(ctx context.Context, transactionID string, result *domain.PredictionResult, ttl time.Duration) error {
	if transactionID == "" {
		return fmt.Errorf("transactionID is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}

	if err := c.client.Set(ctx, keyPrefix+transactionID, payload, ttl).Err(); err != nil {
		return fmt.Errorf("%w: cache write failed: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Clear removes all prediction keys using SCAN + DEL.
func (c *RedisCache) Clear(ctx context.Context) (int64, error) {
	var removed int64
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 500).Iterator()

	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 500 {
			n, err := c.client.Del(ctx, batch...).Result()
			if err != nil {
				return removed, err
			}
			removed += n
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return removed, err
	}
	if len(batch) > 0 {
		n, err := c.client.Del(ctx, batch...).Result()
		if err != nil {
			return removed, err
		}
		removed += n
	}
	return removed, nil
}

// Ping checks Redis connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
