package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hl7-synth-server/internal/domain"
)

const tableKeyPrefix = "hl7gen:table:"

// CacheClient wraps a Redis client as a shared table cache
type CacheClient struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

// NewCacheClient creates a new cache client
func NewCacheClient(config domain.CacheConfig) (*CacheClient, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	if config.MaxRetries > 0 {
		opts.MaxRetries = config.MaxRetries
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewCacheClientFromRedis(client, config.DefaultTTL), nil
}

// NewCacheClientFromRedis wraps an existing client
func NewCacheClientFromRedis(client *redis.Client, defaultTTL time.Duration) *CacheClient {
	if defaultTTL <= 0 {
		defaultTTL = 24 * time.Hour
	}
	return &CacheClient{redis: client, defaultTTL: defaultTTL}
}

// CachedTable represents a cached table with metadata
type CachedTable struct {
	Table     *domain.Table `json:"table"`
	CachedAt  time.Time     `json:"cached_at"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// GetTable retrieves a cached table
func (c *CacheClient) GetTable(ctx context.Context, tableID string) (*domain.Table, bool, error) {
	key := tableKey(tableID)

	val, err := c.redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get table cache: %w", err)
	}

	var cached CachedTable
	if err := json.Unmarshal([]byte(val), &cached); err != nil || cached.Table == nil {
		// Remove corrupted cache entry
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	return cached.Table, true, nil
}

// SetTable caches a table; a zero ttl uses the default
func (c *CacheClient) SetTable(ctx context.Context, table *domain.Table, ttl time.Duration) error {
	if table == nil {
		return fmt.Errorf("cannot cache nil table")
	}
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	now := time.Now()
	data, err := json.Marshal(CachedTable{
		Table:     table,
		CachedAt:  now,
		ExpiresAt: now.Add(ttl),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal table cache data: %w", err)
	}

	return c.redis.Set(ctx, tableKey(table.ID), data, ttl).Err()
}

// InvalidateTable removes one cached table
func (c *CacheClient) InvalidateTable(ctx context.Context, tableID string) error {
	return c.redis.Del(ctx, tableKey(tableID)).Err()
}

// InvalidateAll removes every cached table
func (c *CacheClient) InvalidateAll(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := c.redis.Scan(ctx, cursor, tableKeyPrefix+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan table keys: %w", err)
		}
		if len(keys) > 0 {
			if err := c.redis.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to delete table keys: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// GetStats returns cache statistics
func (c *CacheClient) GetStats(ctx context.Context) (map[string]interface{}, error) {
	info, err := c.redis.Info(ctx, "memory", "stats").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get Redis info: %w", err)
	}

	return map[string]interface{}{
		"memory_info": info,
		"pool_stats":  c.redis.PoolStats(),
	}, nil
}

// Ping checks if Redis connection is alive
func (c *CacheClient) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *CacheClient) Close() error {
	return c.redis.Close()
}

func tableKey(tableID string) string {
	return tableKeyPrefix + tableID
}
