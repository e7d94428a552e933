package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/KevinIansyah/lawan-judol-web-sub001/pkg/models"
	"github.com/redis/go-redis/v9"
)

// Cache provides caching functionality using Redis
type Cache struct {
	client *redis.Client
	now    func() time.Time
}

// NewCache creates a new cache instance
func NewCache(host string, port int, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{client: client, now: time.Now}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// Video Set Operations

func videoSetKey(userID string) string {
	return fmt.Sprintf("youtube:videos:user:%s", userID)
}

// IsVideoSetCached reports whether the user's aggregated video list is cached
func (c *Cache) IsVideoSetCached(ctx context.Context, userID string) (bool, error) {
	return c.Exists(ctx, videoSetKey(userID))
}

// GetVideoSet retrieves the user's aggregated video list, marked as coming
// from the cache. It returns nil on a miss.
func (c *Cache) GetVideoSet(ctx context.Context, userID string) (*models.CachedVideoSet, error) {
	data, err := c.client.Get(ctx, videoSetKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get video set from cache: %w", err)
	}

	var set models.CachedVideoSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to unmarshal video set: %w", err)
	}

	set.FromCache = true
	return &set, nil
}

// SetVideoSet replaces the user's cached video list. Expiry is left to Redis.
func (c *Cache) SetVideoSet(ctx context.Context, userID string, set *models.CachedVideoSet, ttl time.Duration) error {
	stored := *set
	stored.FromCache = false
	if stored.CachedAt.IsZero() {
		stored.CachedAt = c.now().UTC()
	}

	data, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("failed to marshal video set: %w", err)
	}

	return c.client.Set(ctx, videoSetKey(userID), data, ttl).Err()
}

// InvalidateVideoSet removes the user's cached video list
func (c *Cache) InvalidateVideoSet(ctx context.Context, userID string) error {
	return c.client.Del(ctx, videoSetKey(userID)).Err()
}

// Rate Limiting Operations

// CheckRateLimit checks if a rate limit has been exceeded
func (c *Cache) CheckRateLimit(ctx context.Context, key string, limit int64, window time.Duration) (bool, error) {
	rateLimitKey := fmt.Sprintf("ratelimit:%s", key)

	count, err := c.client.Incr(ctx, rateLimitKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	// Set expiry on first request
	if count == 1 {
		if err := c.client.Expire(ctx, rateLimitKey, window).Err(); err != nil {
			return false, fmt.Errorf("failed to set expiry: %w", err)
		}
	}

	return count <= limit, nil
}

// Locking Operations for Distributed Systems

// AcquireLock attempts to acquire a distributed lock
func (c *Cache) AcquireLock(ctx context.Context, resource string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("lock:%s", resource)
	return c.client.SetNX(ctx, key, "locked", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Cache) ReleaseLock(ctx context.Context, resource string) error {
	key := fmt.Sprintf("lock:%s", resource)
	return c.client.Del(ctx, key).Err()
}

// Exists checks if a key exists
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	result, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return result > 0, nil
}

// Health check
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
