package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores JSON documents under a namespaced key
// ⭐ SSOT: 캐시 헬퍼는 여기서만
type Cache struct {
	client *Client
	prefix string
}

// NewCache creates a new cache helper
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
	}
}

// Enabled reports whether reads and writes reach redis
func (c *Cache) Enabled() bool {
	return c.client.Enabled()
}

func (c *Cache) fullKey(key string) string {
	return fmt.Sprintf("%s:cache:%s", c.prefix, key)
}

// Get retrieves a cached value into dest. found=false on miss.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.client.Enabled() {
		return false, nil
	}

	data, err := c.client.Redis().Get(ctx, c.fullKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal failed: %w", err)
	}

	return true, nil
}

// Set stores a value in cache with TTL. ttl<=0 skips the write.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.client.Enabled() || ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}

	return c.client.Redis().Set(ctx, c.fullKey(key), data, ttl).Err()
}

// Delete removes a cached value
func (c *Cache) Delete(ctx context.Context, key string) error {
	if !c.client.Enabled() {
		return nil
	}

	return c.client.Redis().Del(ctx, c.fullKey(key)).Err()
}

// Training response TTLs
const (
	TTLStatus   = 2 * time.Minute
	TTLTimeline = 5 * time.Minute
)

// TrainingStatusKey identifies one status listing.
// Empty filters and a nil pattern are encoded as "*".
func TrainingStatusKey(marketType, symbol string, patternID *int64, minSignals int) string {
	pattern := "*"
	if patternID != nil {
		pattern = fmt.Sprintf("%d", *patternID)
	}
	return fmt.Sprintf("training:status:%s:%s:%s:%d", orAny(marketType), orAny(symbol), pattern, minSignals)
}

// TrainingTimelineKey identifies one timeline response. gate is the
// fingerprint of the thresholds the timeline was classified with.
func TrainingTimelineKey(marketType, symbol string, patternID int64, horizonBars, rollingWindow, maxPoints int, gate string) string {
	return fmt.Sprintf("training:timeline:%s:%s:%d:%d:w%d:n%d:g%s",
		marketType, symbol, patternID, horizonBars, rollingWindow, maxPoints, gate)
}

func orAny(s string) string {
	if s == "" {
		return "*"
	}
	return s
}
