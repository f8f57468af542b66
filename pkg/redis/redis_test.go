package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jebjergk/MIP-sub000/pkg/config"
)

func TestNewClient_Disabled(t *testing.T) {
	cfg := &config.Config{
		Redis: config.RedisConfig{Enabled: false},
	}

	client, err := New(cfg)
	require.NoError(t, err)
	assert.False(t, client.Enabled())
	assert.NoError(t, client.Ping(context.Background()))
	assert.NoError(t, client.Close())
}

func TestNilClientIsDisabled(t *testing.T) {
	var c *Client
	assert.False(t, c.Enabled())
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewRateLimiter(Disabled(), "mip")
	cfg := APIRateLimit("127.0.0.1", 20, 40)

	allowed, remaining, err := limiter.Allow(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, cfg.Limit, remaining)
	assert.False(t, limiter.Enabled())
	assert.NoError(t, limiter.Wait(context.Background(), cfg))
}

func TestAPIRateLimit(t *testing.T) {
	cfg := APIRateLimit("10.0.0.7", 20, 40)
	assert.Equal(t, "api:10.0.0.7", cfg.Key)
	assert.Equal(t, 40, cfg.Limit)
	assert.Equal(t, time.Second, cfg.Window)

	assert.Equal(t, 1, APIRateLimit("x", 0, 0).Limit)
}

func TestCache_Disabled(t *testing.T) {
	cache := NewCache(Disabled(), "mip")
	ctx := context.Background()

	var result string
	found, err := cache.Get(ctx, "key", &result)
	require.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, cache.Set(ctx, "key", "value", time.Minute))
	assert.NoError(t, cache.Delete(ctx, "key"))
}

func TestCacheKeys(t *testing.T) {
	pattern := int64(12)

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"status unfiltered", TrainingStatusKey("", "", nil, 40), "training:status:*:*:*:40"},
		{"status filtered", TrainingStatusKey("STOCK", "AAPL", &pattern, 25), "training:status:STOCK:AAPL:12:25"},
		{"timeline", TrainingTimelineKey("FX", "EURUSD", 3, 5, 20, 200, "40/5/0.55/0.0005"), "training:timeline:FX:EURUSD:3:5:w20:n200:g40/5/0.55/0.0005"},
		{"timeline other gate", TrainingTimelineKey("FX", "EURUSD", 3, 5, 20, 200, "60/5/0.6/0.001"), "training:timeline:FX:EURUSD:3:5:w20:n200:g60/5/0.6/0.001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.got)
		})
	}
}

func TestCacheRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis integration test")
	}

	cfg := &config.Config{
		Redis: config.RedisConfig{Host: "localhost", Port: "6379", Enabled: true},
	}
	client, err := New(cfg)
	if err != nil {
		t.Skipf("redis not available: %v", err)
	}
	defer client.Close()

	ctx := context.Background()
	cache := NewCache(client, "mip-test")
	key := TrainingStatusKey("STOCK", "AAPL", nil, 40)

	require.NoError(t, cache.Set(ctx, key, map[string]int{"recs_total": 3}, time.Minute))

	var got map[string]int
	found, err := cache.Get(ctx, key, &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 3, got["recs_total"])

	require.NoError(t, cache.Delete(ctx, key))
	found, err = cache.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.False(t, found)
}
