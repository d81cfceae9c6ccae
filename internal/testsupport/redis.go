package testsupport

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"

	"meridian/internal/adapters/config"
	redisadapter "meridian/internal/adapters/redis"
)

// NewRedisClient creates a redis client for integration tests and flushes the database around the test.
func NewRedisClient(t *testing.T, cfg config.RedisConfig) *redis.Client {
	t.Helper()

	adapter, err := redisadapter.NewClient(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to connect to redis: %v", err)
	}
	client := adapter.Client()

	if err := client.FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("failed to flush redis before test: %v", err)
	}

	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = adapter.Close()
	})

	return client
}

// NewTestRedis skips unless REDIS_HOST is set
func NewTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	return NewRedisClient(t, LoadRedisConfigFromEnv(t))
}
