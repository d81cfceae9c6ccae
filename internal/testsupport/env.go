package testsupport

import (
	"os"
	"testing"

	"github.com/spf13/cast"

	"meridian/internal/adapters/config"
)

// DatabaseConfigs bundles config sections required for integration tests.
type DatabaseConfigs struct {
	Postgres   config.PostgresConfig
	ClickHouse config.ClickHouseConfig
	Redis      config.RedisConfig
}

// LoadPostgresConfigFromEnv skips the test unless a Postgres is configured.
func LoadPostgresConfigFromEnv(t *testing.T) config.PostgresConfig {
	t.Helper()
	requireEnv(t, "POSTGRES_HOST", "POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DB")

	return config.PostgresConfig{
		Host:     os.Getenv("POSTGRES_HOST"),
		Port:     intValue("POSTGRES_PORT", 5432),
		User:     os.Getenv("POSTGRES_USER"),
		Password: os.Getenv("POSTGRES_PASSWORD"),
		Database: os.Getenv("POSTGRES_DB"),
		SSLMode:  valueWithDefault("POSTGRES_SSL_MODE", "disable"),
		MaxConns: 10,
	}
}

// LoadClickHouseConfigFromEnv skips the test unless a ClickHouse is configured.
func LoadClickHouseConfigFromEnv(t *testing.T) config.ClickHouseConfig {
	t.Helper()
	requireEnv(t, "CLICKHOUSE_HOST", "CLICKHOUSE_DB")

	return config.ClickHouseConfig{
		Host:     os.Getenv("CLICKHOUSE_HOST"),
		Port:     intValue("CLICKHOUSE_PORT", 9000),
		User:     valueWithDefault("CLICKHOUSE_USER", "default"),
		Password: os.Getenv("CLICKHOUSE_PASSWORD"),
		Database: os.Getenv("CLICKHOUSE_DB"),
	}
}

// LoadRedisConfigFromEnv skips the test unless a Redis is configured.
func LoadRedisConfigFromEnv(t *testing.T) config.RedisConfig {
	t.Helper()
	requireEnv(t, "REDIS_HOST")

	return config.RedisConfig{
		Host:       os.Getenv("REDIS_HOST"),
		Port:       intValue("REDIS_PORT", 6379),
		Password:   os.Getenv("REDIS_PASSWORD"),
		DB:         intValue("REDIS_DB", 0),
		InsightTTL: cast.ToDuration(valueWithDefault("REDIS_INSIGHT_TTL", "1h")),
	}
}

// LoadDatabaseConfigsFromEnv reads configuration for all stores.
// Tests are skipped when required environment variables are missing.
func LoadDatabaseConfigsFromEnv(t *testing.T) DatabaseConfigs {
	t.Helper()

	return DatabaseConfigs{
		Postgres:   LoadPostgresConfigFromEnv(t),
		ClickHouse: LoadClickHouseConfigFromEnv(t),
		Redis:      LoadRedisConfigFromEnv(t),
	}
}

func requireEnv(t *testing.T, keys ...string) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	var missing []string
	for _, key := range keys {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		t.Skipf("integration environment missing, set %v to run", missing)
	}
}

func valueWithDefault(key string, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func intValue(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := cast.ToIntE(val); err == nil {
			return parsed
		}
	}
	return fallback
}
