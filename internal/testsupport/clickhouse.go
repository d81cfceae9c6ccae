package testsupport

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"meridian/internal/adapters/clickhouse"
	"meridian/internal/adapters/config"
)

// ClickHouseTestHelper manages cleanup for ClickHouse integration tests.
type ClickHouseTestHelper struct {
	client *clickhouse.Client
}

// NewClickHouseTestHelper creates a ClickHouse client for tests.
func NewClickHouseTestHelper(t *testing.T, cfg config.ClickHouseConfig) *ClickHouseTestHelper {
	t.Helper()

	client, err := clickhouse.NewClient(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to connect to clickhouse: %v", err)
	}

	t.Cleanup(func() { _ = client.Close() })
	return &ClickHouseTestHelper{client: client}
}

// NewTestClickHouse skips unless CLICKHOUSE_* is set
func NewTestClickHouse(t *testing.T) *ClickHouseTestHelper {
	t.Helper()
	return NewClickHouseTestHelper(t, LoadClickHouseConfigFromEnv(t))
}

// Conn returns the native connection
func (h *ClickHouseTestHelper) Conn() driver.Conn {
	return h.client.Conn()
}

// Exec runs a statement
func (h *ClickHouseTestHelper) Exec(ctx context.Context, query string) error {
	return h.client.Conn().Exec(ctx, query)
}

// CreateTempTable creates a temporary table and registers cleanup.
func (h *ClickHouseTestHelper) CreateTempTable(t *testing.T, schema string) string {
	t.Helper()

	table := fmt.Sprintf("tmp_test_%d", time.Now().UnixNano())
	query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s) ENGINE = MergeTree() ORDER BY tuple()", table, schema)

	if err := h.Exec(context.Background(), query); err != nil {
		t.Fatalf("failed to create clickhouse table: %v", err)
	}

	t.Cleanup(func() {
		_ = h.Exec(context.Background(), fmt.Sprintf("DROP TABLE IF EXISTS %s", table))
	})
	return table
}

// RegisterTableCleanup deletes rows matching condition after the test
func (h *ClickHouseTestHelper) RegisterTableCleanup(t *testing.T, table, condition string) {
	t.Helper()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s", table, condition))
	})
}
