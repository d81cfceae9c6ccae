package clickhouse

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meridian/internal/domain/stats"
	"meridian/internal/testsupport"
)

func applySchema(t *testing.T, helper *testsupport.ClickHouseTestHelper) {
	t.Helper()

	raw, err := os.ReadFile("../../../migrations/clickhouse/0001_tool_usage.up.sql")
	require.NoError(t, err)

	for _, stmt := range strings.Split(string(raw), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		require.NoError(t, helper.Exec(context.Background(), stmt))
	}
}

func TestStatsRepository_InsertAndQuery(t *testing.T) {
	helper := testsupport.NewTestClickHouse(t)
	applySchema(t, helper)

	repo := NewStatsRepository(helper.Conn())
	ctx := context.Background()

	requestID := uuid.New()
	helper.RegisterTableCleanup(t, "tool_usage_events", "request_id = '"+requestID.String()+"'")

	agentType := testsupport.UniqueName("agent")
	now := time.Now().UTC().Truncate(time.Millisecond)
	batch := []stats.ToolUsageEvent{
		{RequestID: requestID, AssignmentID: uuid.New(), AgentType: agentType, AgentID: "a-1", ToolName: "dcf_model", Timestamp: now, DurationMs: 120, Success: true},
		{RequestID: requestID, AssignmentID: uuid.New(), AgentType: agentType, AgentID: "a-1", ToolName: "dcf_model", Timestamp: now.Add(time.Second), DurationMs: 80, Success: false, Error: "timeout"},
	}
	require.NoError(t, repo.InsertToolUsageBatch(ctx, batch))
	require.NoError(t, repo.InsertToolUsageBatch(ctx, nil))

	events, err := repo.GetByRequest(ctx, requestID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "timeout", events[1].Error)
	assert.Equal(t, 120, events[0].DurationMs)

	hourly, err := repo.GetByAgentType(ctx, agentType, now.Add(-2*time.Hour))
	require.NoError(t, err)
	require.NotEmpty(t, hourly)

	var calls, successes uint64
	for _, h := range hourly {
		calls += h.CallCount
		successes += h.SuccessCount
	}
	assert.Equal(t, uint64(2), calls)
	assert.Equal(t, uint64(1), successes)
}
