package clickhouse

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"

	"meridian/internal/domain/stats"
	"meridian/pkg/errors"
)

// Compile-time check
var _ stats.Repository = (*StatsRepository)(nil)

// StatsRepository implements stats.Repository using ClickHouse
type StatsRepository struct {
	conn driver.Conn
}

// NewStatsRepository creates a new stats repository
func NewStatsRepository(conn driver.Conn) *StatsRepository {
	return &StatsRepository{conn: conn}
}

const insertToolUsage = `
	INSERT INTO tool_usage_events (
		request_id, assignment_id, agent_type, agent_id, tool_name,
		timestamp, duration_ms, success, error
	)`

// hourly rows are summed at read time since SummingMergeTree merges lazily
const aggregatedColumns = `
	agent_type,
	tool_name,
	hour,
	sum(call_count) AS call_count,
	sum(total_duration_ms) AS total_duration_ms,
	sum(success_count) AS success_count,
	sum(error_count) AS error_count,
	if(sum(call_count) = 0, 0, sum(total_duration_ms) / sum(call_count)) AS avg_duration_ms`

// InsertToolUsage inserts a single tool usage event
func (r *StatsRepository) InsertToolUsage(ctx context.Context, event *stats.ToolUsageEvent) error {
	return r.InsertToolUsageBatch(ctx, []stats.ToolUsageEvent{*event})
}

// InsertToolUsageBatch inserts multiple tool usage events
func (r *StatsRepository) InsertToolUsageBatch(ctx context.Context, events []stats.ToolUsageEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := r.conn.PrepareBatch(ctx, insertToolUsage)
	if err != nil {
		return errors.Wrap(err, "prepare tool usage batch")
	}

	for _, e := range events {
		err := batch.Append(
			e.RequestID, e.AssignmentID, e.AgentType, e.AgentID, e.ToolName,
			e.Timestamp, int32(e.DurationMs), e.Success, e.Error,
		)
		if err != nil {
			_ = batch.Abort()
			return errors.Wrap(err, "append tool usage")
		}
	}

	if err := batch.Send(); err != nil {
		return errors.Wrapf(err, "send %d tool usage events", len(events))
	}
	return nil
}

// GetByRequest returns a request's raw tool calls in time order
func (r *StatsRepository) GetByRequest(ctx context.Context, requestID uuid.UUID) ([]stats.ToolUsageEvent, error) {
	var rows []toolUsageRow

	query := `
		SELECT request_id, assignment_id, agent_type, agent_id, tool_name,
		       timestamp, duration_ms, success, error
		FROM tool_usage_events
		WHERE request_id = ?
		ORDER BY timestamp ASC`

	if err := r.conn.Select(ctx, &rows, query, requestID); err != nil {
		return nil, errors.Wrap(err, "select tool usage by request")
	}

	events := make([]stats.ToolUsageEvent, len(rows))
	for i, row := range rows {
		events[i] = row.toEvent()
	}
	return events, nil
}

// GetByAgentType retrieves hourly stats for a specialist type
func (r *StatsRepository) GetByAgentType(ctx context.Context, agentType string, since time.Time) ([]stats.ToolUsageAggregated, error) {
	var usage []stats.ToolUsageAggregated

	query := `
		SELECT ` + aggregatedColumns + `
		FROM tool_usage_hourly
		WHERE agent_type = ? AND hour >= ?
		GROUP BY agent_type, tool_name, hour
		ORDER BY hour DESC`

	if err := r.conn.Select(ctx, &usage, query, agentType, since); err != nil {
		return nil, errors.Wrap(err, "select tool usage by agent type")
	}
	return usage, nil
}

// GetByTool retrieves hourly stats for a specific tool
func (r *StatsRepository) GetByTool(ctx context.Context, toolName string, since time.Time) ([]stats.ToolUsageAggregated, error) {
	var usage []stats.ToolUsageAggregated

	query := `
		SELECT ` + aggregatedColumns + `
		FROM tool_usage_hourly
		WHERE tool_name = ? AND hour >= ?
		GROUP BY agent_type, tool_name, hour
		ORDER BY hour DESC`

	if err := r.conn.Select(ctx, &usage, query, toolName, since); err != nil {
		return nil, errors.Wrap(err, "select tool usage by tool")
	}
	return usage, nil
}

// GetTopTools retrieves the most called tools across specialists
func (r *StatsRepository) GetTopTools(ctx context.Context, since time.Time, limit int) ([]stats.ToolUsageAggregated, error) {
	var usage []stats.ToolUsageAggregated

	query := `
		SELECT
			agent_type,
			tool_name,
			max(hour) AS hour,
			sum(call_count) AS call_count,
			sum(total_duration_ms) AS total_duration_ms,
			sum(success_count) AS success_count,
			sum(error_count) AS error_count,
			if(sum(call_count) = 0, 0, sum(total_duration_ms) / sum(call_count)) AS avg_duration_ms
		FROM tool_usage_hourly
		WHERE hour >= ?
		GROUP BY agent_type, tool_name
		ORDER BY call_count DESC
		LIMIT ?`

	if err := r.conn.Select(ctx, &usage, query, since, limit); err != nil {
		return nil, errors.Wrap(err, "select top tools")
	}
	return usage, nil
}

// toolUsageRow mirrors the column types of tool_usage_events
type toolUsageRow struct {
	RequestID    uuid.UUID `ch:"request_id"`
	AssignmentID uuid.UUID `ch:"assignment_id"`
	AgentType    string    `ch:"agent_type"`
	AgentID      string    `ch:"agent_id"`
	ToolName     string    `ch:"tool_name"`
	Timestamp    time.Time `ch:"timestamp"`
	DurationMs   int32     `ch:"duration_ms"`
	Success      bool      `ch:"success"`
	Error        string    `ch:"error"`
}

func (row toolUsageRow) toEvent() stats.ToolUsageEvent {
	return stats.ToolUsageEvent{
		RequestID:    row.RequestID,
		AssignmentID: row.AssignmentID,
		AgentType:    row.AgentType,
		AgentID:      row.AgentID,
		ToolName:     row.ToolName,
		Timestamp:    row.Timestamp,
		DurationMs:   int(row.DurationMs),
		Success:      row.Success,
		Error:        row.Error,
	}
}
