package stats

import (
	"time"

	"github.com/google/uuid"
)

// ToolUsageEvent is a single tool call made by a specialist (for insertion)
type ToolUsageEvent struct {
	RequestID    uuid.UUID `ch:"request_id"`
	AssignmentID uuid.UUID `ch:"assignment_id"`
	AgentType    string    `ch:"agent_type"`
	AgentID      string    `ch:"agent_id"`
	ToolName     string    `ch:"tool_name"`
	Timestamp    time.Time `ch:"timestamp"`

	DurationMs int    `ch:"duration_ms"`
	Success    bool   `ch:"success"`
	Error      string `ch:"error"`
}

// ToolUsageAggregated is hourly tool usage (from materialized view)
type ToolUsageAggregated struct {
	AgentType string    `ch:"agent_type"`
	ToolName  string    `ch:"tool_name"`
	Hour      time.Time `ch:"hour"`

	CallCount       uint64  `ch:"call_count"`
	TotalDurationMs uint64  `ch:"total_duration_ms"`
	SuccessCount    uint64  `ch:"success_count"`
	ErrorCount      uint64  `ch:"error_count"`
	AvgDurationMs   float64 `ch:"avg_duration_ms"`
}

// SuccessRate returns the share of successful calls
func (a ToolUsageAggregated) SuccessRate() float64 {
	if a.CallCount == 0 {
		return 0
	}
	return float64(a.SuccessCount) / float64(a.CallCount)
}
