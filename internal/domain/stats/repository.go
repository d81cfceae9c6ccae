package stats

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines tool usage statistics data access (ClickHouse)
type Repository interface {
	InsertToolUsage(ctx context.Context, event *ToolUsageEvent) error
	InsertToolUsageBatch(ctx context.Context, events []ToolUsageEvent) error

	GetByRequest(ctx context.Context, requestID uuid.UUID) ([]ToolUsageEvent, error)
	GetByAgentType(ctx context.Context, agentType string, since time.Time) ([]ToolUsageAggregated, error)
	GetByTool(ctx context.Context, toolName string, since time.Time) ([]ToolUsageAggregated, error)
	GetTopTools(ctx context.Context, since time.Time, limit int) ([]ToolUsageAggregated, error)
}
