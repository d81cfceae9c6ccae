package agents

import (
	"context"

	"github.com/google/uuid"

	domain "meridian/internal/domain/analysis"
	"meridian/internal/domain/insight"
	"meridian/internal/domain/reasoning"
	"meridian/internal/events"
)

// ToolCaller executes a named analytical tool
type ToolCaller interface {
	CallTool(ctx context.Context, name string, params map[string]any) (map[string]any, error)
}

// ToolCallerFunc adapts a function to ToolCaller
type ToolCallerFunc func(ctx context.Context, name string, params map[string]any) (map[string]any, error)

// CallTool calls f
func (f ToolCallerFunc) CallTool(ctx context.Context, name string, params map[string]any) (map[string]any, error) {
	return f(ctx, name, params)
}

// ExecutionContext carries everything a specialist needs for one assignment
type ExecutionContext struct {
	RequestID    uuid.UUID
	AssignmentID uuid.UUID
	StepID       uuid.UUID
	Task         string

	Bus      *events.Bus
	Insights *insight.Bus
	Tools    ToolCaller

	// Results of the steps this one depends on, in plan order. Failed dependencies are absent.
	Dependencies []*domain.AnalysisResult
}

// Execution is what a specialist run produced. Trace is set even when the run failed.
type Execution struct {
	Result *domain.AnalysisResult
	Trace  *reasoning.Trace
}

// Specialist executes one plan step within its domain
type Specialist interface {
	ID() string
	Type() domain.AgentType
	Execute(ctx context.Context, ec ExecutionContext) (*Execution, error)
}

// PatternAdvisor supplies learned tool patterns. Satisfied by *reasoning.Service.
type PatternAdvisor interface {
	SearchPatterns(ctx context.Context, taskType reasoning.TaskType, limit int) ([]*reasoning.Pattern, error)
	SuggestSimilar(ctx context.Context, description string, limit int) ([]reasoning.ScoredPattern, error)
}
