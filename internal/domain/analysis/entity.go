package analysis

import (
	"time"

	"github.com/google/uuid"
)

// AnalysisRequest is one query moving through the pipeline. Owned by the chief analyst.
type AnalysisRequest struct {
	ID          uuid.UUID
	Query       string
	Intent      QueryIntent
	Priority    Priority
	Status      Status
	Plan        *ResearchPlan
	Assignments []*AnalystAssignment
	Report      string
	Confidence  *ConfidenceScore

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// Assignment returns the assignment with the given id
func (r *AnalysisRequest) Assignment(id uuid.UUID) (*AnalystAssignment, bool) {
	for _, a := range r.Assignments {
		if a.ID == id {
			return a, true
		}
	}
	return nil, false
}

// AssignmentForStep returns the assignment created for a plan step
func (r *AnalysisRequest) AssignmentForStep(stepID uuid.UUID) (*AnalystAssignment, bool) {
	for _, a := range r.Assignments {
		if a.StepID == stepID {
			return a, true
		}
	}
	return nil, false
}

// CountAssignments returns how many assignments are in the given status
func (r *AnalysisRequest) CountAssignments(status AssignmentStatus) int {
	n := 0
	for _, a := range r.Assignments {
		if a.Status == status {
			n++
		}
	}
	return n
}

// QueryIntent is the structured reading of a query
type QueryIntent struct {
	Domains    []Domain
	Complexity float64 // 0-1

	// Shape hints used for strategy selection
	Numeric        bool // asks for an estimate, price target, value
	Recommendation bool // asks what to do
	Comparison     bool // asks to compare alternatives
}

// HasDomain reports whether the intent covers d
func (i QueryIntent) HasDomain(d Domain) bool {
	for _, x := range i.Domains {
		if x == d {
			return true
		}
	}
	return false
}

// ResearchPlan is immutable once created
type ResearchPlan struct {
	ID                uuid.UUID
	Steps             []PlanStep
	EstimatedDuration time.Duration
	Strategy          AggregationStrategy
	CreatedAt         time.Time
}

// Step returns the plan step with the given id
func (p *ResearchPlan) Step(id uuid.UUID) (PlanStep, bool) {
	for _, s := range p.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return PlanStep{}, false
}

// StepIndex returns the position of a step in plan order, or -1
func (p *ResearchPlan) StepIndex(id uuid.UUID) int {
	for i, s := range p.Steps {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// PlanStep is a decomposed unit of work
type PlanStep struct {
	ID          uuid.UUID
	Description string
	Domains     []Domain
	DependsOn   []uuid.UUID
}

// AnalystAssignment binds one plan step to one specialist type.
// Status is written only by the goroutine executing that assignment.
type AnalystAssignment struct {
	ID         uuid.UUID
	StepID     uuid.UUID
	AgentType  AgentType
	Status     AssignmentStatus
	ResultID   *uuid.UUID
	Error      string
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// AnalysisResult is immutable after creation
type AnalysisResult struct {
	ID               uuid.UUID
	AgentID          string
	AgentType        AgentType
	AssignmentID     uuid.UUID
	StepID           uuid.UUID
	Findings         []Finding
	Summary          string
	Confidence       float64
	ToolInvocations  []ToolInvocation
	PeerInsightsUsed int
	CompletedAt      time.Time
}

// SucceededTools returns the names of tool calls that returned a result, in call order
func (r *AnalysisResult) SucceededTools() []string {
	names := make([]string, 0, len(r.ToolInvocations))
	for _, inv := range r.ToolInvocations {
		if inv.Succeeded {
			names = append(names, inv.Tool)
		}
	}
	return names
}

// Finding is a single conclusion backed by tool output
type Finding struct {
	Statement      string
	Data           map[string]any
	Confidence     float64
	Methodology    string
	Citations      []string
	Metric         string
	Value          *float64
	Recommendation string
}

// ToolInvocation records one call to the tool service
type ToolInvocation struct {
	Tool      string
	Params    map[string]any
	Succeeded bool
	Error     string
	Duration  time.Duration
}

// ConfidenceScore is the calibrated confidence of an aggregated answer
type ConfidenceScore struct {
	Value         float64
	Justification string
}
