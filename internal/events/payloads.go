package events

import "time"

// Completion scopes for AnalysisCompleted
const (
	ScopeSpecialist = "specialist"
	ScopeRequest    = "request"
)

// RequestPayload accompanies AnalysisRequested
type RequestPayload struct {
	RequestID  string   `json:"request_id"`
	Query      string   `json:"query"`
	Priority   string   `json:"priority"`
	Domains    []string `json:"domains"`
	Complexity float64  `json:"complexity"`
}

// PlanPayload accompanies PlanCreated
type PlanPayload struct {
	RequestID         string        `json:"request_id"`
	PlanID            string        `json:"plan_id"`
	Steps             int           `json:"steps"`
	Strategy          string        `json:"strategy"`
	EstimatedDuration time.Duration `json:"estimated_duration"`
}

// AssignmentPayload accompanies AnalystAssigned
type AssignmentPayload struct {
	RequestID    string `json:"request_id"`
	AssignmentID string `json:"assignment_id"`
	StepID       string `json:"step_id"`
	AgentType    string `json:"agent_type"`
}

// ToolPayload accompanies ToolCalled, ToolSucceeded and ToolFailed
type ToolPayload struct {
	RequestID    string        `json:"request_id"`
	AssignmentID string        `json:"assignment_id"`
	AgentType    string        `json:"agent_type"`
	AgentID      string        `json:"agent_id"`
	Tool         string        `json:"tool"`
	Duration     time.Duration `json:"duration,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// CompletionPayload accompanies AnalysisCompleted, for a specialist or the whole request
type CompletionPayload struct {
	Scope        string  `json:"scope"`
	RequestID    string  `json:"request_id"`
	AssignmentID string  `json:"assignment_id,omitempty"`
	AgentType    string  `json:"agent_type,omitempty"`
	AgentID      string  `json:"agent_id,omitempty"`
	Findings     int     `json:"findings"`
	Confidence   float64 `json:"confidence"`
}

// AggregationPayload accompanies ResultAggregated
type AggregationPayload struct {
	RequestID  string  `json:"request_id"`
	Strategy   string  `json:"strategy"`
	Results    int     `json:"results"`
	Confidence float64 `json:"confidence"`
}

// EscalationPayload accompanies AnalysisEscalated
type EscalationPayload struct {
	RequestID  string  `json:"request_id"`
	Confidence float64 `json:"confidence"`
	Threshold  float64 `json:"threshold"`
	Reason     string  `json:"reason"`
}
