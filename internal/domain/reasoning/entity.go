package reasoning

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// Phase of a reasoning step
type Phase string

const (
	PhaseThink    Phase = "think"
	PhaseAct      Phase = "act"
	PhaseObserve  Phase = "observe"
	PhaseConclude Phase = "conclude"
)

// Outcome of a traced execution
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailure Outcome = "failure"
)

// Step is a single entry in a reasoning trace
type Step struct {
	Phase     Phase    `json:"phase"`
	Content   string   `json:"content"`
	ToolCalls []string `json:"tool_calls,omitempty"`
}

// Trace records how a specialist worked through one assignment. Append-only.
type Trace struct {
	ID        uuid.UUID `db:"id"`
	RequestID uuid.UUID `db:"request_id"`
	AgentType string    `db:"agent_type"`
	TaskType  TaskType  `db:"task_type"`
	Steps     []Step    `db:"steps"` // JSONB
	Outcome   Outcome   `db:"outcome"`
	CreatedAt time.Time `db:"created_at"`
}

// ToolNames returns the tools invoked in act-phase steps, in call order
func (t *Trace) ToolNames() []string {
	var names []string
	for _, s := range t.Steps {
		if s.Phase == PhaseAct {
			names = append(names, s.ToolCalls...)
		}
	}
	return names
}

// Feedback is a quality score for a finished request. Append-only.
type Feedback struct {
	ID        uuid.UUID `db:"id" json:"id"`
	RequestID uuid.UUID `db:"request_id" json:"request_id"`
	Score     float64   `db:"score" json:"score"` // 0-1
	Comment   string    `db:"comment" json:"comment"`
	Automated bool      `db:"automated" json:"automated"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Pattern is a reusable tool set learned from successful traces
type Pattern struct {
	ID           uuid.UUID `db:"id"`
	TaskType     TaskType  `db:"task_type"`
	ToolSequence []string  `db:"tool_sequence"`
	AgentTypes   []string  `db:"agent_types"`
	RewardScore  float64   `db:"reward_score"` // 0-1, EMA of feedback
	UsageCount   int       `db:"usage_count"`
	Fingerprint  string    `db:"fingerprint"`

	// Optional, present when an embedder was configured at creation time
	Embedding *pgvector.Vector `db:"embedding"`

	CreatedAt  time.Time `db:"created_at"`
	LastUsedAt time.Time `db:"last_used_at"`
}

// HasAgentType reports whether agentType already contributed to the pattern
func (p *Pattern) HasAgentType(agentType string) bool {
	for _, a := range p.AgentTypes {
		if a == agentType {
			return true
		}
	}
	return false
}

// ScoredPattern is a similarity search hit
type ScoredPattern struct {
	Pattern    *Pattern
	Similarity float64
}
