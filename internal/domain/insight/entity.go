package insight

import (
	"time"

	"github.com/google/uuid"
)

// Type classifies an insight
type Type string

const (
	TypeObservation    Type = "observation"
	TypeMetric         Type = "metric"
	TypeRiskFlag       Type = "risk_flag"
	TypeRecommendation Type = "recommendation"
	TypeWarning        Type = "warning"
)

// Insight is a mid-flight finding shared between specialists working on the same request
type Insight struct {
	ID              uuid.UUID              `json:"id"`
	RequestID       uuid.UUID              `json:"request_id"`
	SourceAgentType string                 `json:"source_agent_type"`
	SourceAgentID   string                 `json:"source_agent_id"`
	Type            Type                   `json:"type"`
	Content         string                 `json:"content"`
	Data            map[string]interface{} `json:"data,omitempty"`
	Confidence      float64                `json:"confidence"`
	Timestamp       time.Time              `json:"timestamp"`
}

// Filter selects insights. Zero-valued fields do not constrain; set fields are combined with AND.
type Filter struct {
	SourceAgentID string
	Type          Type
	MinConfidence float64
	Since         time.Time
}

// Matches reports whether in passes every set criterion
func (f Filter) Matches(in Insight) bool {
	if f.SourceAgentID != "" && in.SourceAgentID != f.SourceAgentID {
		return false
	}
	if f.Type != "" && in.Type != f.Type {
		return false
	}
	if in.Confidence < f.MinConfidence {
		return false
	}
	if !f.Since.IsZero() && in.Timestamp.Before(f.Since) {
		return false
	}
	return true
}
