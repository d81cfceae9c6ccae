package reasoning

import (
	"context"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// Repository is the store contract for traces, feedback and learned patterns.
// GetPatternByFingerprint returns errors.ErrNotFound when no pattern exists.
type Repository interface {
	CreateTrace(ctx context.Context, trace *Trace) error
	GetTracesByRequest(ctx context.Context, requestID uuid.UUID) ([]*Trace, error)

	CreateFeedback(ctx context.Context, feedback *Feedback) error
	GetFeedbackByRequest(ctx context.Context, requestID uuid.UUID) ([]*Feedback, error)

	CreatePattern(ctx context.Context, pattern *Pattern) error
	UpdatePattern(ctx context.Context, pattern *Pattern) error
	GetPatternByFingerprint(ctx context.Context, fingerprint string) (*Pattern, error)
	// ListPatternsByTaskType returns patterns ordered by descending reward
	ListPatternsByTaskType(ctx context.Context, taskType TaskType, limit int) ([]*Pattern, error)
	// SearchSimilar ranks patterns with embeddings by cosine similarity
	SearchSimilar(ctx context.Context, embedding pgvector.Vector, limit int) ([]ScoredPattern, error)
}
