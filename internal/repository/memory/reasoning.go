package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"meridian/internal/domain/reasoning"
	"meridian/pkg/errors"
	"meridian/pkg/vector"
)

// Compile-time check
var _ reasoning.Repository = (*ReasoningRepository)(nil)

// ReasoningRepository keeps traces, feedback and patterns in process memory.
// It is used when no Postgres is configured and in tests.
type ReasoningRepository struct {
	mu       sync.RWMutex
	traces   []*reasoning.Trace
	feedback []*reasoning.Feedback
	patterns map[string]*reasoning.Pattern // by fingerprint
}

// NewReasoningRepository creates an empty repository
func NewReasoningRepository() *ReasoningRepository {
	return &ReasoningRepository{patterns: make(map[string]*reasoning.Pattern)}
}

// CreateTrace appends a trace
func (r *ReasoningRepository) CreateTrace(_ context.Context, trace *reasoning.Trace) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *trace
	cp.Steps = append([]reasoning.Step(nil), trace.Steps...)
	r.traces = append(r.traces, &cp)
	return nil
}

// GetTracesByRequest returns a request's traces in insertion order
func (r *ReasoningRepository) GetTracesByRequest(_ context.Context, requestID uuid.UUID) ([]*reasoning.Trace, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*reasoning.Trace
	for _, t := range r.traces {
		if t.RequestID == requestID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

// CreateFeedback appends feedback
func (r *ReasoningRepository) CreateFeedback(_ context.Context, feedback *reasoning.Feedback) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *feedback
	r.feedback = append(r.feedback, &cp)
	return nil
}

// GetFeedbackByRequest returns a request's feedback in insertion order
func (r *ReasoningRepository) GetFeedbackByRequest(_ context.Context, requestID uuid.UUID) ([]*reasoning.Feedback, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*reasoning.Feedback
	for _, f := range r.feedback {
		if f.RequestID == requestID {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out, nil
}

// CreatePattern stores a new pattern
func (r *ReasoningRepository) CreatePattern(_ context.Context, pattern *reasoning.Pattern) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.patterns[pattern.Fingerprint]; ok {
		return errors.Wrapf(errors.ErrAlreadyExists, "pattern %s", pattern.Fingerprint)
	}
	r.patterns[pattern.Fingerprint] = clonePattern(pattern)
	return nil
}

// UpdatePattern replaces a stored pattern
func (r *ReasoningRepository) UpdatePattern(_ context.Context, pattern *reasoning.Pattern) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.patterns[pattern.Fingerprint]; !ok {
		return errors.Wrapf(errors.ErrNotFound, "pattern %s", pattern.Fingerprint)
	}
	r.patterns[pattern.Fingerprint] = clonePattern(pattern)
	return nil
}

// GetPatternByFingerprint returns a copy of the stored pattern
func (r *ReasoningRepository) GetPatternByFingerprint(_ context.Context, fingerprint string) (*reasoning.Pattern, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.patterns[fingerprint]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return clonePattern(p), nil
}

// ListPatternsByTaskType returns patterns ordered by reward, then usage
func (r *ReasoningRepository) ListPatternsByTaskType(_ context.Context, taskType reasoning.TaskType, limit int) ([]*reasoning.Pattern, error) {
	r.mu.RLock()
	var out []*reasoning.Pattern
	for _, p := range r.patterns {
		if p.TaskType == taskType {
			out = append(out, clonePattern(p))
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RewardScore != out[j].RewardScore {
			return out[i].RewardScore > out[j].RewardScore
		}
		return out[i].UsageCount > out[j].UsageCount
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SearchSimilar ranks embedded patterns by cosine similarity
func (r *ReasoningRepository) SearchSimilar(_ context.Context, embedding pgvector.Vector, limit int) ([]reasoning.ScoredPattern, error) {
	query := embedding.Slice()

	r.mu.RLock()
	var hits []reasoning.ScoredPattern
	for _, p := range r.patterns {
		if p.Embedding == nil {
			continue
		}
		hits = append(hits, reasoning.ScoredPattern{
			Pattern:    clonePattern(p),
			Similarity: vector.Cosine(query, p.Embedding.Slice()),
		})
	}
	r.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func clonePattern(p *reasoning.Pattern) *reasoning.Pattern {
	cp := *p
	cp.ToolSequence = append([]string(nil), p.ToolSequence...)
	cp.AgentTypes = append([]string(nil), p.AgentTypes...)
	return &cp
}
