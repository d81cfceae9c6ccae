package reasoning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/shopspring/decimal"

	"meridian/pkg/errors"
	"meridian/pkg/logger"
)

const (
	// NeutralReward is the prior for a newly observed pattern
	NeutralReward = 0.5
	// RewardRetention weights the previous reward in the feedback EMA
	RewardRetention = 0.7

	defaultSearchLimit = 10
)

// Embedder turns pattern descriptions into vectors
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Config tunes the reasoning bank
type Config struct {
	// Embedder is optional. Without it SuggestSimilar returns ErrUnavailable.
	Embedder      Embedder
	MinSimilarity float64
}

// Service is the reasoning bank: it stores traces and feedback and maintains learned patterns
type Service struct {
	repo          Repository
	embedder      Embedder
	minSimilarity float64
	locks         *keyedMutex
	log           *logger.Logger
}

// NewService constructs a reasoning bank over repo
func NewService(repo Repository, cfg Config, log *logger.Logger) *Service {
	return &Service{
		repo:          repo,
		embedder:      cfg.Embedder,
		minSimilarity: cfg.MinSimilarity,
		locks:         newKeyedMutex(),
		log:           log.With("component", "reasoning_bank"),
	}
}

// RecordTrace stores a trace. A successful trace with act-phase tool calls
// reinforces the pattern matching its tool set, creating it on first sight.
func (s *Service) RecordTrace(ctx context.Context, trace *Trace) error {
	if trace == nil || trace.AgentType == "" {
		return errors.NewValidationError("agent_type", "is required", nil)
	}
	if trace.ID == uuid.Nil {
		trace.ID = uuid.New()
	}
	if trace.CreatedAt.IsZero() {
		trace.CreatedAt = time.Now()
	}
	if trace.TaskType == "" {
		trace.TaskType = InferTaskType(trace.AgentType)
	}

	if err := s.repo.CreateTrace(ctx, trace); err != nil {
		return errors.Wrap(err, "store trace")
	}

	if trace.Outcome != OutcomeSuccess {
		return nil
	}
	tools := trace.ToolNames()
	if len(tools) == 0 {
		return nil
	}

	return s.reinforce(ctx, trace, tools)
}

func (s *Service) reinforce(ctx context.Context, trace *Trace, tools []string) error {
	fingerprint := Fingerprint(tools)
	unlock := s.locks.Lock(fingerprint)
	defer unlock()

	now := time.Now()
	pattern, err := s.repo.GetPatternByFingerprint(ctx, fingerprint)
	switch {
	case err == nil:
		pattern.UsageCount++
		pattern.LastUsedAt = now
		if !pattern.HasAgentType(trace.AgentType) {
			pattern.AgentTypes = append(pattern.AgentTypes, trace.AgentType)
		}
		if err := s.repo.UpdatePattern(ctx, pattern); err != nil {
			return errors.Wrap(err, "update pattern")
		}
		s.log.Debugw("Pattern reinforced",
			"fingerprint", fingerprint[:12],
			"usage_count", pattern.UsageCount,
		)
		return nil

	case errors.Is(err, errors.ErrNotFound):
		pattern = &Pattern{
			ID:           uuid.New(),
			TaskType:     trace.TaskType,
			ToolSequence: uniqueOrdered(tools),
			AgentTypes:   []string{trace.AgentType},
			RewardScore:  NeutralReward,
			UsageCount:   1,
			Fingerprint:  fingerprint,
			CreatedAt:    now,
			LastUsedAt:   now,
		}
		pattern.Embedding = s.embed(ctx, Describe(pattern))
		if err := s.repo.CreatePattern(ctx, pattern); err != nil {
			return errors.Wrap(err, "create pattern")
		}
		s.log.Infow("Pattern learned",
			"task_type", pattern.TaskType,
			"tools", pattern.ToolSequence,
		)
		return nil

	default:
		return errors.Wrap(err, "get pattern")
	}
}

// RecordFeedback stores feedback and folds its score into every pattern
// derived from the request's traces. Each pattern is updated at most once per feedback.
func (s *Service) RecordFeedback(ctx context.Context, feedback *Feedback) error {
	if feedback == nil || feedback.RequestID == uuid.Nil {
		return errors.NewValidationError("request_id", "is required", nil)
	}
	if feedback.Score < 0 || feedback.Score > 1 {
		return errors.NewValidationError("score", "must be within [0,1]", feedback.Score)
	}
	if feedback.ID == uuid.Nil {
		feedback.ID = uuid.New()
	}
	if feedback.CreatedAt.IsZero() {
		feedback.CreatedAt = time.Now()
	}

	if err := s.repo.CreateFeedback(ctx, feedback); err != nil {
		return errors.Wrap(err, "store feedback")
	}

	traces, err := s.repo.GetTracesByRequest(ctx, feedback.RequestID)
	if err != nil {
		return errors.Wrap(err, "get traces")
	}

	seen := make(map[string]struct{}, len(traces))
	for _, trace := range traces {
		tools := trace.ToolNames()
		if len(tools) == 0 {
			continue
		}
		fingerprint := Fingerprint(tools)
		if _, ok := seen[fingerprint]; ok {
			continue
		}
		seen[fingerprint] = struct{}{}

		if err := s.applyReward(ctx, fingerprint, feedback.Score); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) applyReward(ctx context.Context, fingerprint string, score float64) error {
	unlock := s.locks.Lock(fingerprint)
	defer unlock()

	pattern, err := s.repo.GetPatternByFingerprint(ctx, fingerprint)
	if errors.Is(err, errors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "get pattern")
	}

	previous := pattern.RewardScore
	pattern.RewardScore = UpdateReward(previous, score)
	if err := s.repo.UpdatePattern(ctx, pattern); err != nil {
		return errors.Wrap(err, "update pattern reward")
	}

	s.log.Debugw("Pattern reward updated",
		"fingerprint", fingerprint[:12],
		"previous", previous,
		"reward", pattern.RewardScore,
	)
	return nil
}

// UpdateReward is the feedback recurrence: reward' = 0.7*reward + 0.3*score
func UpdateReward(reward, score float64) float64 {
	retention := decimal.NewFromFloat(RewardRetention)
	next := retention.Mul(decimal.NewFromFloat(reward)).
		Add(decimal.NewFromInt(1).Sub(retention).Mul(decimal.NewFromFloat(score))).
		Round(6)

	v := next.InexactFloat64()
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// SearchPatterns returns the best-rewarded patterns for a task type
func (s *Service) SearchPatterns(ctx context.Context, taskType TaskType, limit int) ([]*Pattern, error) {
	if taskType == "" {
		return nil, errors.ErrInvalidInput
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	patterns, err := s.repo.ListPatternsByTaskType(ctx, taskType, limit)
	if err != nil {
		return nil, errors.Wrap(err, "search patterns")
	}
	return patterns, nil
}

// SuggestSimilar ranks learned patterns by semantic similarity to a task description
func (s *Service) SuggestSimilar(ctx context.Context, description string, limit int) ([]ScoredPattern, error) {
	if strings.TrimSpace(description) == "" {
		return nil, errors.ErrInvalidInput
	}
	if s.embedder == nil {
		return nil, errors.Wrap(errors.ErrUnavailable, "no embedder configured")
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	vec, err := s.embedder.GenerateEmbedding(ctx, description)
	if err != nil {
		return nil, errors.Wrap(err, "embed description")
	}

	hits, err := s.repo.SearchSimilar(ctx, pgvector.NewVector(vec), limit)
	if err != nil {
		return nil, errors.Wrap(err, "search similar patterns")
	}

	out := hits[:0]
	for _, h := range hits {
		if h.Similarity >= s.minSimilarity {
			out = append(out, h)
		}
	}
	return out, nil
}

// TracesForRequest returns every trace recorded for a request
func (s *Service) TracesForRequest(ctx context.Context, requestID uuid.UUID) ([]*Trace, error) {
	traces, err := s.repo.GetTracesByRequest(ctx, requestID)
	if err != nil {
		return nil, errors.Wrap(err, "get traces")
	}
	return traces, nil
}

// Describe renders a pattern as text for embedding
func Describe(p *Pattern) string {
	return fmt.Sprintf("%s: %s", p.TaskType, strings.Join(p.ToolSequence, " -> "))
}

func (s *Service) embed(ctx context.Context, text string) *pgvector.Vector {
	if s.embedder == nil {
		return nil
	}
	vec, err := s.embedder.GenerateEmbedding(ctx, text)
	if err != nil {
		s.log.Warnw("Failed to embed pattern", "error", err)
		return nil
	}
	v := pgvector.NewVector(vec)
	return &v
}
