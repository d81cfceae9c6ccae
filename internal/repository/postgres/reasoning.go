package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"meridian/internal/domain/reasoning"
	"meridian/pkg/errors"
)

// Compile-time check
var _ reasoning.Repository = (*ReasoningRepository)(nil)

const uniqueViolation = "23505"

// ReasoningRepository implements reasoning.Repository using sqlx and pgvector
type ReasoningRepository struct {
	db DBTX
}

// NewReasoningRepository creates a new reasoning repository
func NewReasoningRepository(db DBTX) *ReasoningRepository {
	return &ReasoningRepository{db: db}
}

type traceRow struct {
	ID        uuid.UUID          `db:"id"`
	RequestID uuid.UUID          `db:"request_id"`
	AgentType string             `db:"agent_type"`
	TaskType  reasoning.TaskType `db:"task_type"`
	Steps     []byte             `db:"steps"`
	Outcome   reasoning.Outcome  `db:"outcome"`
	CreatedAt time.Time          `db:"created_at"`
}

type patternRow struct {
	ID           uuid.UUID          `db:"id"`
	TaskType     reasoning.TaskType `db:"task_type"`
	ToolSequence pq.StringArray     `db:"tool_sequence"`
	AgentTypes   pq.StringArray     `db:"agent_types"`
	RewardScore  float64            `db:"reward_score"`
	UsageCount   int                `db:"usage_count"`
	Fingerprint  string             `db:"fingerprint"`
	Embedding    *pgvector.Vector   `db:"embedding"`
	CreatedAt    time.Time          `db:"created_at"`
	LastUsedAt   time.Time          `db:"last_used_at"`
}

type scoredPatternRow struct {
	patternRow
	Similarity float64 `db:"similarity"`
}

const patternColumns = `
	id, task_type, tool_sequence, agent_types, reward_score, usage_count,
	fingerprint, embedding, created_at, last_used_at`

// CreateTrace inserts a reasoning trace
func (r *ReasoningRepository) CreateTrace(ctx context.Context, trace *reasoning.Trace) error {
	steps, err := json.Marshal(trace.Steps)
	if err != nil {
		return errors.Wrap(err, "marshal trace steps")
	}

	query := `
		INSERT INTO reasoning_traces (
			id, request_id, agent_type, task_type, steps, outcome, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)`

	_, err = r.db.ExecContext(ctx, query,
		trace.ID, trace.RequestID, trace.AgentType, trace.TaskType, steps, trace.Outcome, trace.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "insert trace")
	}
	return nil
}

// GetTracesByRequest retrieves a request's traces in creation order
func (r *ReasoningRepository) GetTracesByRequest(ctx context.Context, requestID uuid.UUID) ([]*reasoning.Trace, error) {
	var rows []traceRow

	query := `
		SELECT id, request_id, agent_type, task_type, steps, outcome, created_at
		FROM reasoning_traces
		WHERE request_id = $1
		ORDER BY created_at ASC`

	if err := r.db.SelectContext(ctx, &rows, query, requestID); err != nil {
		return nil, errors.Wrap(err, "select traces")
	}

	traces := make([]*reasoning.Trace, 0, len(rows))
	for _, row := range rows {
		t := &reasoning.Trace{
			ID:        row.ID,
			RequestID: row.RequestID,
			AgentType: row.AgentType,
			TaskType:  row.TaskType,
			Outcome:   row.Outcome,
			CreatedAt: row.CreatedAt,
		}
		if err := json.Unmarshal(row.Steps, &t.Steps); err != nil {
			return nil, errors.Wrapf(err, "decode steps of trace %s", row.ID)
		}
		traces = append(traces, t)
	}
	return traces, nil
}

// CreateFeedback inserts feedback
func (r *ReasoningRepository) CreateFeedback(ctx context.Context, feedback *reasoning.Feedback) error {
	query := `
		INSERT INTO analysis_feedback (
			id, request_id, score, comment, automated, created_at
		) VALUES (
			:id, :request_id, :score, :comment, :automated, :created_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, feedback); err != nil {
		return errors.Wrap(err, "insert feedback")
	}
	return nil
}

// GetFeedbackByRequest retrieves a request's feedback in creation order
func (r *ReasoningRepository) GetFeedbackByRequest(ctx context.Context, requestID uuid.UUID) ([]*reasoning.Feedback, error) {
	var feedback []*reasoning.Feedback

	query := `
		SELECT id, request_id, score, comment, automated, created_at
		FROM analysis_feedback
		WHERE request_id = $1
		ORDER BY created_at ASC`

	if err := r.db.SelectContext(ctx, &feedback, query, requestID); err != nil {
		return nil, errors.Wrap(err, "select feedback")
	}
	return feedback, nil
}

// CreatePattern inserts a pattern. A duplicate fingerprint yields ErrAlreadyExists.
func (r *ReasoningRepository) CreatePattern(ctx context.Context, p *reasoning.Pattern) error {
	query := `
		INSERT INTO learning_patterns (` + patternColumns + `
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)`

	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.TaskType, pq.Array(p.ToolSequence), pq.Array(p.AgentTypes), p.RewardScore, p.UsageCount,
		p.Fingerprint, p.Embedding, p.CreatedAt, p.LastUsedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return errors.Wrapf(errors.ErrAlreadyExists, "pattern %s", p.Fingerprint)
		}
		return errors.Wrap(err, "insert pattern")
	}
	return nil
}

// UpdatePattern overwrites the mutable fields of a pattern, matched by fingerprint
func (r *ReasoningRepository) UpdatePattern(ctx context.Context, p *reasoning.Pattern) error {
	query := `
		UPDATE learning_patterns SET
			agent_types = $2,
			reward_score = $3,
			usage_count = $4,
			embedding = COALESCE($5, embedding),
			last_used_at = $6
		WHERE fingerprint = $1`

	res, err := r.db.ExecContext(ctx, query,
		p.Fingerprint, pq.Array(p.AgentTypes), p.RewardScore, p.UsageCount, p.Embedding, p.LastUsedAt,
	)
	if err != nil {
		return errors.Wrap(err, "update pattern")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "update pattern rows")
	}
	if n == 0 {
		return errors.Wrapf(errors.ErrNotFound, "pattern %s", p.Fingerprint)
	}
	return nil
}

// GetPatternByFingerprint retrieves a pattern or ErrNotFound
func (r *ReasoningRepository) GetPatternByFingerprint(ctx context.Context, fingerprint string) (*reasoning.Pattern, error) {
	var row patternRow

	query := `SELECT ` + patternColumns + ` FROM learning_patterns WHERE fingerprint = $1`

	if err := r.db.GetContext(ctx, &row, query, fingerprint); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.ErrNotFound
		}
		return nil, errors.Wrap(err, "get pattern")
	}
	return row.toPattern(), nil
}

// ListPatternsByTaskType returns patterns ordered by reward, then usage
func (r *ReasoningRepository) ListPatternsByTaskType(ctx context.Context, taskType reasoning.TaskType, limit int) ([]*reasoning.Pattern, error) {
	var rows []patternRow

	query := `
		SELECT ` + patternColumns + `
		FROM learning_patterns
		WHERE task_type = $1
		ORDER BY reward_score DESC, usage_count DESC
		LIMIT $2`

	if err := r.db.SelectContext(ctx, &rows, query, taskType, limitOrAll(limit)); err != nil {
		return nil, errors.Wrap(err, "list patterns")
	}

	patterns := make([]*reasoning.Pattern, len(rows))
	for i := range rows {
		patterns[i] = rows[i].toPattern()
	}
	return patterns, nil
}

// SearchSimilar performs semantic search using pgvector cosine distance
func (r *ReasoningRepository) SearchSimilar(ctx context.Context, embedding pgvector.Vector, limit int) ([]reasoning.ScoredPattern, error) {
	var rows []scoredPatternRow

	query := `
		SELECT ` + patternColumns + `, 1 - (embedding <=> $1) AS similarity
		FROM learning_patterns
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $2`

	if err := r.db.SelectContext(ctx, &rows, query, embedding, limitOrAll(limit)); err != nil {
		return nil, errors.Wrap(err, "search similar patterns")
	}

	hits := make([]reasoning.ScoredPattern, len(rows))
	for i := range rows {
		hits[i] = reasoning.ScoredPattern{
			Pattern:    rows[i].toPattern(),
			Similarity: rows[i].Similarity,
		}
	}
	return hits, nil
}

func (row patternRow) toPattern() *reasoning.Pattern {
	return &reasoning.Pattern{
		ID:           row.ID,
		TaskType:     row.TaskType,
		ToolSequence: []string(row.ToolSequence),
		AgentTypes:   []string(row.AgentTypes),
		RewardScore:  row.RewardScore,
		UsageCount:   row.UsageCount,
		Fingerprint:  row.Fingerprint,
		Embedding:    row.Embedding,
		CreatedAt:    row.CreatedAt,
		LastUsedAt:   row.LastUsedAt,
	}
}

// limitOrAll maps a non-positive limit to NULL, which Postgres treats as LIMIT ALL
func limitOrAll(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}
