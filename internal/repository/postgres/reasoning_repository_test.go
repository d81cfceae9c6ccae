package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meridian/internal/domain/reasoning"
	"meridian/internal/testsupport"
	"meridian/pkg/errors"
)

func newPattern(taskType reasoning.TaskType, reward float64, tools ...string) *reasoning.Pattern {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &reasoning.Pattern{
		ID:           uuid.New(),
		TaskType:     taskType,
		ToolSequence: tools,
		AgentTypes:   []string{"equity_analyst"},
		RewardScore:  reward,
		UsageCount:   1,
		Fingerprint:  testsupport.UniqueName("fp"),
		CreatedAt:    now,
		LastUsedAt:   now,
	}
}

func TestReasoningRepository_Traces(t *testing.T) {
	requireIntegration(t)
	testDB := testsupport.NewTestPostgres(t)
	repo := NewReasoningRepository(testDB.Tx())
	ctx := context.Background()

	requestID := uuid.New()
	trace := &reasoning.Trace{
		ID:        uuid.New(),
		RequestID: requestID,
		AgentType: "credit_analyst",
		TaskType:  reasoning.TaskCreditAssessment,
		Steps: []reasoning.Step{
			{Phase: reasoning.PhaseThink, Content: "assess leverage"},
			{Phase: reasoning.PhaseAct, Content: "call tools", ToolCalls: []string{"default_probability"}},
		},
		Outcome:   reasoning.OutcomeSuccess,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.CreateTrace(ctx, trace))

	traces, err := repo.GetTracesByRequest(ctx, requestID)
	require.NoError(t, err)
	require.Len(t, traces, 1)
	assert.Equal(t, trace.Steps, traces[0].Steps)
	assert.Equal(t, []string{"default_probability"}, traces[0].ToolNames())
}

func TestReasoningRepository_Feedback(t *testing.T) {
	requireIntegration(t)
	testDB := testsupport.NewTestPostgres(t)
	repo := NewReasoningRepository(testDB.Tx())
	ctx := context.Background()

	requestID := uuid.New()
	fb := &reasoning.Feedback{ID: uuid.New(), RequestID: requestID, Score: 0.8, Comment: "useful", CreatedAt: time.Now().UTC()}
	require.NoError(t, repo.CreateFeedback(ctx, fb))

	got, err := repo.GetFeedbackByRequest(ctx, requestID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0.8, got[0].Score)
	assert.False(t, got[0].Automated)
}

func TestReasoningRepository_Patterns(t *testing.T) {
	requireIntegration(t)
	testDB := testsupport.NewTestPostgres(t)
	repo := NewReasoningRepository(testDB.Tx())
	ctx := context.Background()

	low := newPattern(reasoning.TaskValuation, 0.4, "dcf_model")
	high := newPattern(reasoning.TaskValuation, 0.9, "dcf_model", "wacc_calculator")
	require.NoError(t, repo.CreatePattern(ctx, low))
	require.NoError(t, repo.CreatePattern(ctx, high))

	dup := *low
	dup.ID = uuid.New()
	err := repo.CreatePattern(ctx, &dup)
	assert.ErrorIs(t, err, errors.ErrAlreadyExists)

	list, err := repo.ListPatternsByTaskType(ctx, reasoning.TaskValuation, 0)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(list), 2)
	assert.GreaterOrEqual(t, list[0].RewardScore, list[1].RewardScore)

	low.RewardScore = 0.55
	low.UsageCount = 2
	low.AgentTypes = append(low.AgentTypes, "quant_risk_analyst")
	require.NoError(t, repo.UpdatePattern(ctx, low))

	got, err := repo.GetPatternByFingerprint(ctx, low.Fingerprint)
	require.NoError(t, err)
	assert.Equal(t, 0.55, got.RewardScore)
	assert.Equal(t, 2, got.UsageCount)
	assert.Equal(t, []string{"equity_analyst", "quant_risk_analyst"}, got.AgentTypes)
	assert.Nil(t, got.Embedding)

	_, err = repo.GetPatternByFingerprint(ctx, "missing")
	assert.ErrorIs(t, err, errors.ErrNotFound)

	err = repo.UpdatePattern(ctx, &reasoning.Pattern{Fingerprint: "missing"})
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestReasoningRepository_SearchSimilar(t *testing.T) {
	requireIntegration(t)
	testDB := testsupport.NewTestPostgres(t)
	repo := NewReasoningRepository(testDB.Tx())
	ctx := context.Background()

	near := newPattern(reasoning.TaskRiskAnalysis, 0.7, "value_at_risk")
	near.Embedding = testEmbedding(0.1)
	far := newPattern(reasoning.TaskRiskAnalysis, 0.7, "stress_test")
	far.Embedding = testEmbedding(-5)
	plain := newPattern(reasoning.TaskRiskAnalysis, 0.7, "value_at_risk", "stress_test")

	for _, p := range []*reasoning.Pattern{near, far, plain} {
		require.NoError(t, repo.CreatePattern(ctx, p))
	}

	hits, err := repo.SearchSimilar(ctx, *testEmbedding(0), 10)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(hits), 2)
	assert.Equal(t, near.Fingerprint, hits[0].Pattern.Fingerprint)
	assert.Greater(t, hits[0].Similarity, 0.9)
	for _, h := range hits {
		assert.NotEqual(t, plain.Fingerprint, h.Pattern.Fingerprint, "patterns without embeddings are not searchable")
	}
}
