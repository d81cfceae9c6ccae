package analysis

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meridian/pkg/errors"
)

func TestStatus_Transitions(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		ok   bool
	}{
		{StatusPending, StatusPlanning, true},
		{StatusPlanning, StatusAssigned, true},
		{StatusAssigned, StatusInProgress, true},
		{StatusAssigned, StatusAggregating, true},
		{StatusInProgress, StatusAggregating, true},
		{StatusAggregating, StatusCompleted, true},
		{StatusAggregating, StatusEscalated, true},
		{StatusPending, StatusAssigned, false},
		{StatusInProgress, StatusCompleted, false},
		{StatusCompleted, StatusEscalated, false},
		{StatusEscalated, StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestAnalysisRequest_Transition(t *testing.T) {
	req := &AnalysisRequest{ID: uuid.New(), Status: StatusPending}

	require.NoError(t, req.Transition(StatusPlanning))
	assert.Equal(t, StatusPlanning, req.Status)

	err := req.Transition(StatusCompleted)
	assert.ErrorIs(t, err, errors.ErrInvalidTransition)
	assert.Equal(t, StatusPlanning, req.Status, "failed transition must not change status")
}

func TestStatus_Terminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusEscalated.Terminal())
	assert.False(t, StatusAggregating.Terminal())

	assert.True(t, AssignmentSkipped.Terminal())
	assert.True(t, AssignmentFailed.Terminal())
	assert.False(t, AssignmentInProgress.Terminal())
}

func TestAnalysisRequest_Lookups(t *testing.T) {
	stepA, stepB := uuid.New(), uuid.New()
	a1 := &AnalystAssignment{ID: uuid.New(), StepID: stepA, Status: AssignmentCompleted}
	a2 := &AnalystAssignment{ID: uuid.New(), StepID: stepB, Status: AssignmentSkipped}
	req := &AnalysisRequest{Assignments: []*AnalystAssignment{a1, a2}}

	got, ok := req.AssignmentForStep(stepB)
	require.True(t, ok)
	assert.Equal(t, a2.ID, got.ID)

	_, ok = req.Assignment(uuid.New())
	assert.False(t, ok)

	assert.Equal(t, 1, req.CountAssignments(AssignmentSkipped))
}
