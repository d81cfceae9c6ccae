package analysis

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"meridian/internal/adapters/config"
	domain "meridian/internal/domain/analysis"
	"meridian/internal/events"
	"meridian/pkg/errors"
	"meridian/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(zap.NewNop())
}

func testConfig() config.OrchestrationConfig {
	return config.OrchestrationConfig{
		ConfidenceThreshold: 0.6,
		MaxSpecialists:      6,
		DivergenceTolerance: 0.1,
	}
}

type fixedClassifier struct {
	intent domain.QueryIntent
}

func (c fixedClassifier) Classify(_ context.Context, query string) (domain.QueryIntent, error) {
	if err := ValidateQuery(query); err != nil {
		return domain.QueryIntent{}, err
	}
	return c.intent, nil
}

type stubRouter struct {
	matches []RouteMatch
	err     error
	calls   int
}

func (r *stubRouter) Route(context.Context, string) ([]RouteMatch, error) {
	r.calls++
	return r.matches, r.err
}

// recorder collects bus events in emission order
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) attach(bus *events.Bus) {
	bus.OnAny(func(e events.Event) error {
		r.mu.Lock()
		r.events = append(r.events, e)
		r.mu.Unlock()
		return nil
	})
}

func (r *recorder) count(t events.Type) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func (r *recorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

// runToAggregation drives a request through assignment and completes every dispatched assignment
func runToAggregation(t *testing.T, chief *ChiefAnalyst, query string) (*domain.AnalysisRequest, []*domain.AnalystAssignment) {
	t.Helper()
	ctx := context.Background()

	req, err := chief.CreateRequest(ctx, query, domain.PriorityNormal)
	require.NoError(t, err)
	_, err = chief.CreatePlan(ctx, req.ID)
	require.NoError(t, err)
	assignments, err := chief.CreateAssignments(ctx, req.ID)
	require.NoError(t, err)

	for _, a := range assignments {
		if a.Status == domain.AssignmentSkipped {
			continue
		}
		require.NoError(t, chief.StartAssignment(req.ID, a.ID))
		require.NoError(t, chief.CompleteAssignment(req.ID, a.ID, uuid.New()))
	}
	return req, assignments
}

func TestChiefAnalyst_CreateRequest(t *testing.T) {
	bus := events.NewBus()
	rec := &recorder{}
	rec.attach(bus)
	chief := NewChiefAnalyst(testConfig(), nil, nil, bus, testLogger())

	req, err := chief.CreateRequest(context.Background(), "What is the DCF value of Apple stock", "urgent")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPending, req.Status)
	assert.Equal(t, domain.PriorityNormal, req.Priority, "unknown priority falls back to normal")
	assert.Equal(t, []domain.Domain{domain.DomainEquity}, req.Intent.Domains)
	assert.Equal(t, 1, rec.count(events.AnalysisRequested))
}

func TestChiefAnalyst_CreateRequestRejectsEmptyQuery(t *testing.T) {
	bus := events.NewBus()
	rec := &recorder{}
	rec.attach(bus)
	chief := NewChiefAnalyst(testConfig(), nil, nil, bus, testLogger())

	_, err := chief.CreateRequest(context.Background(), "  ", domain.PriorityHigh)
	assert.ErrorIs(t, err, errors.ErrPlanning)
	assert.Empty(t, chief.ListRequests(), "nothing stored on failure")
	assert.Zero(t, rec.count(events.AnalysisRequested))
}

func TestChiefAnalyst_InvalidTransitions(t *testing.T) {
	ctx := context.Background()
	chief := NewChiefAnalyst(testConfig(), nil, nil, events.NewBus(), testLogger())

	req, err := chief.CreateRequest(ctx, "Apple stock earnings", domain.PriorityNormal)
	require.NoError(t, err)

	_, err = chief.CreateAssignments(ctx, req.ID)
	assert.ErrorIs(t, err, errors.ErrInvalidTransition)

	_, err = chief.CreatePlan(ctx, req.ID)
	require.NoError(t, err)
	_, err = chief.CreatePlan(ctx, req.ID)
	assert.ErrorIs(t, err, errors.ErrInvalidTransition)

	assignments, err := chief.CreateAssignments(ctx, req.ID)
	require.NoError(t, err)

	_, err = chief.Aggregate(ctx, req.ID, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidTransition, "assignments still pending")

	require.NoError(t, chief.StartAssignment(req.ID, assignments[0].ID))
	assert.ErrorIs(t, chief.StartAssignment(req.ID, assignments[0].ID), errors.ErrInvalidTransition)

	require.NoError(t, chief.FailAssignment(req.ID, assignments[0].ID, errors.ErrAllToolsFailed))
	assert.ErrorIs(t, chief.CompleteAssignment(req.ID, assignments[0].ID, uuid.New()), errors.ErrInvalidTransition)

	_, err = chief.CreatePlan(ctx, uuid.New())
	assert.ErrorIs(t, err, errors.ErrNotFound)
	assert.ErrorIs(t, chief.StartAssignment(req.ID, uuid.New()), errors.ErrNotFound)
}

func TestChiefAnalyst_EscalationBoundary(t *testing.T) {
	tests := []struct {
		confidence float64
		want       domain.Status
		event      events.Type
	}{
		{0.59, domain.StatusEscalated, events.AnalysisEscalated},
		{0.60, domain.StatusCompleted, events.AnalysisCompleted},
		{0.85, domain.StatusCompleted, events.AnalysisCompleted},
	}

	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			bus := events.NewBus()
			rec := &recorder{}
			rec.attach(bus)
			chief := NewChiefAnalyst(testConfig(), nil, nil, bus, testLogger())

			req, assignments := runToAggregation(t, chief, "What is the DCF value of Apple stock")
			require.Len(t, assignments, 1)

			got, err := chief.GetRequest(req.ID)
			require.NoError(t, err)
			res := result(domain.AgentEquity, tt.confidence, finding("fair value 180"))
			res.StepID = got.Plan.Steps[0].ID

			agg, err := chief.Aggregate(context.Background(), req.ID, []*domain.AnalysisResult{res})
			require.NoError(t, err)
			assert.Equal(t, tt.want == domain.StatusEscalated, agg.Escalated)

			final, err := chief.GetRequest(req.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, final.Status)
			require.NotNil(t, final.Confidence)
			assert.InDelta(t, tt.confidence, final.Confidence.Value, 1e-9)
			assert.NotEmpty(t, final.Report)
			assert.NotNil(t, final.CompletedAt)

			typesSeen := rec.types()
			require.GreaterOrEqual(t, len(typesSeen), 2)
			assert.Equal(t, events.ResultAggregated, typesSeen[len(typesSeen)-2])
			assert.Equal(t, tt.event, typesSeen[len(typesSeen)-1])
		})
	}
}

func TestChiefAnalyst_ZeroResultsEscalate(t *testing.T) {
	bus := events.NewBus()
	rec := &recorder{}
	rec.attach(bus)
	chief := NewChiefAnalyst(testConfig(), nil, nil, bus, testLogger())

	req, assignments := runToAggregation(t, chief, "Apple stock earnings")
	require.NotEmpty(t, assignments)

	agg, err := chief.Aggregate(context.Background(), req.ID, nil)
	require.NoError(t, err)
	assert.True(t, agg.Escalated)
	assert.Equal(t, 1, rec.count(events.AnalysisEscalated))
	assert.Zero(t, rec.count(events.AnalysisCompleted))
}

func TestChiefAnalyst_MaxSpecialistsCap(t *testing.T) {
	bus := events.NewBus()
	rec := &recorder{}
	rec.attach(bus)

	classifier := fixedClassifier{intent: domain.QueryIntent{Domains: domain.AllDomains(), Complexity: 0.9}}
	chief := NewChiefAnalyst(testConfig(), classifier, nil, bus, testLogger())

	ctx := context.Background()
	req, err := chief.CreateRequest(ctx, "full cross-asset review", domain.PriorityHigh)
	require.NoError(t, err)
	plan, err := chief.CreatePlan(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 8)

	assignments, err := chief.CreateAssignments(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, assignments, 8)

	var dispatched, skipped []domain.AgentType
	for _, a := range assignments {
		if a.Status == domain.AssignmentSkipped {
			skipped = append(skipped, a.AgentType)
			assert.NotNil(t, a.FinishedAt)
			continue
		}
		dispatched = append(dispatched, a.AgentType)
	}

	assert.Len(t, dispatched, 6)
	assert.Equal(t, []domain.AgentType{domain.AgentPrivateMarkets, domain.AgentQuantRisk}, skipped)
	assert.Equal(t, 6, rec.count(events.AnalystAssigned))
}

func TestChiefAnalyst_RouterResolvesUnmappedDomains(t *testing.T) {
	ctx := context.Background()
	classifier := fixedClassifier{intent: domain.QueryIntent{Domains: []domain.Domain{"portfolio_construction"}}}

	router := &stubRouter{matches: []RouteMatch{{AgentType: domain.AgentQuantRisk, Score: 0.8}}}
	chief := NewChiefAnalyst(testConfig(), classifier, router, events.NewBus(), testLogger())

	req, err := chief.CreateRequest(ctx, "rebalance the model portfolio", domain.PriorityNormal)
	require.NoError(t, err)
	_, err = chief.CreatePlan(ctx, req.ID)
	require.NoError(t, err)
	assignments, err := chief.CreateAssignments(ctx, req.ID)
	require.NoError(t, err)

	require.Len(t, assignments, 1)
	assert.Equal(t, domain.AgentQuantRisk, assignments[0].AgentType)
	assert.Equal(t, 1, router.calls)
}

func TestChiefAnalyst_RouterFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	classifier := fixedClassifier{intent: domain.QueryIntent{Domains: []domain.Domain{"portfolio_construction"}}}

	router := &stubRouter{err: errors.ErrUnavailable}
	chief := NewChiefAnalyst(testConfig(), classifier, router, events.NewBus(), testLogger())

	req, err := chief.CreateRequest(ctx, "rebalance the model portfolio", domain.PriorityNormal)
	require.NoError(t, err)
	_, err = chief.CreatePlan(ctx, req.ID)
	require.NoError(t, err)
	assignments, err := chief.CreateAssignments(ctx, req.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.AgentEquity, assignments[0].AgentType)
}

func TestChiefAnalyst_MappedDomainSkipsRouter(t *testing.T) {
	ctx := context.Background()
	router := &stubRouter{matches: []RouteMatch{{AgentType: domain.AgentMacro}}}
	chief := NewChiefAnalyst(testConfig(), nil, router, events.NewBus(), testLogger())

	req, err := chief.CreateRequest(ctx, "credit spreads on high yield", domain.PriorityNormal)
	require.NoError(t, err)
	_, err = chief.CreatePlan(ctx, req.ID)
	require.NoError(t, err)
	assignments, err := chief.CreateAssignments(ctx, req.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.AgentCredit, assignments[0].AgentType)
	assert.Zero(t, router.calls)
}

func TestChiefAnalyst_SnapshotsAreIsolated(t *testing.T) {
	chief := NewChiefAnalyst(testConfig(), nil, nil, events.NewBus(), testLogger())
	req, assignments := runToAggregation(t, chief, "Apple stock earnings")

	assignments[0].Status = domain.AssignmentPending

	got, err := chief.GetRequest(req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentCompleted, got.Assignments[0].Status)
	assert.Equal(t, domain.StatusInProgress, got.Status)

	got.Status = domain.StatusCompleted
	again, err := chief.GetRequest(req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, again.Status)
}

func TestChiefAnalyst_EventHandlerErrorsDoNotFailRequests(t *testing.T) {
	bus := events.NewBus()
	bus.On(events.AnalysisRequested, func(events.Event) error { return errors.ErrInternal })
	chief := NewChiefAnalyst(testConfig(), nil, nil, bus, testLogger())

	_, err := chief.CreateRequest(context.Background(), "Apple stock earnings", domain.PriorityLow)
	assert.NoError(t, err)
	assert.Len(t, chief.ListRequests(), 1)
}

func TestChiefAnalyst_CreateRequestNormalizesIntent(t *testing.T) {
	tests := []struct {
		name           string
		router         Router
		intent         domain.QueryIntent
		wantDomains    []domain.Domain
		wantComplexity float64
	}{
		{
			name:           "complexity above one is clamped",
			intent:         domain.QueryIntent{Domains: []domain.Domain{domain.DomainMacro}, Complexity: 7},
			wantDomains:    []domain.Domain{domain.DomainMacro},
			wantComplexity: 1,
		},
		{
			name:           "negative complexity is clamped",
			intent:         domain.QueryIntent{Domains: []domain.Domain{domain.DomainCredit}, Complexity: -0.4},
			wantDomains:    []domain.Domain{domain.DomainCredit},
			wantComplexity: 0,
		},
		{
			name:           "duplicates and unknown domains dropped without a router",
			intent:         domain.QueryIntent{Domains: []domain.Domain{domain.DomainEquity, "astrology", domain.DomainEquity, ""}, Complexity: 0.3},
			wantDomains:    []domain.Domain{domain.DomainEquity},
			wantComplexity: 0.3,
		},
		{
			name:           "unknown domains kept for the router",
			router:         &stubRouter{},
			intent:         domain.QueryIntent{Domains: []domain.Domain{"portfolio_construction", domain.DomainMacro}, Complexity: 0.5},
			wantDomains:    []domain.Domain{"portfolio_construction", domain.DomainMacro},
			wantComplexity: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chief := NewChiefAnalyst(testConfig(), fixedClassifier{intent: tt.intent}, tt.router, events.NewBus(), testLogger())

			req, err := chief.CreateRequest(context.Background(), "rebalance the model portfolio", domain.PriorityNormal)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDomains, req.Intent.Domains)
			assert.Equal(t, tt.wantComplexity, req.Intent.Complexity)
		})
	}
}

func TestChiefAnalyst_CreateRequestRejectsOnlyUnknownDomains(t *testing.T) {
	classifier := fixedClassifier{intent: domain.QueryIntent{Domains: []domain.Domain{"astrology"}}}
	chief := NewChiefAnalyst(testConfig(), classifier, nil, events.NewBus(), testLogger())

	_, err := chief.CreateRequest(context.Background(), "read the stars for the index", domain.PriorityNormal)
	assert.ErrorIs(t, err, errors.ErrPlanning)
	assert.Empty(t, chief.ListRequests())
}
