package analysis

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"meridian/internal/adapters/config"
	domain "meridian/internal/domain/analysis"
	"meridian/internal/events"
	"meridian/internal/metrics"
	"meridian/pkg/errors"
	"meridian/pkg/logger"
)

// ChiefAnalyst owns analysis requests: intake, planning, assignment and aggregation.
//
// All request state is mutated under one lock. Public methods take request ids and
// return snapshots, so callers never share mutable state with the chief. Events are
// emitted after the lock is released; handler errors are logged, never returned.
type ChiefAnalyst struct {
	cfg        config.OrchestrationConfig
	classifier Classifier
	router     Router
	bus        *events.Bus
	log        *logger.Logger

	mu       sync.Mutex
	requests map[uuid.UUID]*domain.AnalysisRequest
}

// NewChiefAnalyst creates a chief analyst. classifier defaults to the keyword table; router may be nil.
func NewChiefAnalyst(
	cfg config.OrchestrationConfig,
	classifier Classifier,
	router Router,
	bus *events.Bus,
	log *logger.Logger,
) *ChiefAnalyst {
	if classifier == nil {
		classifier = NewKeywordClassifier()
	}
	return &ChiefAnalyst{
		cfg:        cfg,
		classifier: classifier,
		router:     router,
		bus:        bus,
		log:        log.With("component", "chief_analyst"),
		requests:   make(map[uuid.UUID]*domain.AnalysisRequest),
	}
}

// Threshold returns the confidence required for a completed analysis
func (c *ChiefAnalyst) Threshold() float64 {
	return c.cfg.ConfidenceThreshold
}

// CreateRequest classifies a query and registers a pending request.
// It fails only when the query cannot be classified; nothing is stored then.
func (c *ChiefAnalyst) CreateRequest(ctx context.Context, query string, priority domain.Priority) (*domain.AnalysisRequest, error) {
	if err := ValidateQuery(query); err != nil {
		metrics.RecordAnalysis("rejected", "", 0, 0)
		return nil, err
	}

	intent, err := c.classifier.Classify(ctx, query)
	if err != nil {
		metrics.RecordAnalysis("rejected", "", 0, 0)
		if errors.Is(err, errors.ErrPlanning) {
			return nil, err
		}
		return nil, errors.Wrapf(errors.ErrPlanning, "classify query: %v", err)
	}
	intent = normalizeIntent(intent, c.router != nil)
	if len(intent.Domains) == 0 {
		metrics.RecordAnalysis("rejected", "", 0, 0)
		return nil, errors.Wrap(errors.ErrPlanning, "classifier returned no known domains")
	}
	if !priority.Valid() {
		priority = domain.PriorityNormal
	}

	now := time.Now()
	req := &domain.AnalysisRequest{
		ID:        uuid.New(),
		Query:     query,
		Intent:    intent,
		Priority:  priority,
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	c.mu.Lock()
	c.requests[req.ID] = req
	snapshot := cloneRequest(req)
	c.mu.Unlock()

	c.log.Infow("Analysis requested",
		"request_id", req.ID,
		"domains", intent.Domains,
		"complexity", intent.Complexity,
		"priority", priority,
	)

	c.emit(events.AnalysisRequested, events.RequestPayload{
		RequestID:  req.ID.String(),
		Query:      query,
		Priority:   string(priority),
		Domains:    domainStrings(intent.Domains),
		Complexity: intent.Complexity,
	})

	return snapshot, nil
}

// CreatePlan decomposes a pending request into a research plan
func (c *ChiefAnalyst) CreatePlan(ctx context.Context, requestID uuid.UUID) (*domain.ResearchPlan, error) {
	c.mu.Lock()
	req, err := c.lookup(requestID)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if req.Status != domain.StatusPending {
		c.mu.Unlock()
		return nil, errors.Wrapf(errors.ErrInvalidTransition, "plan requested in status %s", req.Status)
	}

	plan, err := buildPlan(req.Query, req.Intent)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}

	if err := req.Transition(domain.StatusPlanning); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	req.Plan = plan
	req.UpdatedAt = time.Now()
	c.mu.Unlock()

	c.log.Infow("Plan created",
		"request_id", requestID,
		"steps", len(plan.Steps),
		"strategy", plan.Strategy,
	)

	c.emit(events.PlanCreated, events.PlanPayload{
		RequestID:         requestID.String(),
		PlanID:            plan.ID.String(),
		Steps:             len(plan.Steps),
		Strategy:          string(plan.Strategy),
		EstimatedDuration: plan.EstimatedDuration,
	})

	return plan, nil
}

// CreateAssignments binds every plan step to a specialist type. Steps past
// MaxSpecialists get a skipped assignment that is never dispatched.
func (c *ChiefAnalyst) CreateAssignments(ctx context.Context, requestID uuid.UUID) ([]*domain.AnalystAssignment, error) {
	c.mu.Lock()
	req, err := c.lookup(requestID)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if req.Status != domain.StatusPlanning || req.Plan == nil {
		c.mu.Unlock()
		return nil, errors.Wrapf(errors.ErrInvalidTransition, "assignments requested in status %s", req.Status)
	}
	plan := req.Plan
	c.mu.Unlock()

	// Routing may call out to an embedder; keep it outside the lock
	agentTypes := make([]domain.AgentType, len(plan.Steps))
	for i, step := range plan.Steps {
		agentTypes[i] = c.resolveAgent(ctx, step)
	}

	now := time.Now()
	assignments := make([]*domain.AnalystAssignment, len(plan.Steps))
	for i, step := range plan.Steps {
		a := &domain.AnalystAssignment{
			ID:        uuid.New(),
			StepID:    step.ID,
			AgentType: agentTypes[i],
			Status:    domain.AssignmentPending,
			CreatedAt: now,
		}
		if i >= c.cfg.MaxSpecialists {
			a.Status = domain.AssignmentSkipped
			finished := now
			a.FinishedAt = &finished
			metrics.RecordAssignment(string(a.AgentType), string(domain.AssignmentSkipped), 0)
		}
		assignments[i] = a
	}

	c.mu.Lock()
	if err := req.Transition(domain.StatusAssigned); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	req.Assignments = assignments
	req.UpdatedAt = now
	out := cloneAssignments(assignments)
	c.mu.Unlock()

	skipped := 0
	for _, a := range out {
		if a.Status == domain.AssignmentSkipped {
			skipped++
			continue
		}
		c.emit(events.AnalystAssigned, events.AssignmentPayload{
			RequestID:    requestID.String(),
			AssignmentID: a.ID.String(),
			StepID:       a.StepID.String(),
			AgentType:    string(a.AgentType),
		})
	}

	if skipped > 0 {
		c.log.Warnw("Steps skipped over specialist limit",
			"request_id", requestID,
			"skipped", skipped,
			"max_specialists", c.cfg.MaxSpecialists,
		)
	}

	return out, nil
}

// resolveAgent maps a step to one specialist: the domain table first, then the router, then
// the first mapped domain, then the equity analyst.
func (c *ChiefAnalyst) resolveAgent(ctx context.Context, step domain.PlanStep) domain.AgentType {
	if len(step.Domains) == 1 {
		if a, ok := AgentForDomain(step.Domains[0]); ok {
			return a
		}
	}

	if c.router != nil {
		matches, err := c.router.Route(ctx, step.Description)
		if err == nil && len(matches) > 0 {
			return matches[0].AgentType
		}
		if err != nil {
			c.log.Warnw("Router unavailable, using domain table", "step_id", step.ID, "error", err)
		}
	}

	for _, d := range step.Domains {
		if a, ok := AgentForDomain(d); ok {
			return a
		}
	}
	return domain.AgentEquity
}

// StartAssignment marks an assignment in progress. The first start moves the request to in_progress.
func (c *ChiefAnalyst) StartAssignment(requestID, assignmentID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	req, a, err := c.lookupAssignment(requestID, assignmentID)
	if err != nil {
		return err
	}
	if a.Status != domain.AssignmentPending {
		return errors.Wrapf(errors.ErrInvalidTransition, "assignment %s is %s", assignmentID, a.Status)
	}

	now := time.Now()
	a.Status = domain.AssignmentInProgress
	a.StartedAt = &now

	if req.Status == domain.StatusAssigned {
		if err := req.Transition(domain.StatusInProgress); err != nil {
			return err
		}
	}
	req.UpdatedAt = now
	return nil
}

// CompleteAssignment records a successful assignment
func (c *ChiefAnalyst) CompleteAssignment(requestID, assignmentID, resultID uuid.UUID) error {
	return c.finishAssignment(requestID, assignmentID, domain.AssignmentCompleted, &resultID, "")
}

// FailAssignment records a failed assignment
func (c *ChiefAnalyst) FailAssignment(requestID, assignmentID uuid.UUID, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return c.finishAssignment(requestID, assignmentID, domain.AssignmentFailed, nil, msg)
}

func (c *ChiefAnalyst) finishAssignment(requestID, assignmentID uuid.UUID, status domain.AssignmentStatus, resultID *uuid.UUID, msg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	req, a, err := c.lookupAssignment(requestID, assignmentID)
	if err != nil {
		return err
	}
	if a.Status.Terminal() {
		return errors.Wrapf(errors.ErrInvalidTransition, "assignment %s already %s", assignmentID, a.Status)
	}

	now := time.Now()
	a.Status = status
	a.ResultID = resultID
	a.Error = msg
	a.FinishedAt = &now
	req.UpdatedAt = now

	var duration time.Duration
	if a.StartedAt != nil {
		duration = now.Sub(*a.StartedAt)
	}
	metrics.RecordAssignment(string(a.AgentType), string(status), duration)
	return nil
}

// Aggregate merges results under the plan's strategy and settles the request as
// completed or escalated. Escalation is an outcome, not an error.
func (c *ChiefAnalyst) Aggregate(ctx context.Context, requestID uuid.UUID, results []*domain.AnalysisResult) (*Aggregation, error) {
	c.mu.Lock()
	req, err := c.lookup(requestID)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if req.Plan == nil {
		c.mu.Unlock()
		return nil, errors.Wrap(errors.ErrInvalidTransition, "request has no plan")
	}
	for _, a := range req.Assignments {
		if !a.Status.Terminal() {
			c.mu.Unlock()
			return nil, errors.Wrapf(errors.ErrInvalidTransition, "assignment %s still %s", a.ID, a.Status)
		}
	}
	if err := req.Transition(domain.StatusAggregating); err != nil {
		c.mu.Unlock()
		return nil, err
	}

	plan := req.Plan
	ordered := append([]*domain.AnalysisResult(nil), results...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return plan.StepIndex(ordered[i].StepID) < plan.StepIndex(ordered[j].StepID)
	})

	agg := aggregate(plan.Strategy, ordered, c.cfg.DivergenceTolerance)
	agg.Escalated = len(ordered) == 0 || belowThreshold(agg.Confidence.Value, c.cfg.ConfidenceThreshold)

	final := domain.StatusCompleted
	if agg.Escalated {
		final = domain.StatusEscalated
	}
	if err := req.Transition(final); err != nil {
		c.mu.Unlock()
		return nil, err
	}

	now := time.Now()
	score := agg.Confidence
	req.Report = agg.Report
	req.Confidence = &score
	req.UpdatedAt = now
	req.CompletedAt = &now
	duration := now.Sub(req.CreatedAt)
	c.mu.Unlock()

	metrics.RecordAnalysis(string(final), string(agg.Strategy), score.Value, duration)

	c.log.Infow("Analysis aggregated",
		"request_id", requestID,
		"strategy", agg.Strategy,
		"results", len(ordered),
		"confidence", score.Value,
		"status", final,
	)

	c.emit(events.ResultAggregated, events.AggregationPayload{
		RequestID:  requestID.String(),
		Strategy:   string(agg.Strategy),
		Results:    len(ordered),
		Confidence: score.Value,
	})

	if agg.Escalated {
		reason := "confidence below threshold"
		if len(ordered) == 0 {
			reason = "no successful results"
		}
		c.emit(events.AnalysisEscalated, events.EscalationPayload{
			RequestID:  requestID.String(),
			Confidence: score.Value,
			Threshold:  c.cfg.ConfidenceThreshold,
			Reason:     reason,
		})
	} else {
		c.emit(events.AnalysisCompleted, events.CompletionPayload{
			Scope:      events.ScopeRequest,
			RequestID:  requestID.String(),
			Findings:   len(agg.Findings),
			Confidence: score.Value,
		})
	}

	return &agg, nil
}

// GetRequest returns a snapshot of a request
func (c *ChiefAnalyst) GetRequest(requestID uuid.UUID) (*domain.AnalysisRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	req, err := c.lookup(requestID)
	if err != nil {
		return nil, err
	}
	return cloneRequest(req), nil
}

// ListRequests returns snapshots of all requests, newest first
func (c *ChiefAnalyst) ListRequests() []*domain.AnalysisRequest {
	c.mu.Lock()
	out := make([]*domain.AnalysisRequest, 0, len(c.requests))
	for _, req := range c.requests {
		out = append(out, cloneRequest(req))
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (c *ChiefAnalyst) lookup(requestID uuid.UUID) (*domain.AnalysisRequest, error) {
	req, ok := c.requests[requestID]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "request %s", requestID)
	}
	return req, nil
}

func (c *ChiefAnalyst) lookupAssignment(requestID, assignmentID uuid.UUID) (*domain.AnalysisRequest, *domain.AnalystAssignment, error) {
	req, err := c.lookup(requestID)
	if err != nil {
		return nil, nil, err
	}
	a, ok := req.Assignment(assignmentID)
	if !ok {
		return nil, nil, errors.Wrapf(errors.ErrNotFound, "assignment %s", assignmentID)
	}
	return req, a, nil
}

func (c *ChiefAnalyst) emit(t events.Type, payload any) {
	if c.bus == nil {
		return
	}
	if err := c.bus.Emit(t, payload); err != nil {
		c.log.Warnw("Event handler failed", "event", t, "error", err)
	}
}

func cloneRequest(r *domain.AnalysisRequest) *domain.AnalysisRequest {
	cp := *r
	cp.Intent.Domains = append([]domain.Domain(nil), r.Intent.Domains...)
	cp.Assignments = cloneAssignments(r.Assignments)
	if r.Confidence != nil {
		score := *r.Confidence
		cp.Confidence = &score
	}
	return &cp
}

func cloneAssignments(in []*domain.AnalystAssignment) []*domain.AnalystAssignment {
	if in == nil {
		return nil
	}
	out := make([]*domain.AnalystAssignment, len(in))
	for i, a := range in {
		cp := *a
		out[i] = &cp
	}
	return out
}

func domainStrings(ds []domain.Domain) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = string(d)
	}
	return out
}
