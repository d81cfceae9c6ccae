package agents

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	domain "meridian/internal/domain/analysis"
	"meridian/internal/domain/insight"
	"meridian/internal/domain/reasoning"
	"meridian/internal/events"
	"meridian/internal/metrics"
	"meridian/internal/services/analysis"
	"meridian/pkg/errors"
	"meridian/pkg/logger"
)

// LearningStore receives traces and feedback. Satisfied by *reasoning.Service.
type LearningStore interface {
	RecordTrace(ctx context.Context, trace *reasoning.Trace) error
	RecordFeedback(ctx context.Context, feedback *reasoning.Feedback) error
}

// Orchestrator drives a request through the chief analyst and runs its specialists concurrently
type Orchestrator struct {
	chief    *analysis.ChiefAnalyst
	bus      *events.Bus
	registry *Registry
	tools    ToolCaller
	bank     LearningStore   // optional
	archive  insight.Archive // optional
	tracker  errors.Tracker  // optional
	log      *logger.Logger

	observerMu sync.Mutex
}

// NewOrchestrator creates an orchestrator. bank and archive may be nil.
func NewOrchestrator(
	chief *analysis.ChiefAnalyst,
	bus *events.Bus,
	registry *Registry,
	tools ToolCaller,
	bank LearningStore,
	archive insight.Archive,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		chief:    chief,
		bus:      bus,
		registry: registry,
		tools:    tools,
		bank:     bank,
		archive:  archive,
		log:      log.With("component", "orchestrator"),
	}
}

// WithTracker reports specialist panics and failed analyses to tracker, tagged with the request
func (o *Orchestrator) WithTracker(tracker errors.Tracker) *Orchestrator {
	o.tracker = tracker
	return o
}

// Observe forwards every bus event to fn. Calls are serialized across all observers
// and a panicking observer is logged, not propagated. The returned func detaches fn.
func (o *Orchestrator) Observe(fn func(events.Event)) func() {
	id := o.bus.OnAny(func(e events.Event) error {
		o.observerMu.Lock()
		defer o.observerMu.Unlock()
		defer func() {
			if r := recover(); r != nil {
				o.log.Errorw("Observer panicked", "event", e.Type, "panic", r)
			}
		}()
		fn(e)
		return nil
	})
	return func() { o.bus.Off(events.Any, id) }
}

type stepOutcome struct {
	result *domain.AnalysisResult
	done   chan struct{}
}

// Analyze runs the whole pipeline for one query and returns the settled request.
// Only planning errors are returned; specialist failures are recorded on their assignments.
func (o *Orchestrator) Analyze(ctx context.Context, query string, priority domain.Priority) (*domain.AnalysisRequest, error) {
	start := time.Now()

	req, err := o.chief.CreateRequest(ctx, query, priority)
	if err != nil {
		return nil, err
	}
	plan, err := o.chief.CreatePlan(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	assignments, err := o.chief.CreateAssignments(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	ctx = errors.WithRequestID(ctx, req.ID.String())
	if o.tracker != nil {
		o.tracker.SetRequest(ctx, req.ID.String(), req.Query)
		o.tracker.AddBreadcrumb(ctx, "plan created", "analysis", errors.LevelInfo, map[string]interface{}{
			"steps":    len(plan.Steps),
			"strategy": string(plan.Strategy),
		})
	}

	log := o.log.With("request_id", req.ID)
	insights := insight.NewBus(o.archive, o.log)

	outcomes := make(map[uuid.UUID]*stepOutcome, len(plan.Steps))
	for _, step := range plan.Steps {
		outcomes[step.ID] = &stepOutcome{done: make(chan struct{})}
	}

	var wg sync.WaitGroup
	dispatched := 0
	for _, a := range assignments {
		if a.Status == domain.AssignmentSkipped {
			close(outcomes[a.StepID].done)
			continue
		}
		step, ok := plan.Step(a.StepID)
		if !ok {
			return nil, errors.Wrapf(errors.ErrInternal, "assignment %s references unknown step", a.ID)
		}

		dispatched++
		wg.Add(1)
		go func(a *domain.AnalystAssignment, step domain.PlanStep) {
			defer wg.Done()
			defer close(outcomes[step.ID].done)
			outcomes[step.ID].result = o.runAssignment(ctx, req.ID, a, step, outcomes, insights)
		}(a, step)
	}

	wg.Wait()

	results := make([]*domain.AnalysisResult, 0, dispatched)
	for _, step := range plan.Steps {
		if r := outcomes[step.ID].result; r != nil {
			results = append(results, r)
		}
	}

	agg, err := o.chief.Aggregate(ctx, req.ID, results)
	if err != nil {
		o.capture(ctx, err, map[string]string{"stage": "aggregate"})
		return nil, errors.Wrap(err, "aggregate")
	}

	o.recordFeedback(ctx, req.ID, agg.Confidence.Value)

	log.Infow("Analysis finished",
		"dispatched", dispatched,
		"succeeded", len(results),
		"confidence", agg.Confidence.Value,
		"escalated", agg.Escalated,
		"insights", insights.Len(),
		"duration", time.Since(start),
	)

	return o.chief.GetRequest(req.ID)
}

// runAssignment waits for dependencies, runs one specialist and settles its assignment.
// Errors and panics stay inside this assignment.
func (o *Orchestrator) runAssignment(
	ctx context.Context,
	requestID uuid.UUID,
	a *domain.AnalystAssignment,
	step domain.PlanStep,
	outcomes map[uuid.UUID]*stepOutcome,
	insights *insight.Bus,
) (result *domain.AnalysisResult) {
	log := o.log.With("request_id", requestID, "assignment_id", a.ID, "agent_type", a.AgentType)

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err := errors.Wrapf(errors.ErrInternal, "specialist panic: %v", r)
			log.Errorw("Specialist panicked", "panic", r)
			o.capture(ctx, err, map[string]string{"agent_type": string(a.AgentType), "assignment_id": a.ID.String()})
			o.fail(requestID, a.ID, err)
		}
	}()

	deps := make([]*domain.AnalysisResult, 0, len(step.DependsOn))
	for _, depID := range step.DependsOn {
		dep, ok := outcomes[depID]
		if !ok {
			continue
		}
		select {
		case <-dep.done:
			if dep.result != nil {
				deps = append(deps, dep.result)
			}
		case <-ctx.Done():
			o.fail(requestID, a.ID, errors.Wrap(ctx.Err(), "waiting for dependencies"))
			return nil
		}
	}
	if err := ctx.Err(); err != nil {
		o.fail(requestID, a.ID, errors.Wrap(err, "before start"))
		return nil
	}

	specialist, err := o.registry.New(a.AgentType)
	if err != nil {
		o.fail(requestID, a.ID, err)
		return nil
	}

	if err := o.chief.StartAssignment(requestID, a.ID); err != nil {
		log.Errorw("Failed to start assignment", "error", err)
		return nil
	}

	exec, err := specialist.Execute(ctx, ExecutionContext{
		RequestID:    requestID,
		AssignmentID: a.ID,
		StepID:       step.ID,
		Task:         step.Description,
		Bus:          o.bus,
		Insights:     insights,
		Tools:        o.tools,
		Dependencies: deps,
	})

	if exec != nil && exec.Trace != nil {
		o.recordTrace(ctx, exec.Trace)
	}

	if err != nil {
		log.Warnw("Specialist failed", "error", err)
		o.fail(requestID, a.ID, err)
		return nil
	}
	if exec == nil || exec.Result == nil {
		o.fail(requestID, a.ID, errors.Wrap(errors.ErrInternal, "specialist returned no result"))
		return nil
	}

	if err := o.chief.CompleteAssignment(requestID, a.ID, exec.Result.ID); err != nil {
		log.Errorw("Failed to complete assignment", "error", err)
		return nil
	}
	return exec.Result
}

func (o *Orchestrator) fail(requestID, assignmentID uuid.UUID, cause error) {
	if err := o.chief.FailAssignment(requestID, assignmentID, cause); err != nil {
		o.log.Errorw("Failed to mark assignment failed",
			"request_id", requestID,
			"assignment_id", assignmentID,
			"cause", cause,
			"error", err,
		)
	}
}

func (o *Orchestrator) capture(ctx context.Context, err error, tags map[string]string) {
	if o.tracker == nil {
		return
	}
	if captureErr := o.tracker.CaptureError(ctx, err, tags); captureErr != nil {
		o.log.Warnw("Failed to report error", "error", captureErr)
	}
}

func (o *Orchestrator) recordTrace(ctx context.Context, trace *reasoning.Trace) {
	if o.bank == nil {
		return
	}
	if err := o.bank.RecordTrace(ctx, trace); err != nil {
		o.log.Warnw("Failed to record trace",
			"request_id", trace.RequestID,
			"agent_type", trace.AgentType,
			"error", err,
		)
	}
}

func (o *Orchestrator) recordFeedback(ctx context.Context, requestID uuid.UUID, score float64) {
	if o.bank == nil {
		return
	}
	err := o.bank.RecordFeedback(ctx, &reasoning.Feedback{
		RequestID: requestID,
		Score:     score,
		Comment:   "aggregated confidence",
		Automated: true,
	})
	if err != nil {
		o.log.Warnw("Failed to record automated feedback", "request_id", requestID, "error", err)
		return
	}
	metrics.RecordFeedback(score, true)
}
