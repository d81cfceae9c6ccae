package agents

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"
	"golang.org/x/sync/errgroup"

	"meridian/internal/adapters/config"
	domain "meridian/internal/domain/analysis"
	"meridian/internal/domain/insight"
	"meridian/internal/domain/reasoning"
	"meridian/internal/events"
	"meridian/internal/metrics"
	"meridian/pkg/errors"
	"meridian/pkg/logger"
)

const (
	// defaultFindingConfidence applies when a tool output carries no confidence
	defaultFindingConfidence = 0.7

	patternLookup = 5
)

// SpecialistOptions are the runtime settings shared by all specialists
type SpecialistOptions struct {
	ToolTimeout              time.Duration
	MaxToolConcurrency       int
	PeerInsightMinConfidence float64
	Advisor                  PatternAdvisor // optional
	Log                      *logger.Logger
}

// OptionsFromConfig builds specialist options from the orchestration config
func OptionsFromConfig(cfg config.OrchestrationConfig, advisor PatternAdvisor, log *logger.Logger) SpecialistOptions {
	return SpecialistOptions{
		ToolTimeout:              cfg.ToolTimeout,
		MaxToolConcurrency:       cfg.MaxToolConcurrency,
		PeerInsightMinConfidence: cfg.PeerInsightMinConfidence,
		Advisor:                  advisor,
		Log:                      log,
	}
}

// Analyst is the specialist implementation shared by all variants. Variants differ only in AgentConfig.
type Analyst struct {
	id       string
	cfg      AgentConfig
	opts     SpecialistOptions
	taskType reasoning.TaskType
	log      *logger.Logger
}

// NewAnalyst creates a specialist for one assignment
func NewAnalyst(cfg AgentConfig, opts SpecialistOptions) *Analyst {
	log := opts.Log
	if log == nil {
		log = logger.Get()
	}
	id := fmt.Sprintf("%s-%s", cfg.Type, uuid.NewString()[:8])
	return &Analyst{
		id:       id,
		cfg:      cfg,
		opts:     opts,
		taskType: reasoning.InferTaskType(string(cfg.Type)),
		log:      log.With("component", "specialist", "agent_type", cfg.Type, "agent_id", id),
	}
}

// ID returns the instance id
func (a *Analyst) ID() string { return a.id }

// Type returns the variant
func (a *Analyst) Type() domain.AgentType { return a.cfg.Type }

type toolCall struct {
	spec     ToolSpec
	output   map[string]any
	err      error
	duration time.Duration
}

// Execute runs the step's tools, converts their outputs to findings and shares a headline insight.
// It fails only when every tool call fails; the returned Execution still carries the trace then.
func (a *Analyst) Execute(ctx context.Context, ec ExecutionContext) (*Execution, error) {
	if ec.Tools == nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "execution context has no tool caller")
	}

	log := a.log.With("request_id", ec.RequestID, "assignment_id", ec.AssignmentID)
	trace := &reasoning.Trace{
		ID:        uuid.New(),
		RequestID: ec.RequestID,
		AgentType: string(a.cfg.Type),
		TaskType:  a.taskType,
		CreatedAt: time.Now(),
	}

	selected, source := a.selectTools(ctx, ec.Task)
	trace.Steps = append(trace.Steps, reasoning.Step{
		Phase:   reasoning.PhaseThink,
		Content: fmt.Sprintf("%s selection for %q: %s", source, ec.Task, strings.Join(selected, ", ")),
	})

	calls := a.callTools(ctx, ec, selected, a.toolParams(ec))

	var succeeded, failed []string
	invocations := make([]domain.ToolInvocation, 0, len(calls))
	for _, c := range calls {
		inv := domain.ToolInvocation{Tool: c.spec.Name, Succeeded: c.err == nil, Duration: c.duration}
		if c.err != nil {
			inv.Error = c.err.Error()
			failed = append(failed, c.spec.Name)
		} else {
			succeeded = append(succeeded, c.spec.Name)
		}
		invocations = append(invocations, inv)
	}

	trace.Steps = append(trace.Steps, reasoning.Step{
		Phase:     reasoning.PhaseAct,
		Content:   fmt.Sprintf("called %d tools", len(calls)),
		ToolCalls: succeeded,
	})

	if len(succeeded) == 0 {
		trace.Steps = append(trace.Steps, reasoning.Step{
			Phase:   reasoning.PhaseObserve,
			Content: fmt.Sprintf("all %d tool calls failed: %s", len(calls), strings.Join(failed, ", ")),
		})
		trace.Outcome = reasoning.OutcomeFailure
		log.Warnw("All tool calls failed", "tools", failed)
		return &Execution{Trace: trace}, errors.Wrapf(errors.ErrAllToolsFailed, "%s: %d calls", a.cfg.Type, len(calls))
	}

	var peers []insight.Insight
	if ec.Insights != nil {
		peers = ec.Insights.GetPeerInsights(a.id, a.opts.PeerInsightMinConfidence)
		if peerContext := ec.Insights.FormatPeerContext(a.id, a.opts.PeerInsightMinConfidence); peerContext != "" {
			trace.Steps = append(trace.Steps, reasoning.Step{Phase: reasoning.PhaseThink, Content: peerContext})
		}
	}

	findings := make([]domain.Finding, 0, len(succeeded))
	for _, c := range calls {
		if c.err == nil {
			findings = append(findings, toFinding(c.spec, c.output))
		}
	}

	confidence := a.confidence(findings, len(succeeded), len(calls))
	headline := headlineOf(findings)

	result := &domain.AnalysisResult{
		ID:               uuid.New(),
		AgentID:          a.id,
		AgentType:        a.cfg.Type,
		AssignmentID:     ec.AssignmentID,
		StepID:           ec.StepID,
		Findings:         findings,
		Summary:          a.summarize(headline, succeeded, failed, peers, ec.Dependencies),
		Confidence:       confidence,
		ToolInvocations:  invocations,
		PeerInsightsUsed: len(peers),
		CompletedAt:      time.Now(),
	}

	trace.Steps = append(trace.Steps, reasoning.Step{
		Phase:   reasoning.PhaseObserve,
		Content: fmt.Sprintf("%d of %d tools succeeded; %d peer insights", len(succeeded), len(calls), len(peers)),
	})

	if ec.Insights != nil {
		ec.Insights.Broadcast(ctx, insight.Insight{
			RequestID:       ec.RequestID,
			SourceAgentType: string(a.cfg.Type),
			SourceAgentID:   a.id,
			Type:            insightTypeOf(findings),
			Content:         headline.Statement,
			Data:            map[string]interface{}{"tools": succeeded, "findings": len(findings)},
			Confidence:      confidence,
		})
	}

	a.emit(ec.Bus, events.AnalysisCompleted, events.CompletionPayload{
		Scope:        events.ScopeSpecialist,
		RequestID:    ec.RequestID.String(),
		AssignmentID: ec.AssignmentID.String(),
		AgentType:    string(a.cfg.Type),
		AgentID:      a.id,
		Findings:     len(findings),
		Confidence:   confidence,
	})

	trace.Steps = append(trace.Steps, reasoning.Step{Phase: reasoning.PhaseConclude, Content: result.Summary})
	trace.Outcome = reasoning.OutcomeSuccess
	if len(failed) > 0 {
		trace.Outcome = reasoning.OutcomePartial
	}

	log.Infow("Specialist finished",
		"findings", len(findings),
		"confidence", confidence,
		"failed_tools", len(failed),
		"peer_insights", len(peers),
	)

	return &Execution{Result: result, Trace: trace}, nil
}

// selectTools picks keyword matches (or the defaults), puts the best learned pattern's tools first
// and caps the list at MaxToolCalls.
func (a *Analyst) selectTools(ctx context.Context, task string) ([]string, string) {
	selected := matchTools(a.cfg, task)
	source := "keyword"
	if len(selected) == 0 {
		selected = append([]string(nil), a.cfg.DefaultTools...)
		source = "default"
	}

	if learned := a.learnedTools(ctx, task); len(learned) > 0 {
		selected = mergeUnique(learned, selected)
		source = "learned"
	}

	if a.cfg.MaxToolCalls > 0 && len(selected) > a.cfg.MaxToolCalls {
		selected = selected[:a.cfg.MaxToolCalls]
	}
	return selected, source
}

// learnedTools returns the tools of the best pattern recorded for this task type. When none is
// usable it falls back to patterns whose description is semantically close to the task.
func (a *Analyst) learnedTools(ctx context.Context, task string) []string {
	if a.opts.Advisor == nil {
		return nil
	}

	patterns, err := a.opts.Advisor.SearchPatterns(ctx, a.taskType, patternLookup)
	if err != nil {
		a.log.Debugw("Pattern lookup failed", "task_type", a.taskType, "error", err)
	}
	if tools := a.usableTools(patterns); len(tools) > 0 {
		return tools
	}

	similar, err := a.opts.Advisor.SuggestSimilar(ctx, task, patternLookup)
	if err != nil {
		a.log.Debugw("Similar pattern lookup failed", "task_type", a.taskType, "error", err)
		return nil
	}
	patterns = make([]*reasoning.Pattern, 0, len(similar))
	for _, sp := range similar {
		patterns = append(patterns, sp.Pattern)
	}
	return a.usableTools(patterns)
}

func (a *Analyst) usableTools(patterns []*reasoning.Pattern) []string {
	for _, p := range patterns {
		if p == nil || p.RewardScore < reasoning.NeutralReward {
			continue
		}
		var tools []string
		for _, name := range p.ToolSequence {
			if ValidateToolAccess(a.cfg.Type, name) {
				tools = append(tools, name)
			}
		}
		if len(tools) > 0 {
			return tools
		}
	}
	return nil
}

func (a *Analyst) toolParams(ec ExecutionContext) map[string]any {
	params := map[string]any{
		"task":       ec.Task,
		"request_id": ec.RequestID.String(),
		"agent_type": string(a.cfg.Type),
	}
	if len(ec.Dependencies) > 0 {
		deps := make([]any, 0, len(ec.Dependencies))
		for _, d := range ec.Dependencies {
			deps = append(deps, map[string]any{
				"agent_type": string(d.AgentType),
				"summary":    d.Summary,
				"confidence": d.Confidence,
			})
		}
		params["dependencies"] = deps
	}
	return params
}

// callTools runs the calls concurrently, bounded by MaxToolConcurrency. Results keep the input order.
func (a *Analyst) callTools(ctx context.Context, ec ExecutionContext, names []string, params map[string]any) []toolCall {
	calls := make([]toolCall, len(names))

	var g errgroup.Group
	if a.opts.MaxToolConcurrency > 0 {
		g.SetLimit(a.opts.MaxToolConcurrency)
	}
	for i, name := range names {
		g.Go(func() error {
			calls[i] = a.callTool(ctx, ec, name, cloneParams(params))
			return nil
		})
	}
	_ = g.Wait()

	return calls
}

func (a *Analyst) callTool(ctx context.Context, ec ExecutionContext, name string, params map[string]any) toolCall {
	spec, ok := toolSpec(a.cfg.Type, name)
	if !ok {
		spec = ToolSpec{Name: name}
	}
	call := toolCall{spec: spec}

	payload := events.ToolPayload{
		RequestID:    ec.RequestID.String(),
		AssignmentID: ec.AssignmentID.String(),
		AgentType:    string(a.cfg.Type),
		AgentID:      a.id,
		Tool:         name,
	}
	a.emit(ec.Bus, events.ToolCalled, payload)

	callCtx := ctx
	if a.opts.ToolTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.opts.ToolTimeout)
		defer cancel()
	}

	start := time.Now()
	call.output, call.err = invoke(callCtx, ec.Tools, name, params)
	call.duration = time.Since(start)
	metrics.RecordToolExecution(name, call.duration, call.err)

	payload.Duration = call.duration
	if call.err != nil {
		payload.Error = call.err.Error()
		a.emit(ec.Bus, events.ToolFailed, payload)
		return call
	}

	a.emit(ec.Bus, events.ToolSucceeded, payload)
	return call
}

// invoke calls the tool, turning a panic into an ordinary tool error
func invoke(ctx context.Context, tools ToolCaller, name string, params map[string]any) (out map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, errors.Wrapf(errors.ErrToolFailed, "%s panicked: %v", name, r)
		}
	}()

	out, err = tools.CallTool(ctx, name, params)
	if err != nil {
		return nil, errors.Wrapf(err, "tool %s", name)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// confidence = mean finding confidence × share of tool calls that succeeded
func (a *Analyst) confidence(findings []domain.Finding, succeeded, attempted int) float64 {
	if len(findings) == 0 || attempted == 0 {
		return 0
	}
	var sum float64
	for _, f := range findings {
		sum += f.Confidence
	}
	v := sum / float64(len(findings)) * float64(succeeded) / float64(attempted)
	return math.Round(clamp01(v)*1e4) / 1e4
}

func (a *Analyst) summarize(headline domain.Finding, succeeded, failed []string, peers []insight.Insight, deps []*domain.AnalysisResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %d of %d tools succeeded. %s", a.cfg.Name, len(succeeded), len(succeeded)+len(failed), headline.Statement)
	if len(failed) > 0 {
		fmt.Fprintf(&sb, " Failed: %s.", strings.Join(failed, ", "))
	}
	if len(deps) > 0 {
		names := make([]string, len(deps))
		for i, d := range deps {
			names[i] = string(d.AgentType)
		}
		fmt.Fprintf(&sb, " Built on: %s.", strings.Join(names, ", "))
	}
	if len(peers) > 0 {
		fmt.Fprintf(&sb, " Considered %d peer insights.", len(peers))
	}
	return sb.String()
}

func (a *Analyst) emit(bus *events.Bus, t events.Type, payload any) {
	if bus == nil {
		return
	}
	if err := bus.Emit(t, payload); err != nil {
		a.log.Warnw("Event handler failed", "event", t, "error", err)
	}
}

// toFinding reads the conventional keys of a tool output. Unknown keys stay in Data.
func toFinding(spec ToolSpec, out map[string]any) domain.Finding {
	f := domain.Finding{
		Statement:      firstString(out, "statement", "summary", "conclusion"),
		Data:           out,
		Confidence:     defaultFindingConfidence,
		Methodology:    spec.Methodology,
		Metric:         firstString(out, "metric"),
		Recommendation: firstString(out, "recommendation"),
	}

	if f.Statement == "" {
		f.Statement = fmt.Sprintf("%s returned %d fields", spec.Name, len(out))
	}
	if m := firstString(out, "methodology"); m != "" {
		f.Methodology = m
	}
	if f.Methodology == "" {
		f.Methodology = spec.Name
	}
	if raw, ok := out["confidence"]; ok {
		if c, err := cast.ToFloat64E(raw); err == nil {
			f.Confidence = clamp01(c)
		}
	}
	if raw, ok := out["value"]; ok {
		if v, err := cast.ToFloat64E(raw); err == nil {
			f.Value = &v
			if f.Metric == "" {
				f.Metric = spec.Name
			}
		}
	}
	if raw, ok := out["citations"]; ok {
		if c, err := cast.ToStringSliceE(raw); err == nil {
			f.Citations = c
		}
	}
	return f
}

func firstString(out map[string]any, keys ...string) string {
	for _, k := range keys {
		if raw, ok := out[k]; ok {
			if s, err := cast.ToStringE(raw); err == nil && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

// headlineOf returns the most confident finding, the earliest on ties
func headlineOf(findings []domain.Finding) domain.Finding {
	var best domain.Finding
	for i, f := range findings {
		if i == 0 || f.Confidence > best.Confidence {
			best = f
		}
	}
	return best
}

func insightTypeOf(findings []domain.Finding) insight.Type {
	for _, f := range findings {
		if f.Recommendation != "" {
			return insight.TypeRecommendation
		}
	}
	for _, f := range findings {
		if f.Value != nil {
			return insight.TypeMetric
		}
	}
	return insight.TypeObservation
}

func mergeUnique(first, rest []string) []string {
	seen := make(map[string]bool, len(first)+len(rest))
	out := make([]string, 0, len(first)+len(rest))
	for _, list := range [][]string{first, rest} {
		for _, s := range list {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}

func cloneParams(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
