package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"meridian/internal/adapters/config"
	errnoop "meridian/internal/adapters/errors/noop"
	domain "meridian/internal/domain/analysis"
	"meridian/internal/repository/memory"
	"meridian/pkg/logger"
)

func newTestContainer(t *testing.T, handler http.HandlerFunc) *Container {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewContainer()
	c.Config = &config.Config{
		App:           config.AppConfig{Name: "meridian", Env: "test"},
		Orchestration: config.DefaultOrchestration(),
		ToolService:   config.ToolServiceConfig{BaseURL: srv.URL},
	}
	c.Log = logger.New(zap.NewNop())
	c.ErrorTracker = errnoop.New()
	c.MustInitComponents()
	t.Cleanup(c.Cancel)
	return c
}

func TestContainer_WithoutStores(t *testing.T) {
	c := newTestContainer(t, func(w http.ResponseWriter, r *http.Request) {})

	assert.Nil(t, c.PG)
	assert.Nil(t, c.CH)
	assert.Nil(t, c.Redis)
	assert.IsType(t, &memory.ReasoningRepository{}, c.Repos.Reasoning)
	assert.Nil(t, c.Repos.Stats)
	assert.Nil(t, c.Repos.Insights)
	assert.Nil(t, c.Services.Router)
	assert.Nil(t, c.Background.StatsRecorder)
	assert.Nil(t, c.Background.Forwarder)
	assert.Nil(t, c.Background.FeedbackSvc)
	assert.Nil(t, c.MetricsServer)
	assert.Len(t, c.Services.Registry.List(), 8)
}

func TestContainer_Analyze(t *testing.T) {
	c := newTestContainer(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/invoke") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{"statement": "Fair value 180", "confidence": 0.9},
		})
	})
	require.NoError(t, c.Start())

	outcome, err := c.Analyze(context.Background(), "What is the DCF value of Apple stock", "HIGH")
	require.NoError(t, err)

	req := outcome.Request
	assert.Equal(t, domain.PriorityHigh, req.Priority)
	assert.Equal(t, domain.StatusCompleted, req.Status)
	assert.False(t, outcome.Escalated())
	assert.InDelta(t, 0.9, outcome.Confidence(), 1e-9)
	assert.Contains(t, req.Report, "Fair value 180")

	var out bytes.Buffer
	require.NoError(t, outcome.Render(&out))
	assert.Contains(t, out.String(), "Status:     completed")
	assert.Contains(t, out.String(), "Confidence: 0.90")
	assert.Contains(t, out.String(), "equity")

	c.Shutdown()
}

func TestContainer_AnalyzeToolServiceDown(t *testing.T) {
	c := newTestContainer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	outcome, err := c.Analyze(context.Background(), "What is the DCF value of Apple stock", "")
	require.NoError(t, err, "specialist failures settle on assignments")

	assert.Equal(t, domain.PriorityNormal, outcome.Request.Priority)
	assert.True(t, outcome.Escalated())
	assert.Zero(t, outcome.Confidence())
	for _, a := range outcome.Request.Assignments {
		assert.Equal(t, domain.AssignmentFailed, a.Status)
	}
}

func TestParsePriority(t *testing.T) {
	tests := map[string]domain.Priority{
		"":          domain.PriorityNormal,
		"low":       domain.PriorityLow,
		" Critical": domain.PriorityCritical,
		"urgent":    domain.PriorityNormal,
	}
	for in, want := range tests {
		assert.Equal(t, want, parsePriority(in), in)
	}
}

func TestAnalysisOutcome_RenderEmpty(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, (&AnalysisOutcome{}).Render(&out))
	assert.Equal(t, "no analysis\n", out.String())
}
