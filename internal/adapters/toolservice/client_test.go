package toolservice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"meridian/internal/adapters/config"
	"meridian/pkg/errors"
	"meridian/pkg/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, maxRetries int) (*Client, *int32) {
	t.Helper()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(config.ToolServiceConfig{
		BaseURL:    srv.URL,
		APIKey:     "secret",
		MaxRetries: maxRetries,
	}, logger.New(zap.NewNop()), WithRetryPolicy(RetryPolicy{
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	}))
	require.NoError(t, err)
	return c, &calls
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestClient_CallTool(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/tools/dcf_model/invoke", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var params map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		assert.Equal(t, "value ACME", params["task"])

		writeJSON(w, http.StatusOK, map[string]any{
			"result": map[string]any{"summary": "fair value 42", "value": 42.5},
		})
	}, 2)

	result, err := c.CallTool(context.Background(), "dcf_model", map[string]any{
		"task":         "value ACME",
		"dependencies": []any{map[string]any{"agent_type": "macro_analyst"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "fair value 42", result["summary"])
	assert.Equal(t, 42.5, result["value"])
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	var n int32
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&n, 1) == 1 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "warming up"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"result": map[string]any{"ok": true}})
	}, 2)

	result, err := c.CallTool(context.Background(), "greeks_calculator", nil)
	require.NoError(t, err)
	assert.Equal(t, true, result["ok"])
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestClient_RetriesExhausted(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, map[string]any{"error": "slow down"})
	}, 2)

	_, err := c.CallTool(context.Background(), "value_at_risk", nil)
	assert.ErrorIs(t, err, errors.ErrToolServiceUnavailable)
	assert.Contains(t, err.Error(), "slow down")
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}

func TestClient_PermanentFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   any
		want   error
	}{
		{"bad request", http.StatusBadRequest, map[string]any{"error": "missing ticker"}, errors.ErrToolFailed},
		{"unknown tool", http.StatusNotFound, map[string]any{}, errors.ErrNotFound},
		{"error in body", http.StatusOK, map[string]any{"error": "no data for ticker"}, errors.ErrToolFailed},
		{"no result", http.StatusOK, map[string]any{"status": "ok"}, errors.ErrToolFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			}, 3)

			_, err := c.CallTool(context.Background(), "bond_pricer", nil)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, int32(1), atomic.LoadInt32(calls), "permanent failures are not retried")
		})
	}
}

func TestClient_MalformedResponse(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html>"))
	}, 0)

	_, err := c.CallTool(context.Background(), "lbo_model", nil)
	assert.ErrorIs(t, err, errors.ErrToolFailed)
}

func TestClient_RejectsUnencodableParams(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {}, 0)

	_, err := c.CallTool(context.Background(), "irr_calculator", map[string]any{"ch": make(chan int)})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestClient_CanceledContext(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"result": map[string]any{}})
	}, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.CallTool(ctx, "esg_score", nil)
	assert.Error(t, err)
}

func TestClient_Health(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/healthz", r.URL.Path)
		if healthy.Load() {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}, 0)

	assert.NoError(t, c.Health(context.Background()))
	healthy.Store(false)
	assert.ErrorIs(t, c.Health(context.Background()), errors.ErrToolServiceUnavailable)
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(config.ToolServiceConfig{}, logger.New(zap.NewNop()))
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = NewClient(config.ToolServiceConfig{BaseURL: "not a url"}, logger.New(zap.NewNop()))
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := RetryPolicy{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Backoff: BackoffExponential, Multiplier: 2}
	assert.Equal(t, 100*time.Millisecond, p.delay(0))
	assert.Equal(t, 400*time.Millisecond, p.delay(2))
	assert.Equal(t, time.Second, p.delay(5))

	p.Backoff = BackoffLinear
	assert.Equal(t, 300*time.Millisecond, p.delay(2))

	p.Backoff = BackoffFixed
	assert.Equal(t, 100*time.Millisecond, p.delay(4))
}

func TestRetryable(t *testing.T) {
	assert.True(t, retryable(&statusError{code: http.StatusBadGateway}))
	assert.True(t, retryable(&statusError{code: http.StatusTooManyRequests}))
	assert.False(t, retryable(&statusError{code: http.StatusBadRequest}))
	assert.False(t, retryable(context.Canceled))
	assert.True(t, retryable(errors.New("read: connection reset by peer")))
	assert.False(t, retryable(errors.ErrToolFailed))
}
