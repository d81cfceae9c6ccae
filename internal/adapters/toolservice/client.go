package toolservice

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"meridian/internal/adapters/config"
	"meridian/internal/metrics"
	"meridian/pkg/errors"
	"meridian/pkg/logger"
)

const maxResponseBytes = 4 << 20

// Client invokes analytical tools on the remote tool service.
//
// POST {base}/v1/tools/{name}/invoke with the params as a JSON object. The service
// answers {"result": {...}} or {"error": "..."}.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *limiter
	retry   RetryPolicy
	log     *logger.Logger
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithRetryPolicy replaces the retry schedule
func WithRetryPolicy(p RetryPolicy) Option {
	return func(cl *Client) { cl.retry = p.withDefaults() }
}

// NewClient creates a tool service client
func NewClient(cfg config.ToolServiceConfig, log *logger.Logger, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.NewValidationError("TOOL_SERVICE_URL", "is required", cfg.BaseURL)
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, errors.NewValidationError("TOOL_SERVICE_URL", err.Error(), cfg.BaseURL)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	policy := DefaultRetryPolicy()
	policy.MaxRetries = cfg.MaxRetries

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		limiter: newLimiter(cfg.RequestsPerMinute),
		retry:   policy.withDefaults(),
		log:     log.With("component", "tool_service"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CallTool invokes one tool and returns its result object
func (c *Client) CallTool(ctx context.Context, name string, params map[string]any) (map[string]any, error) {
	body, err := encodeParams(params)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "tool %s params: %v", name, err)
	}

	var result map[string]any
	err = c.retry.do(ctx, func() error {
		if err := c.limiter.wait(ctx); err != nil {
			return err
		}
		var callErr error
		result, callErr = c.invoke(ctx, name, body)
		return callErr
	}, func(attempt int, err error) {
		metrics.RecordToolRetry(name)
		c.log.Warnw("Retrying tool call", "tool", name, "attempt", attempt, "error", err)
	})
	if err == nil {
		return result, nil
	}

	var status *statusError
	if errors.As(err, &status) && retryable(status) {
		return nil, errors.Wrapf(errors.ErrToolServiceUnavailable, "tool %s: %v", name, err)
	}
	return nil, err
}

func (c *Client) invoke(ctx context.Context, name string, body []byte) (map[string]any, error) {
	endpoint := fmt.Sprintf("%s/v1/tools/%s/invoke", c.baseURL, url.PathEscape(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}

	payload, decodeErr := decodeResponse(raw)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.Wrapf(errors.ErrNotFound, "tool %s is not registered", name)
	case resp.StatusCode >= 400:
		msg := ""
		if decodeErr == nil {
			msg, _ = payload["error"].(string)
		}
		status := &statusError{code: resp.StatusCode, message: msg}
		if retryable(status) {
			return nil, status
		}
		return nil, errors.Wrapf(errors.ErrToolFailed, "tool %s: %s (%d)", name, status.Error(), resp.StatusCode)
	}

	if decodeErr != nil {
		return nil, errors.Wrapf(errors.ErrToolFailed, "tool %s: malformed response: %v", name, decodeErr)
	}
	if msg, ok := payload["error"].(string); ok && msg != "" {
		return nil, errors.Wrapf(errors.ErrToolFailed, "tool %s: %s", name, msg)
	}

	result, ok := payload["result"].(map[string]any)
	if !ok {
		return nil, errors.Wrapf(errors.ErrToolFailed, "tool %s: response has no result object", name)
	}
	return result, nil
}

// Health checks the service's health endpoint
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(errors.ErrToolServiceUnavailable, "health check: %v", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return errors.Wrapf(errors.ErrToolServiceUnavailable, "health check returned %d", resp.StatusCode)
	}
	return nil
}

// encodeParams round-trips params through structpb so only JSON-representable values are sent
func encodeParams(params map[string]any) ([]byte, error) {
	if params == nil {
		params = map[string]any{}
	}
	msg, err := structpb.NewStruct(params)
	if err != nil {
		return nil, err
	}
	return protojson.Marshal(msg)
}

func decodeResponse(raw []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.New("empty body")
	}
	var msg structpb.Struct
	if err := protojson.Unmarshal(raw, &msg); err != nil {
		return nil, err
	}
	return msg.AsMap(), nil
}
