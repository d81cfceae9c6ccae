package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"meridian/pkg/errors"
)

type capturingTracker struct {
	errs []error
	tags []map[string]string
}

func (t *capturingTracker) CaptureError(_ context.Context, err error, tags map[string]string) error {
	t.errs = append(t.errs, err)
	t.tags = append(t.tags, tags)
	return nil
}

func (t *capturingTracker) CaptureMessage(context.Context, string, errors.Level, map[string]string) error {
	return nil
}

func (t *capturingTracker) SetRequest(context.Context, string, string) {}

func (t *capturingTracker) AddBreadcrumb(context.Context, string, string, errors.Level, map[string]interface{}) {
}

func (t *capturingTracker) Flush(context.Context) error { return nil }

func TestLogger_ErrorsReachTracker(t *testing.T) {
	tracker := &capturingTracker{}
	log := &Logger{SugaredLogger: zap.NewNop().Sugar(), errorTracker: tracker}

	log.Errorf("tool %s failed", "dcf_model")
	log.With("component", "orchestrator").Error("boom")
	log.Infow("not reported", "k", "v")

	require.Len(t, tracker.errs, 2)
	assert.EqualError(t, tracker.errs[0], "tool dcf_model failed")
	assert.ErrorIs(t, tracker.errs[1], errors.ErrInternal)
	assert.Equal(t, "logger", tracker.tags[0]["component"])
}

func TestLogger_NoTracker(t *testing.T) {
	log := New(zap.NewNop())
	assert.NotPanics(t, func() {
		log.Error("boom")
		log.Errorf("boom %d", 1)
	})
}
