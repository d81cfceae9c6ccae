package noop

import (
	"context"

	"meridian/pkg/errors"
)

// Tracker discards everything. Used when error tracking is disabled and in tests.
type Tracker struct{}

var _ errors.Tracker = (*Tracker)(nil)

// New creates a new no-op tracker
func New() *Tracker {
	return &Tracker{}
}

func (t *Tracker) CaptureError(ctx context.Context, err error, tags map[string]string) error {
	return nil
}

func (t *Tracker) CaptureMessage(ctx context.Context, message string, level errors.Level, tags map[string]string) error {
	return nil
}

func (t *Tracker) SetRequest(ctx context.Context, requestID string, query string) {}

func (t *Tracker) AddBreadcrumb(ctx context.Context, message string, category string, level errors.Level, data map[string]interface{}) {
}

func (t *Tracker) Flush(ctx context.Context) error {
	return nil
}
