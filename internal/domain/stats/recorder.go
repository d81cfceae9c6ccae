package stats

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"meridian/internal/events"
	"meridian/pkg/errors"
	"meridian/pkg/logger"
)

// Recorder buffers ToolSucceeded/ToolFailed events from the bus and writes them in batches.
// It never fails an emit: when the buffer is full the oldest events are dropped.
type Recorder struct {
	repo      Repository
	batchSize int
	maxBuffer int
	log       *logger.Logger

	mu      sync.Mutex
	batch   []ToolUsageEvent
	written int64
	dropped int64
	failed  int64
}

// NewRecorder creates a recorder flushing batchSize events at a time
func NewRecorder(repo Repository, batchSize int, log *logger.Logger) *Recorder {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Recorder{
		repo:      repo,
		batchSize: batchSize,
		maxBuffer: batchSize * 10,
		batch:     make([]ToolUsageEvent, 0, batchSize),
		log:       log.With("component", "tool_stats_recorder"),
	}
}

// Attach subscribes the recorder to tool outcome events
func (r *Recorder) Attach(bus *events.Bus) {
	bus.On(events.ToolSucceeded, r.Handle)
	bus.On(events.ToolFailed, r.Handle)
}

// Handle converts a tool outcome event into a usage row
func (r *Recorder) Handle(e events.Event) error {
	payload, ok := e.Payload.(events.ToolPayload)
	if !ok {
		return nil
	}

	row := ToolUsageEvent{
		RequestID:    parseUUID(payload.RequestID),
		AssignmentID: parseUUID(payload.AssignmentID),
		AgentType:    payload.AgentType,
		AgentID:      payload.AgentID,
		ToolName:     payload.Tool,
		Timestamp:    e.Timestamp,
		DurationMs:   int(payload.Duration.Milliseconds()),
		Success:      e.Type == events.ToolSucceeded,
		Error:        payload.Error,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.batch) >= r.maxBuffer {
		r.batch = r.batch[1:]
		r.dropped++
	}
	r.batch = append(r.batch, row)
	return nil
}

// Pending returns the number of buffered rows
func (r *Recorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batch)
}

// FlushBatch writes buffered rows, batchSize at a time. Rows of a failed batch are discarded.
func (r *Recorder) FlushBatch(ctx context.Context) error {
	r.mu.Lock()
	pending := r.batch
	r.batch = make([]ToolUsageEvent, 0, r.batchSize)
	r.mu.Unlock()

	var errs errors.MultiError
	for start := 0; start < len(pending); start += r.batchSize {
		end := start + r.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		chunk := pending[start:end]

		if err := r.repo.InsertToolUsageBatch(ctx, chunk); err != nil {
			errs.Add(errors.Wrap(err, "insert tool usage batch"))
			r.addStat(&r.failed, int64(len(chunk)))
			continue
		}
		r.addStat(&r.written, int64(len(chunk)))
	}
	return errs.ToError()
}

// Run flushes every interval until ctx is done, then flushes once more
func (r *Recorder) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := r.FlushBatch(flushCtx); err != nil {
				r.log.Errorw("Failed to flush final batch", "error", err)
			}
			cancel()
			r.LogStats(true)
			return
		case <-ticker.C:
			if err := r.FlushBatch(ctx); err != nil {
				r.log.Warnw("Periodic flush failed", "error", err)
			}
		}
	}
}

// LogStats logs recorder counters
func (r *Recorder) LogStats(final bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.log.Infow("Tool stats recorder",
		"final", final,
		"written", r.written,
		"failed", r.failed,
		"dropped", r.dropped,
		"pending", len(r.batch),
	)
}

func (r *Recorder) addStat(counter *int64, n int64) {
	r.mu.Lock()
	*counter += n
	r.mu.Unlock()
}

func parseUUID(s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return id
}
