package insight

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"meridian/pkg/logger"
)

// Handler receives insights broadcast by peers
type Handler func(ctx context.Context, in Insight) error

// Bus shares insights between the specialists of one analysis request.
//
// Delivery policy: at-most-once per subscriber, never to the insight's own source.
// Handler errors and panics are logged and discarded so one bad peer cannot block
// the others. Insights are appended to the log before delivery, so a later
// GetInsights call sees every earlier broadcast regardless of subscription timing.
type Bus struct {
	mu          sync.RWMutex
	insights    []Insight
	subscribers map[string]Handler
	archive     Archive
	log         *logger.Logger
}

// NewBus creates an insight bus. archive may be nil.
func NewBus(archive Archive, log *logger.Logger) *Bus {
	return &Bus{
		subscribers: make(map[string]Handler),
		archive:     archive,
		log:         log.With("component", "insight_bus"),
	}
}

// Broadcast stamps, stores and delivers an insight, returning the stored copy
func (b *Bus) Broadcast(ctx context.Context, in Insight) Insight {
	in.ID = uuid.New()
	in.Timestamp = time.Now()
	in.Confidence = clamp(in.Confidence)

	b.mu.Lock()
	b.insights = append(b.insights, in)
	targets := make(map[string]Handler, len(b.subscribers))
	for agentID, h := range b.subscribers {
		if agentID != in.SourceAgentID {
			targets[agentID] = h
		}
	}
	b.mu.Unlock()

	if b.archive != nil {
		if err := b.archive.Append(ctx, in); err != nil {
			b.log.Warnw("Failed to archive insight",
				"insight_id", in.ID,
				"source", in.SourceAgentID,
				"error", err,
			)
		}
	}

	for agentID, h := range targets {
		b.deliver(ctx, agentID, h, in)
	}

	return in
}

func (b *Bus) deliver(ctx context.Context, agentID string, h Handler, in Insight) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Errorw("Insight handler panicked",
				"subscriber", agentID,
				"insight_id", in.ID,
				"panic", r,
			)
		}
	}()

	if err := h(ctx, in); err != nil {
		b.log.Warnw("Insight handler failed",
			"subscriber", agentID,
			"insight_id", in.ID,
			"error", err,
		)
	}
}

// Subscribe registers the handler for agentID, replacing any previous one
func (b *Bus) Subscribe(agentID string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[agentID] = h
}

// Unsubscribe removes the handler for agentID
func (b *Bus) Unsubscribe(agentID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, agentID)
}

// GetInsights returns stored insights matching filter, in broadcast order
func (b *Bus) GetInsights(filter Filter) []Insight {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Insight, 0, len(b.insights))
	for _, in := range b.insights {
		if filter.Matches(in) {
			out = append(out, in)
		}
	}
	return out
}

// GetPeerInsights returns insights from every source except excludeID
func (b *Bus) GetPeerInsights(excludeID string, minConfidence float64) []Insight {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Insight, 0, len(b.insights))
	for _, in := range b.insights {
		if in.SourceAgentID == excludeID || in.Confidence < minConfidence {
			continue
		}
		out = append(out, in)
	}
	return out
}

// FormatPeerContext renders peer insights as a text block for a specialist's summary.
// Returns "" when there is nothing to share.
func (b *Bus) FormatPeerContext(excludeID string, minConfidence float64) string {
	peers := b.GetPeerInsights(excludeID, minConfidence)
	if len(peers) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Peer insights:\n")
	for _, in := range peers {
		fmt.Fprintf(&sb, "- [%s/%s] (%.2f) %s\n", in.SourceAgentType, in.Type, in.Confidence, in.Content)
	}
	return sb.String()
}

// Len returns the number of stored insights
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.insights)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
