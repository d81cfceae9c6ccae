package events

import (
	"sync"
	"time"
)

// Type names an event kind
type Type string

const (
	AnalysisRequested Type = "AnalysisRequested"
	PlanCreated       Type = "PlanCreated"
	AnalystAssigned   Type = "AnalystAssigned"
	ToolCalled        Type = "ToolCalled"
	ToolSucceeded     Type = "ToolSucceeded"
	ToolFailed        Type = "ToolFailed"
	AnalysisCompleted Type = "AnalysisCompleted"
	ResultAggregated  Type = "ResultAggregated"
	AnalysisEscalated Type = "AnalysisEscalated"

	// Any subscribes a handler to every event type
	Any Type = "*"
)

// AllTypes lists the concrete event types
func AllTypes() []Type {
	return []Type{
		AnalysisRequested, PlanCreated, AnalystAssigned,
		ToolCalled, ToolSucceeded, ToolFailed,
		AnalysisCompleted, ResultAggregated, AnalysisEscalated,
	}
}

// Event is what handlers receive
type Event struct {
	Type      Type
	Payload   any
	Timestamp time.Time
}

// Handler processes an event. A returned error is propagated to the emitter.
type Handler func(Event) error

// SubscriptionID identifies a registered handler for Off
type SubscriptionID uint64

type subscription struct {
	id      SubscriptionID
	typ     Type
	handler Handler
}

// Bus is an in-process, synchronous publish/subscribe channel.
//
// Handlers run on the emitter's goroutine in registration order. The first handler
// error stops delivery and is returned from Emit; panics are not recovered.
// There is no queue and no persistence. Handlers may call On/Off while being
// delivered to: delivery works on a snapshot of the registry.
type Bus struct {
	mu     sync.RWMutex
	nextID SubscriptionID
	subs   []subscription
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{}
}

// On registers handler for events of type t (or every event when t is Any)
func (b *Bus) On(t Type, handler Handler) SubscriptionID {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.subs = append(b.subs, subscription{id: b.nextID, typ: t, handler: handler})
	return b.nextID
}

// Off removes a handler registered with On for the same type. Unknown ids are ignored.
func (b *Bus) Off(t Type, id SubscriptionID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id && s.typ == t {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Emit delivers an event to matching handlers
func (b *Bus) Emit(t Type, payload any) error {
	event := Event{Type: t, Payload: payload, Timestamp: time.Now()}

	b.mu.RLock()
	snapshot := make([]subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.typ == t || s.typ == Any {
			snapshot = append(snapshot, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range snapshot {
		if err := s.handler(event); err != nil {
			return err
		}
	}
	return nil
}

// HandlerCount returns the number of handlers that would receive an event of type t
func (b *Bus) HandlerCount(t Type) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for _, s := range b.subs {
		if s.typ == t || s.typ == Any {
			n++
		}
	}
	return n
}

// OnAny registers an observer for every event type. Remove it with Off(Any, id).
func (b *Bus) OnAny(handler Handler) SubscriptionID {
	return b.On(Any, handler)
}
