package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"meridian/internal/adapters/kafka"
	"meridian/pkg/errors"
	"meridian/pkg/logger"
)

// BinaryPublisher is satisfied by *kafka.Producer
type BinaryPublisher interface {
	PublishBinary(ctx context.Context, topic string, key []byte, data []byte) error
}

// Forwarder mirrors every bus event to Kafka as a protobuf Struct.
// Publishing failures are logged and never reach the emitter.
type Forwarder struct {
	pub     BinaryPublisher
	timeout time.Duration
	log     *logger.Logger
}

// NewForwarder creates a forwarder writing through pub
func NewForwarder(pub BinaryPublisher, timeout time.Duration, log *logger.Logger) *Forwarder {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Forwarder{
		pub:     pub,
		timeout: timeout,
		log:     log.With("component", "event_forwarder"),
	}
}

// Attach subscribes the forwarder to all events on bus
func (f *Forwarder) Attach(bus *Bus) SubscriptionID {
	return bus.OnAny(f.Handle)
}

// Handle encodes and publishes one event
func (f *Forwarder) Handle(e Event) error {
	msg, err := Encode(e)
	if err != nil {
		f.log.Warnw("Failed to encode event", "type", e.Type, "error", err)
		return nil
	}

	data, err := proto.Marshal(msg)
	if err != nil {
		f.log.Warnw("Failed to marshal event", "type", e.Type, "error", err)
		return nil
	}

	var key []byte
	if payload := msg.GetFields()["payload"].GetStructValue(); payload != nil {
		key = []byte(payload.GetFields()["request_id"].GetStringValue())
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	if err := f.pub.PublishBinary(ctx, TopicFor(e.Type), key, data); err != nil {
		f.log.Warnw("Failed to forward event", "type", e.Type, "error", err)
		return nil
	}

	f.log.Debugw("Event forwarded", "type", e.Type, "size_bytes", len(data))
	return nil
}

// TopicFor routes tool activity and lifecycle events to separate topics
func TopicFor(t Type) string {
	switch t {
	case ToolCalled, ToolSucceeded, ToolFailed:
		return kafka.TopicAnalysisTools
	default:
		return kafka.TopicAnalysisLifecycle
	}
}

// Encode converts an event into a self-describing protobuf Struct:
// {id, type, timestamp, payload}
func Encode(e Event) (*structpb.Struct, error) {
	payload, err := payloadFields(e.Payload)
	if err != nil {
		return nil, err
	}

	return structpb.NewStruct(map[string]interface{}{
		"id":        uuid.NewString(),
		"type":      string(e.Type),
		"timestamp": e.Timestamp.UTC().Format(time.RFC3339Nano),
		"payload":   payload,
	})
}

// Decode parses bytes produced by the forwarder
func Decode(data []byte) (map[string]interface{}, error) {
	var msg structpb.Struct
	if err := proto.Unmarshal(data, &msg); err != nil {
		return nil, errors.Wrap(err, "unmarshal event")
	}
	return msg.AsMap(), nil
}

func payloadFields(payload any) (map[string]interface{}, error) {
	if payload == nil {
		return map[string]interface{}{}, nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal payload")
	}

	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, errors.Wrap(err, "normalize payload")
	}

	if fields, ok := decoded.(map[string]interface{}); ok {
		return fields, nil
	}
	return map[string]interface{}{"value": decoded}, nil
}
