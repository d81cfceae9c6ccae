package consumers

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/spf13/cast"

	"meridian/internal/domain/reasoning"
	"meridian/internal/metrics"
	"meridian/pkg/errors"
	"meridian/pkg/logger"
)

// MessageReader is the part of *kafka.Consumer the feedback consumer needs
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafkago.Message, error)
	Close() error
}

// FeedbackSink stores feedback. Satisfied by *reasoning.Service.
type FeedbackSink interface {
	RecordFeedback(ctx context.Context, feedback *reasoning.Feedback) error
}

// FeedbackMessage is the JSON body of an analysis.feedback record.
// Score may arrive as a number or a numeric string.
type FeedbackMessage struct {
	RequestID string `json:"request_id"`
	Score     any    `json:"score"`
	Comment   string `json:"comment"`
}

// FeedbackConsumer turns external quality scores into reasoning bank feedback
type FeedbackConsumer struct {
	reader MessageReader
	sink   FeedbackSink
	topic  string
	log    *logger.Logger
}

// NewFeedbackConsumer creates a new feedback consumer
func NewFeedbackConsumer(reader MessageReader, sink FeedbackSink, topic string, log *logger.Logger) *FeedbackConsumer {
	return &FeedbackConsumer{
		reader: reader,
		sink:   sink,
		topic:  topic,
		log:    log.With("component", "feedback_consumer", "topic", topic),
	}
}

// Start consumes until ctx is cancelled. The message being processed when shutdown
// is requested is finished first.
func (fc *FeedbackConsumer) Start(ctx context.Context) error {
	fc.log.Info("Starting feedback consumer")

	defer func() {
		if err := fc.reader.Close(); err != nil {
			fc.log.Errorw("Failed to close feedback consumer", "error", err)
			return
		}
		fc.log.Info("Feedback consumer closed")
	}()

	for {
		msg, err := fc.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fc.log.Debugw("Failed to read feedback message", "error", err)
			continue
		}

		processCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = fc.HandleMessage(processCtx, msg)
		cancel()

		metrics.RecordKafkaMessage(fc.topic, err)
		if err != nil {
			fc.log.Warnw("Dropped feedback message",
				"key", string(msg.Key),
				"offset", msg.Offset,
				"error", err,
			)
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

// HandleMessage decodes, validates and records one feedback message
func (fc *FeedbackConsumer) HandleMessage(ctx context.Context, msg kafkago.Message) error {
	feedback, err := DecodeFeedback(msg.Value)
	if err != nil {
		return err
	}

	if err := fc.sink.RecordFeedback(ctx, feedback); err != nil {
		return errors.Wrapf(err, "record feedback for %s", feedback.RequestID)
	}

	metrics.RecordFeedback(feedback.Score, false)
	fc.log.Debugw("Recorded external feedback",
		"request_id", feedback.RequestID,
		"score", feedback.Score,
	)
	return nil
}

// DecodeFeedback parses a message body into feedback ready for the reasoning bank
func DecodeFeedback(data []byte) (*reasoning.Feedback, error) {
	var msg FeedbackMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "decode feedback: %v", err)
	}

	requestID, err := uuid.Parse(strings.TrimSpace(msg.RequestID))
	if err != nil {
		return nil, errors.NewValidationError("request_id", "must be a UUID", msg.RequestID)
	}

	if msg.Score == nil {
		return nil, errors.NewValidationError("score", "is required", nil)
	}
	score, err := cast.ToFloat64E(msg.Score)
	if err != nil {
		return nil, errors.NewValidationError("score", "must be numeric", msg.Score)
	}
	if score < 0 || score > 1 {
		return nil, errors.NewValidationError("score", "must be within [0,1]", score)
	}

	return &reasoning.Feedback{
		RequestID: requestID,
		Score:     score,
		Comment:   strings.TrimSpace(msg.Comment),
	}, nil
}
