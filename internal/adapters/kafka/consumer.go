package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"

	"meridian/pkg/logger"
)

// Consumer reads messages from a single topic within a consumer group
type Consumer struct {
	reader *kafka.Reader
	log    *logger.Logger
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	Topic    string
	MinBytes int
	MaxBytes int
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg ConsumerConfig, log *logger.Logger) *Consumer {
	if cfg.MinBytes == 0 {
		cfg.MinBytes = 1
	}
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = 1e6 // 1MB, feedback messages are small
	}

	log = log.With("component", "kafka_consumer", "topic", cfg.Topic)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		MinBytes:    cfg.MinBytes,
		MaxBytes:    cfg.MaxBytes,
		StartOffset: kafka.LastOffset,
	})

	log.Infow("Kafka consumer created",
		"brokers", cfg.Brokers,
		"group_id", cfg.GroupID,
	)

	return &Consumer{
		reader: reader,
		log:    log,
	}
}

// MessageHandler processes a single message
type MessageHandler func(ctx context.Context, msg kafka.Message) error

// Consume reads until ctx is cancelled. Handler errors are logged and the message is skipped.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	c.log.Info("Starting consumer")

	for {
		msg, err := c.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info("Consumer stopped")
				return ctx.Err()
			}
			c.log.Errorf("Failed to read message: %v", err)
			continue
		}

		if err := handler(ctx, msg); err != nil {
			c.log.Errorw("Failed to handle message",
				"key", string(msg.Key),
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

// ReadMessage blocks until a message is available. It returns ctx.Err() once shutdown is requested.
func (c *Consumer) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	default:
	}

	msg, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return kafka.Message{}, ctx.Err()
		}
		return kafka.Message{}, err
	}
	return msg, nil
}

// Close closes the consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}
