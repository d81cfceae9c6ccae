package kafka

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/segmentio/kafka-go"

	"meridian/pkg/errors"
	"meridian/pkg/logger"
)

// Producer publishes analysis events and traces to Kafka topics
type Producer struct {
	mu      sync.Mutex
	writers map[string]*kafka.Writer
	brokers []string
	async   bool
	log     *logger.Logger
}

// ProducerConfig holds producer configuration
type ProducerConfig struct {
	Brokers []string
	Async   bool
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, log *logger.Logger) *Producer {
	return &Producer{
		writers: make(map[string]*kafka.Writer),
		brokers: cfg.Brokers,
		async:   cfg.Async,
		log:     log.With("component", "kafka_producer"),
	}
}

// getWriter returns or creates a writer for a topic
func (p *Producer) getWriter(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if w, ok := p.writers[topic]; ok {
		return w
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(p.brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		Async:                  p.async,
		AllowAutoTopicCreation: true,
	}

	p.writers[topic] = w
	return w
}

// Publish sends a JSON-encoded message to a topic
func (p *Producer) Publish(ctx context.Context, topic string, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "marshal kafka message")
	}
	return p.PublishBinary(ctx, topic, []byte(key), data)
}

// PublishBinary sends pre-encoded bytes to a topic. Messages sharing a key land on the same partition.
func (p *Producer) PublishBinary(ctx context.Context, topic string, key []byte, data []byte) error {
	msg := kafka.Message{
		Key:   key,
		Value: data,
	}

	if err := p.getWriter(topic).WriteMessages(ctx, msg); err != nil {
		p.log.Errorf("Failed to publish to %s: %v", topic, err)
		return errors.Wrapf(err, "publish to %s", topic)
	}

	p.log.Debugf("Published to %s: %s", topic, string(key))
	return nil
}

// Close closes all writers
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs errors.MultiError
	for topic, w := range p.writers {
		if err := w.Close(); err != nil {
			p.log.Errorf("Failed to close writer for %s: %v", topic, err)
			errs.Add(errors.Wrapf(err, "close writer %s", topic))
		}
	}
	return errs.ToError()
}
