// Package kafka publishes overlay notifications to a Kafka topic.
package kafka

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"

	"github.com/turtacn/pathway-overlay/internal/config"
	"github.com/turtacn/pathway-overlay/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/pathway-overlay/pkg/errors"
)

var (
	ErrProducerClosed = errors.New(errors.ErrCodeMessageQueue, "producer closed")
)

// Header keys set on every message.
const (
	HeaderEventType = "event_type"
	HeaderEventID   = "event_id"
)

// WriterInterface abstracts kafka.Writer for testing.
type WriterInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes envelopes to one topic.
type Producer struct {
	writer WriterInterface
	topic  string
	logger logging.Logger
	closed atomic.Bool
	sent   atomic.Int64
}

// NewProducer builds a kafka.Writer from cfg.
func NewProducer(cfg config.KafkaConfig, logger logging.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "kafka brokers required")
	}
	if cfg.Topic == "" {
		return nil, errors.New(errors.ErrCodeValidation, "kafka topic required")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		MaxAttempts:  cfg.MaxAttempts,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequireOne,
	}
	return NewProducerWithWriter(writer, cfg.Topic, logger), nil
}

// NewProducerWithWriter wraps an existing writer.  topic is only used for
// logging when the writer already carries one.
func NewProducerWithWriter(w WriterInterface, topic string, logger logging.Logger) *Producer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Producer{writer: w, topic: topic, logger: logger.Named("kafka")}
}

// Publish writes env as one message keyed by env.Key().
func (p *Producer) Publish(ctx context.Context, env *EventEnvelope) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	value, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encoding envelope")
	}
	msg := kafka.Message{
		Value: value,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(env.EventType)},
			{Key: HeaderEventID, Value: []byte(env.EventID)},
		},
		Time: env.Timestamp,
	}
	if k := env.Key(); k != "" {
		msg.Key = []byte(k)
	}

	start := time.Now()
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrap(err, errors.ErrCodeMessageQueue, "publish failed").WithDetail(env.EventType)
	}
	p.sent.Add(1)
	p.logger.Debug("Message published",
		logging.String("topic", p.topic),
		logging.String("event_type", env.EventType),
		logging.Int64("latency_ms", time.Since(start).Milliseconds()))
	return nil
}

// Sent returns the number of messages written.
func (p *Producer) Sent() int64 { return p.sent.Load() }

// Close is idempotent.
func (p *Producer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := p.writer.Close()
	p.logger.Info("Kafka producer closed", logging.Int64("sent", p.sent.Load()))
	return err
}
