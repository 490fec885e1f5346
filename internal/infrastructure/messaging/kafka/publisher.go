package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/turtacn/pathway-overlay/internal/application/events"
	"github.com/turtacn/pathway-overlay/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/pathway-overlay/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/pathway-overlay/pkg/errors"
)

// ErrQueueFull is recorded when a notification is dropped.
var ErrQueueFull = errors.New(errors.ErrCodeMessageQueue, "publish queue full")

// Publisher forwards every bus event to a Producer.  Bus handlers only
// enqueue; Run performs the writes, so the event loop never waits on the
// broker.
type Publisher struct {
	producer *Producer
	logger   logging.Logger
	metrics  *prometheus.OverlayMetrics
	source   string
	queue    chan *EventEnvelope
	now      func() time.Time

	unsubscribe events.Unsubscribe
	closeOnce   sync.Once
}

type PublisherOption func(*Publisher)

func WithQueueSize(n int) PublisherOption {
	return func(p *Publisher) {
		if n > 0 {
			p.queue = make(chan *EventEnvelope, n)
		}
	}
}

func WithSource(source string) PublisherOption {
	return func(p *Publisher) { p.source = source }
}

func WithMetrics(m *prometheus.OverlayMetrics) PublisherOption {
	return func(p *Publisher) { p.metrics = m }
}

// NewPublisher subscribes to every event on bus.
func NewPublisher(producer *Producer, bus *events.Bus, logger logging.Logger, opts ...PublisherOption) *Publisher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	p := &Publisher{
		producer: producer,
		logger:   logger.Named("publisher"),
		source:   "pathway-overlay",
		queue:    make(chan *EventEnvelope, 256),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.unsubscribe = bus.SubscribeAll(p.enqueue)
	return p
}

func (p *Publisher) enqueue(e events.Event) {
	env, err := NewEnvelope(e, p.source, p.now())
	if err != nil {
		p.metrics.RecordPublish(e.EventName(), err)
		p.logger.Warn("dropping unencodable event", logging.String("event_type", e.EventName()), logging.Err(err))
		return
	}
	select {
	case p.queue <- env:
	default:
		p.metrics.RecordPublish(env.EventType, ErrQueueFull)
		p.logger.Warn("publish queue full, dropping event", logging.String("event_type", env.EventType))
	}
}

// Run writes queued envelopes until ctx ends, then flushes what is already
// queued with a bounded deadline.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case env := <-p.queue:
			p.publish(ctx, env)
		case <-ctx.Done():
			p.flush()
			return nil
		}
	}
}

func (p *Publisher) publish(ctx context.Context, env *EventEnvelope) {
	err := p.producer.Publish(ctx, env)
	p.metrics.RecordPublish(env.EventType, err)
	if err != nil {
		p.logger.Warn("publish failed", logging.String("event_type", env.EventType), logging.Err(err))
	}
}

func (p *Publisher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case env := <-p.queue:
			p.publish(ctx, env)
		default:
			return
		}
	}
}

// Pending returns the number of queued envelopes.
func (p *Publisher) Pending() int { return len(p.queue) }

// Close unsubscribes from the bus and closes the producer.
func (p *Publisher) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.unsubscribe()
		err = p.producer.Close()
	})
	return err
}
