package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/safar/storefront/internal/logger"
	"github.com/segmentio/kafka-go"
)

// Publisher sends domain events after the writing transaction has
// committed. Publish never blocks on the broker and never fails the caller.
type Publisher interface {
	Publish(ctx context.Context, env Envelope)
}

// Noop drops every event. Used when no brokers are configured.
type Noop struct{}

func (Noop) Publish(context.Context, Envelope) {}

var ErrProducerClosed = errors.New("event producer closed")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer buffers envelopes in an inbox drained by a single goroutine.
type Producer struct {
	w     messageWriter
	inbox chan kafka.Message
	done  chan struct{}
	logg  *logger.Logger

	mu     sync.RWMutex
	closed bool
}

func NewProducer(brokers []string, topic string, buf int, logg *logger.Logger) *Producer {
	return newProducer(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}, buf, logg)
}

func newProducer(w messageWriter, buf int, logg *logger.Logger) *Producer {
	if buf <= 0 {
		buf = 1
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Producer{
		w:     w,
		inbox: make(chan kafka.Message, buf),
		done:  make(chan struct{}),
		logg:  logg,
	}
}

// Start runs the drain loop until Close is called.
func (p *Producer) Start() {
	go func() {
		defer close(p.done)
		for m := range p.inbox {
			p.write(m)
		}
		if err := p.w.Close(); err != nil {
			p.logg.Error(context.Background(), "events.writer_close_failed", err)
		}
	}()
}

func (p *Producer) write(m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.w.WriteMessages(ctx, m); err != nil {
		logCtx := p.logg.WithField(ctx, "partition_key", string(m.Key))
		p.logg.Error(logCtx, "events.publish_failed", err)
	}
}

// Publish enqueues env keyed by its correlation id. A full inbox drops the
// event with a warning instead of blocking the request.
func (p *Producer) Publish(ctx context.Context, env Envelope) {
	value, err := json.Marshal(env)
	if err != nil {
		p.logg.Error(ctx, "events.encode_failed", err)
		return
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.logg.Warn(p.logg.WithField(ctx, "event_type", env.EventType), "events.producer_closed")
		return
	}

	msg := kafka.Message{
		Key:   []byte(env.CorrelationID),
		Value: value,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(env.EventType)},
		},
	}
	select {
	case p.inbox <- msg:
	default:
		p.logg.Warn(p.logg.WithField(ctx, "event_type", env.EventType), "events.inbox_full")
	}
}

// Close stops accepting events and waits for the inbox to drain or ctx to
// expire.
func (p *Producer) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrProducerClosed
	}
	p.closed = true
	close(p.inbox)
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
