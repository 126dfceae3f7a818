// Package rabbitmq publishes audit envelopes to a topic exchange, degrading
// to a logging noop when no broker is reachable.
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"studygroup-service/internal/logging"
	"studygroup-service/internal/observability"
	"studygroup-service/internal/telemetry"
)

// ErrClosed is returned after the broker connection has gone away.
var ErrClosed = errors.New("rabbitmq: connection closed")

const publishTimeout = 5 * time.Second

// Publisher publishes audit events.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

var (
	_ telemetry.Publisher = (*amqpPublisher)(nil)
	_ telemetry.Publisher = noopPublisher{}
)

// NewPublisher dials amqpURL and declares a durable topic exchange. Any
// failure yields a noop publisher that records why.
func NewPublisher(amqpURL, exchange string) Publisher {
	if amqpURL == "" {
		return newNoop("empty amqp url")
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return newNoop(err.Error())
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return newNoop(err.Error())
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return newNoop(err.Error())
	}

	p := &amqpPublisher{conn: conn, ch: ch, exchange: exchange}
	go p.watch(conn.NotifyClose(make(chan *amqp.Error, 1)))
	logging.Log.Info("rabbitmq connected", zap.String("exchange", exchange))
	return p
}

type amqpPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	closed   atomic.Bool
}

func (p *amqpPublisher) watch(closes <-chan *amqp.Error) {
	if err, ok := <-closes; ok && err != nil {
		logging.Log.Error("rabbitmq connection lost, audit events will be dropped", zap.Error(err))
	}
	p.closed.Store(true)
}

func (p *amqpPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	if p.closed.Load() {
		observability.IncAMQPPublishError()
		return ErrClosed
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now(),
		Body:         body,
	}
	if envelope, ok := event.(telemetry.AuditEnvelope); ok {
		msg.Type = envelope.EventType
		msg.AppId = envelope.Service
		msg.Headers = amqp.Table(envelope.Headers())
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	p.mu.Lock()
	err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
	p.mu.Unlock()
	if err != nil {
		observability.IncAMQPPublishError()
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	return nil
}

func (p *amqpPublisher) Close() error {
	p.closed.Store(true)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil && !p.conn.IsClosed() {
		return p.conn.Close()
	}
	return nil
}

type noopPublisher struct {
	reason string
}

func newNoop(reason string) noopPublisher {
	logging.Log.Info("rabbitmq disabled, audit events are logged only", zap.String("reason", reason))
	return noopPublisher{reason: reason}
}

func (noopPublisher) Publish(_ context.Context, routingKey string, event any) error {
	fields := []zap.Field{zap.String("routing_key", routingKey)}
	if envelope, ok := event.(telemetry.AuditEnvelope); ok {
		fields = append(fields,
			zap.String("request_id", envelope.RequestID),
			zap.String("username", envelope.Username),
			zap.String("action", envelope.Payload.Action),
			zap.String("text", envelope.Payload.Text),
		)
	}
	logging.Log.Debug("audit event", fields...)
	return nil
}

func (noopPublisher) Close() error {
	return nil
}

// PublisherMode reports the publisher mode for logging.
func PublisherMode(p Publisher) string {
	switch p.(type) {
	case *amqpPublisher:
		return "amqp"
	case noopPublisher:
		return "noop"
	default:
		return "unknown"
	}
}

func PublisherNoopReason(p Publisher) string {
	if publisher, ok := p.(noopPublisher); ok {
		return publisher.reason
	}
	return ""
}
