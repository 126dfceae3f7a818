// Package telemetry turns user-visible study group actions into audit
// envelopes for the message broker.
package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"studygroup-service/internal/logging"
	"studygroup-service/internal/observability"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// AuditEvent is what callers report. Action is a dotted verb such as
// "group.create" and becomes the routing key suffix.
type AuditEvent struct {
	Level     string
	Action    string
	Text      string
	GroupID   string
	RequestID string
	Username  string
}

// AuditEnvelope is the wire form published to the broker.
type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	TraceID       string       `json:"trace_id,omitempty"`
	Username      string       `json:"username,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level   string `json:"level"`
	Action  string `json:"action,omitempty"`
	Text    string `json:"text"`
	GroupID string `json:"group_id,omitempty"`
}

// Headers returns broker headers that let consumers correlate an envelope
// with logs and traces without decoding the body.
func (e AuditEnvelope) Headers() map[string]any {
	h := map[string]any{}
	if e.RequestID != "" {
		h["x-request-id"] = e.RequestID
	}
	if e.TraceID != "" {
		h["trace_id"] = e.TraceID
	}
	if e.Payload.GroupID != "" {
		h["group_id"] = e.Payload.GroupID
	}
	return h
}

type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	now         func() time.Time
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		now:         time.Now,
	}
}

// RoutingKey is the key ev is published under.
func (e *AuditEmitter) RoutingKey(ev AuditEvent) string {
	if ev.Action == "" {
		return e.routingKey
	}
	return e.routingKey + "." + ev.Action
}

// Emit publishes ev. Publish failures are logged and dropped so auditing
// never fails a request.
func (e *AuditEmitter) Emit(ctx context.Context, ev AuditEvent) {
	if e == nil || e.publisher == nil {
		return
	}

	envelope := AuditEnvelope{
		SchemaVersion: 2,
		EventType:     "audit_log",
		OccurredAt:    e.now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     ev.RequestID,
		TraceID:       observability.TraceIDFromContext(ctx),
		Username:      ev.Username,
		Payload: AuditPayload{
			Level:   ev.Level,
			Action:  ev.Action,
			Text:    ev.Text,
			GroupID: ev.GroupID,
		},
	}

	key := e.RoutingKey(ev)
	if err := e.publisher.Publish(ctx, key, envelope); err != nil {
		logging.Log.Warn("audit publish failed",
			zap.String("routing_key", key),
			zap.String("request_id", ev.RequestID),
			zap.Error(err),
		)
	}
}
