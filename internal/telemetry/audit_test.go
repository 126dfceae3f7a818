package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"studygroup-service/internal/mocks"
	"studygroup-service/internal/telemetry"
)

func TestAuditEmitterPublishesEnvelope(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := telemetry.NewAuditEmitter(publisher, "audit.studygroups", "studygroup-service", "test")

	var captured telemetry.AuditEnvelope
	publisher.On("Publish", mock.Anything, "audit.studygroups.group.create", mock.AnythingOfType("telemetry.AuditEnvelope")).
		Run(func(args mock.Arguments) { captured = args.Get(2).(telemetry.AuditEnvelope) }).
		Return(nil).Once()

	emitter.Emit(context.Background(), telemetry.AuditEvent{
		Level:     "INFO",
		Action:    "group.create",
		Text:      "Group created",
		GroupID:   "group-1",
		RequestID: "req-1",
		Username:  "alice",
	})

	publisher.AssertExpectations(t)
	require.Equal(t, 2, captured.SchemaVersion)
	assert.Equal(t, "audit_log", captured.EventType)
	assert.Equal(t, "studygroup-service", captured.Service)
	assert.Equal(t, "test", captured.Environment)
	assert.Equal(t, "req-1", captured.RequestID)
	assert.Equal(t, "alice", captured.Username)
	assert.Equal(t, telemetry.AuditPayload{Level: "INFO", Action: "group.create", Text: "Group created", GroupID: "group-1"}, captured.Payload)
	assert.Empty(t, captured.TraceID)
	assert.Equal(t, map[string]any{"x-request-id": "req-1", "group_id": "group-1"}, captured.Headers())
}

func TestRoutingKeyWithoutAction(t *testing.T) {
	emitter := telemetry.NewAuditEmitter(nil, "audit.studygroups", "svc", "env")
	assert.Equal(t, "audit.studygroups", emitter.RoutingKey(telemetry.AuditEvent{}))
	assert.Equal(t, "audit.studygroups.message.post", emitter.RoutingKey(telemetry.AuditEvent{Action: "message.post"}))
}

func TestAuditEmitterSwallowsPublishErrors(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := telemetry.NewAuditEmitter(publisher, "rk", "svc", "env")
	publisher.On("Publish", mock.Anything, "rk.request.failed", mock.Anything).Return(errors.New("broker down")).Once()

	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), telemetry.AuditEvent{Level: "ERROR", Action: "request.failed", Text: "boom"})
	})
	publisher.AssertExpectations(t)
}

func TestNilAuditEmitterIsSafe(t *testing.T) {
	var emitter *telemetry.AuditEmitter
	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), telemetry.AuditEvent{Level: "INFO", Text: "noop"})
	})
}
