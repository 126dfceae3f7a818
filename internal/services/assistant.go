package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"studygroup-service/internal/ai"
	"studygroup-service/internal/apperr"
	"studygroup-service/internal/logging"
	"studygroup-service/internal/models"
	"studygroup-service/internal/observability"
	"studygroup-service/internal/repositories"
)

// Replier answers a prompt given a group's chat history.
type Replier interface {
	Reply(ctx context.Context, history []models.Message, prompt string) (string, error)
}

// AssistantService posts model answers into a group as the AI sender.
type AssistantService struct {
	messages *MessageService
	replier  Replier
	flight   singleflight.Group
}

func NewAssistantService(messages *MessageService, replier Replier) *AssistantService {
	return &AssistantService{messages: messages, replier: replier}
}

// AssistantMessageID is the id of the reply produced for requestID.
func AssistantMessageID(requestID string) string {
	return "msg-ai-" + requestID
}

// Ask answers prompt inside groupID. Concurrent calls sharing a requestID
// make one model call, and a repeated requestID returns the reply that was
// already posted.
func (s *AssistantService) Ask(ctx context.Context, caller, groupID, prompt, requestID string) (models.Message, error) {
	ctx, span := tracer.Start(ctx, "assistant.Ask")
	defer span.End()

	question, _ := models.StripAssistantPrefix(prompt)
	if question == "" {
		return models.Message{}, apperr.InvalidArg("Ask the assistant a question.")
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}
	span.SetAttributes(attribute.String("group.id", groupID), attribute.String("assistant.request_id", requestID))

	if err := s.messages.requireMember(ctx, groupID, caller); err != nil {
		return models.Message{}, err
	}

	key := groupID + ":" + requestID
	v, err, shared := s.flight.Do(key, func() (interface{}, error) {
		return s.answer(context.WithoutCancel(ctx), groupID, question, requestID)
	})
	if err != nil {
		return models.Message{}, err
	}
	if shared {
		observability.IncAssistantCall("coalesced")
	}
	return v.(models.Message), nil
}

func (s *AssistantService) answer(ctx context.Context, groupID, question, requestID string) (models.Message, error) {
	id := AssistantMessageID(requestID)
	if existing, err := s.messages.messages.GetGroupMessage(ctx, groupID, id); err == nil {
		observability.IncAssistantCall("replayed")
		return existing, nil
	} else if !isNotFound(err) {
		return models.Message{}, translate(err, "load assistant reply")
	}

	history, err := s.messages.List(ctx, groupID)
	if err != nil {
		return models.Message{}, err
	}

	started := time.Now()
	text, err := s.replier.Reply(ctx, history, question)
	observability.ObserveModelCall("assistant", started)
	if err != nil {
		logging.Log.Warn("assistant reply failed, posting fallback",
			zap.String("group_id", groupID),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		observability.IncAssistantCall("fallback")
		text = ai.FallbackReply
	} else {
		observability.IncAssistantCall("ok")
	}

	stored, _, err := s.messages.appendMessage(ctx, groupID, models.Message{
		ID:     id,
		Sender: models.SenderAssistant,
		Text:   text,
	})
	return stored, err
}

func isNotFound(err error) bool {
	return errors.Is(err, repositories.ErrMessageNotFound)
}
