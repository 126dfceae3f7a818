package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"studygroup-service/internal/apperr"
	"studygroup-service/internal/models"
	"studygroup-service/internal/observability"
	"studygroup-service/internal/repositories"
)

// MessageService owns the group message logs: idempotent appends, replies
// and reaction toggles.
type MessageService struct {
	groups   repositories.GroupRepository
	messages repositories.GroupMessageRepository
	now      func() time.Time
}

func NewMessageService(groups repositories.GroupRepository, messages repositories.GroupMessageRepository) *MessageService {
	return &MessageService{groups: groups, messages: messages, now: time.Now}
}

// Append posts msg as caller. A message whose id is already in the log is
// returned unchanged with created false.
func (s *MessageService) Append(ctx context.Context, caller, groupID string, msg models.Message) (models.Message, bool, error) {
	ctx, span := tracer.Start(ctx, "messages.Append")
	defer span.End()
	span.SetAttributes(attribute.String("group.id", groupID), attribute.String("message.id", msg.ID))

	if msg.Sender == "" {
		return models.Message{}, false, apperr.InvalidArg("Message sender is required.")
	}
	if msg.Sender == models.SenderSystem {
		return models.Message{}, false, apperr.InvalidArg("System messages cannot be posted.")
	}
	if msg.Sender != caller {
		return models.Message{}, false, apperr.Forbidden("You can only post messages as yourself.")
	}
	if err := s.requireMember(ctx, groupID, caller); err != nil {
		return models.Message{}, false, err
	}
	return s.appendMessage(ctx, groupID, msg)
}

// appendMessage validates and stores msg without any caller checks; the
// assistant posts through it as the AI sender.
func (s *MessageService) appendMessage(ctx context.Context, groupID string, msg models.Message) (models.Message, bool, error) {
	msg.ID = strings.TrimSpace(msg.ID)
	if msg.ID == "" {
		return models.Message{}, false, apperr.InvalidArg("Message id is required.")
	}
	if msg.Sender == "" {
		return models.Message{}, false, apperr.InvalidArg("Message sender is required.")
	}
	if msg.Sender == models.SenderSystem {
		return models.Message{}, false, apperr.InvalidArg("System messages cannot be posted.")
	}
	if strings.TrimSpace(msg.Text) == "" {
		return models.Message{}, false, apperr.InvalidArg("Message text is required.")
	}
	if msg.Timestamp == "" {
		msg.Timestamp = models.FormatTimestamp(s.now())
	}
	msg.Reactions = msg.Reactions.Normalize()

	if msg.ParentID != "" {
		if msg.ParentID == msg.ID {
			return models.Message{}, false, apperr.InvalidArg("A message cannot reply to itself.")
		}
		if _, err := s.messages.GetGroupMessage(ctx, groupID, msg.ParentID); err != nil {
			if errors.Is(err, repositories.ErrMessageNotFound) {
				return models.Message{}, false, apperr.InvalidArg("The message you replied to does not exist.")
			}
			return models.Message{}, false, translate(err, "load parent message")
		}
	}

	stored, created, err := s.messages.AppendMessage(ctx, groupID, msg)
	if err != nil {
		return models.Message{}, false, translate(err, "append message")
	}
	observability.IncMessageAppend(created)
	return stored, created, nil
}

// List returns the log in arrival order.
func (s *MessageService) List(ctx context.Context, groupID string) ([]models.Message, error) {
	msgs, err := s.messages.ListGroupMessages(ctx, groupID)
	if err != nil {
		return nil, translate(err, "list messages")
	}
	return msgs, nil
}

// ToggleReaction flips reactor's symbol on a message and returns the result.
func (s *MessageService) ToggleReaction(ctx context.Context, groupID, messageID, symbol, reactor string) (models.Message, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" || reactor == "" {
		return models.Message{}, apperr.InvalidArg("Reaction emoji and user are required.")
	}
	if err := s.requireMember(ctx, groupID, reactor); err != nil {
		return models.Message{}, err
	}

	msg, err := s.messages.ToggleReaction(ctx, groupID, messageID, symbol, reactor)
	if err != nil {
		return models.Message{}, translate(err, "toggle reaction")
	}
	observability.IncReactionToggle(symbol)
	return msg, nil
}

func (s *MessageService) requireMember(ctx context.Context, groupID, username string) error {
	group, err := s.groups.GetGroup(ctx, groupID)
	if err != nil {
		return translate(err, "load group")
	}
	if !group.HasMember(username) {
		return apperr.Forbidden("You are not a member of this group.")
	}
	return nil
}
