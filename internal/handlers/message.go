package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"studygroup-service/internal/models"
	"studygroup-service/internal/telemetry"
)

type messageService interface {
	Append(ctx context.Context, caller, groupID string, msg models.Message) (models.Message, bool, error)
	List(ctx context.Context, groupID string) ([]models.Message, error)
	ToggleReaction(ctx context.Context, groupID, messageID, symbol, reactor string) (models.Message, error)
}

type assistantService interface {
	Ask(ctx context.Context, caller, groupID, prompt, requestID string) (models.Message, error)
}

// MessageHandler serves a group's message log, reactions and the assistant.
type MessageHandler struct {
	auditor
	messages  messageService
	assistant assistantService
}

func NewMessageHandler(messages messageService, assistant assistantService, audit *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{auditor: auditor{audit: audit}, messages: messages, assistant: assistant}
}

// ListMessages handles GET /groups/:id/messages.
func (h *MessageHandler) ListMessages(c *gin.Context) {
	msgs, err := h.messages.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// PostMessage handles POST /groups/:id/messages. A repeated id is answered
// with the stored message and 200 instead of 201.
func (h *MessageHandler) PostMessage(c *gin.Context) {
	var msg models.Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		h.respondBadRequest(c, "Invalid message payload.")
		return
	}

	stored, created, err := h.messages.Append(c.Request.Context(), usernameFromContext(c), c.Param("id"), msg)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if !created {
		c.JSON(http.StatusOK, stored)
		return
	}
	h.emitAudit(c, "INFO", "message.post", "Group message posted")
	c.JSON(http.StatusCreated, stored)
}

// ToggleReaction handles POST /groups/:id/messages/:messageId/reactions.
func (h *MessageHandler) ToggleReaction(c *gin.Context) {
	var req struct {
		Emoji string `json:"emoji"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBadRequest(c, "Invalid reaction payload.")
		return
	}

	msg, err := h.messages.ToggleReaction(c.Request.Context(), c.Param("id"), c.Param("messageId"), req.Emoji, usernameFromContext(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// AskAssistant handles POST /groups/:id/assistant.
func (h *MessageHandler) AskAssistant(c *gin.Context) {
	var req struct {
		Prompt    string `json:"prompt"`
		RequestID string `json:"requestId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBadRequest(c, "Invalid assistant payload.")
		return
	}

	reply, err := h.assistant.Ask(c.Request.Context(), usernameFromContext(c), c.Param("id"), req.Prompt, req.RequestID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.emitAudit(c, "INFO", "assistant.reply", "Assistant replied")
	c.JSON(http.StatusCreated, reply)
}
