package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"studygroup-service/internal/middleware"
	"studygroup-service/internal/observability"
	"studygroup-service/internal/telemetry"
)

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(observability.RequestIDKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(observability.RequestIDKey, requestID)
	return requestID
}

func usernameFromContext(c *gin.Context) string {
	return c.GetString(middleware.UsernameKey)
}

// auditor is embedded by every handler that reports audit events.
type auditor struct {
	audit *telemetry.AuditEmitter
}

func (a auditor) emitAudit(c *gin.Context, level, action, text string) {
	if a.audit == nil {
		return
	}
	a.audit.Emit(c.Request.Context(), telemetry.AuditEvent{
		Level:     level,
		Action:    action,
		Text:      text,
		GroupID:   c.Param("id"),
		RequestID: requestIDFromContext(c),
		Username:  usernameFromContext(c),
	})
}
