package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"studygroup-service/internal/apperr"
	"studygroup-service/internal/logging"
)

func statusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeInvalidArgument:
		return http.StatusBadRequest
	case apperr.CodeUnauthenticated:
		return http.StatusUnauthorized
	case apperr.CodePermissionDenied:
		return http.StatusForbidden
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeAlreadyExists:
		return http.StatusConflict
	case apperr.CodeResourceExhausted:
		return http.StatusTooManyRequests
	case apperr.CodeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError renders err as {"error","code"} and audits it. Internal
// failures are logged with their cause and shown with a generic message.
func (a auditor) respondError(c *gin.Context, err error) {
	code := apperr.CodeOf(err)
	status := statusFor(code)

	msg := apperr.MessageOf(err)
	if status == http.StatusInternalServerError {
		if code == apperr.CodeUnknown {
			code = apperr.CodeInternal
		}
		_ = c.Error(err)
		logging.Log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", requestIDFromContext(c)),
			zap.Error(err),
		)
		msg = "Internal server error."
	}

	action := "request.rejected"
	if status >= http.StatusInternalServerError {
		action = "request.failed"
	}
	a.emitAudit(c, "ERROR", action, msg)
	c.JSON(status, gin.H{"error": msg, "code": code})
}

func (a auditor) respondBadRequest(c *gin.Context, msg string) {
	a.respondError(c, apperr.InvalidArg(msg))
}
