package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"studygroup-service/internal/models"
	"studygroup-service/internal/telemetry"
)

type suggestionService interface {
	Suggest(ctx context.Context, username string) (models.Suggestions, error)
}

type SuggestionHandler struct {
	auditor
	suggestions suggestionService
}

func NewSuggestionHandler(suggestions suggestionService, audit *telemetry.AuditEmitter) *SuggestionHandler {
	return &SuggestionHandler{auditor: auditor{audit: audit}, suggestions: suggestions}
}

// Suggest handles POST /suggestions for the caller's own profile.
func (h *SuggestionHandler) Suggest(c *gin.Context) {
	out, err := h.suggestions.Suggest(c.Request.Context(), usernameFromContext(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
