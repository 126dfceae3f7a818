package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"studygroup-service/internal/models"
	"studygroup-service/internal/services"
	"studygroup-service/internal/telemetry"
)

type groupService interface {
	Create(ctx context.Context, caller string, in services.CreateGroupInput) (models.Group, error)
	List(ctx context.Context) ([]models.Group, error)
	Get(ctx context.Context, groupID string) (models.Group, error)
	Join(ctx context.Context, groupID, username string) (models.Group, error)
	Leave(ctx context.Context, groupID, username string) (models.Group, bool, error)
	Update(ctx context.Context, caller, groupID string, snap services.GroupSnapshot) (models.Group, error)
	Delete(ctx context.Context, caller, groupID string) error
}

// GroupHandler manages group-related endpoints.
type GroupHandler struct {
	auditor
	groups groupService
}

// NewGroupHandler constructs a GroupHandler.
func NewGroupHandler(groups groupService, audit *telemetry.AuditEmitter) *GroupHandler {
	return &GroupHandler{auditor: auditor{audit: audit}, groups: groups}
}

// CreateGroup handles POST /groups. The caller becomes admin.
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	var req services.CreateGroupInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBadRequest(c, "Invalid request payload.")
		return
	}

	group, err := h.groups.Create(c.Request.Context(), usernameFromContext(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.emitAudit(c, "INFO", "group.create", "Group created")
	c.JSON(http.StatusCreated, group)
}

// ListGroups returns the whole group directory.
func (h *GroupHandler) ListGroups(c *gin.Context) {
	groups, err := h.groups.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

// GetGroup handles GET /groups/:id.
func (h *GroupHandler) GetGroup(c *gin.Context) {
	group, err := h.groups.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

// UpdateGroup handles PUT /groups/:id with a whole-group snapshot.
func (h *GroupHandler) UpdateGroup(c *gin.Context) {
	var snap services.GroupSnapshot
	if err := c.ShouldBindJSON(&snap); err != nil {
		h.respondBadRequest(c, "Invalid group payload.")
		return
	}

	group, err := h.groups.Update(c.Request.Context(), usernameFromContext(c), c.Param("id"), snap)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.emitAudit(c, "INFO", "group.update", "Group updated")
	c.JSON(http.StatusOK, group)
}

// JoinGroup handles POST /groups/:id/join.
func (h *GroupHandler) JoinGroup(c *gin.Context) {
	group, err := h.groups.Join(c.Request.Context(), c.Param("id"), usernameFromContext(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.emitAudit(c, "INFO", "group.join", "Group joined")
	c.JSON(http.StatusOK, group)
}

// LeaveGroup handles POST /groups/:id/leave. It answers 204 when the caller
// was the last member and the group is gone.
func (h *GroupHandler) LeaveGroup(c *gin.Context) {
	group, deleted, err := h.groups.Leave(c.Request.Context(), c.Param("id"), usernameFromContext(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	if deleted {
		h.emitAudit(c, "INFO", "group.delete", "Group deleted after last member left")
		c.Status(http.StatusNoContent)
		return
	}
	h.emitAudit(c, "INFO", "group.leave", "Group left")
	c.JSON(http.StatusOK, group)
}

// DeleteGroup handles DELETE /groups/:id. Only the admin may delete.
func (h *GroupHandler) DeleteGroup(c *gin.Context) {
	if err := h.groups.Delete(c.Request.Context(), usernameFromContext(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}

	h.emitAudit(c, "INFO", "group.delete", "Group deleted")
	c.Status(http.StatusNoContent)
}
