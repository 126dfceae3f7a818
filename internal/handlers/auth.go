package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"studygroup-service/internal/middleware"
	"studygroup-service/internal/models"
	"studygroup-service/internal/services"
	"studygroup-service/internal/telemetry"
)

type accountService interface {
	Register(ctx context.Context, username, password string) (models.Student, error)
	Login(ctx context.Context, username, password string) (models.Student, string, error)
	Logout(ctx context.Context, token string) error
	ListStudents(ctx context.Context) ([]models.Student, error)
	UpdateProfile(ctx context.Context, caller, username string, upd services.ProfileUpdate) (models.Student, error)
}

// AuthHandler serves registration, login and the student directory.
type AuthHandler struct {
	auditor
	accounts accountService
}

func NewAuthHandler(accounts accountService, audit *telemetry.AuditEmitter) *AuthHandler {
	return &AuthHandler{auditor: auditor{audit: audit}, accounts: accounts}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register handles POST /register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBadRequest(c, "Invalid request payload.")
		return
	}

	student, err := h.accounts.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.emitAudit(c, "INFO", "student.register", "Student registered")
	c.JSON(http.StatusCreated, gin.H{"message": "User registered successfully", "userId": student.ID})
}

// Login handles POST /login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBadRequest(c, "Invalid request payload.")
		return
	}

	student, token, err := h.accounts.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"student": student, "token": token})
}

// Logout handles POST /logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.accounts.Logout(c.Request.Context(), c.GetString(middleware.TokenKey)); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListStudents handles GET /students.
func (h *AuthHandler) ListStudents(c *gin.Context) {
	students, err := h.accounts.ListStudents(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, students)
}

// UpdateStudent handles PUT /students/:username.
func (h *AuthHandler) UpdateStudent(c *gin.Context) {
	var upd services.ProfileUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		h.respondBadRequest(c, "Invalid profile payload.")
		return
	}

	student, err := h.accounts.UpdateProfile(c.Request.Context(), usernameFromContext(c), c.Param("username"), upd)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.emitAudit(c, "INFO", "student.update", "Profile updated")
	c.JSON(http.StatusOK, student)
}
