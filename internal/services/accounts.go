package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"studygroup-service/internal/apperr"
	"studygroup-service/internal/logging"
	"studygroup-service/internal/models"
	"studygroup-service/internal/repositories"
	"studygroup-service/internal/session"
)

const invalidCredentials = "Invalid username or password."

// ProfileUpdate carries the profile fields a student may change. Nil fields
// are left as they are.
type ProfileUpdate struct {
	Name         *string   `json:"name"`
	Courses      *[]string `json:"courses"`
	CGPA         *string   `json:"cgpa"`
	Availability *[]string `json:"availability"`
}

// AccountService registers students, logs them in and edits profiles.
type AccountService struct {
	accounts repositories.AccountRepository
	students repositories.StudentRepository
	sessions session.Store
	hashCost int
}

func NewAccountService(accounts repositories.AccountRepository, students repositories.StudentRepository, sessions session.Store) *AccountService {
	return &AccountService{
		accounts: accounts,
		students: students,
		sessions: sessions,
		hashCost: bcrypt.DefaultCost,
	}
}

// Register creates the credential and its profile. The profile name defaults
// to the username and courses and availability start empty.
func (s *AccountService) Register(ctx context.Context, username, password string) (models.Student, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return models.Student{}, apperr.InvalidArg("Username and password are required.")
	}
	if strings.EqualFold(username, models.SenderSystem) || strings.EqualFold(username, models.SenderAssistant) {
		return models.Student{}, apperr.InvalidArg("That username is reserved.")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return models.Student{}, apperr.Internal("hash password", err)
	}

	student := models.Student{
		ID:           uuid.NewString(),
		Username:     username,
		Name:         username,
		Courses:      []string{},
		CGPA:         "",
		Availability: []string{},
	}
	created, err := s.accounts.CreateAccount(ctx, models.Account{Username: username, PasswordHash: string(hash)}, student)
	if err != nil {
		return models.Student{}, translate(err, "create account")
	}
	logging.Log.Info("student registered", zap.String("username", username))
	return created, nil
}

// Login checks the password and opens a session.
func (s *AccountService) Login(ctx context.Context, username, password string) (models.Student, string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return models.Student{}, "", apperr.InvalidArg("Username and password are required.")
	}

	account, err := s.accounts.GetAccount(ctx, username)
	if errors.Is(err, repositories.ErrAccountNotFound) {
		return models.Student{}, "", apperr.Unauthenticated(invalidCredentials)
	}
	if err != nil {
		return models.Student{}, "", translate(err, "load account")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return models.Student{}, "", apperr.Unauthenticated(invalidCredentials)
	}

	student, err := s.students.GetStudentByUsername(ctx, username)
	if errors.Is(err, repositories.ErrStudentNotFound) {
		return models.Student{}, "", apperr.NotFound("Student profile not found.")
	}
	if err != nil {
		return models.Student{}, "", translate(err, "load profile")
	}

	token, err := s.sessions.Create(ctx, username)
	if err != nil {
		return models.Student{}, "", apperr.Internal("create session", err)
	}
	return student, token, nil
}

// Logout revokes token. Unknown tokens are ignored.
func (s *AccountService) Logout(ctx context.Context, token string) error {
	if err := s.sessions.Revoke(ctx, token); err != nil {
		return apperr.Internal("revoke session", err)
	}
	return nil
}

// Authenticate resolves a bearer token to a username.
func (s *AccountService) Authenticate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", apperr.Unauthenticated("Missing token.")
	}
	username, err := s.sessions.Lookup(ctx, token)
	if errors.Is(err, session.ErrSessionNotFound) {
		return "", apperr.Unauthenticated("Invalid or expired token.")
	}
	if err != nil {
		return "", apperr.Internal("lookup session", err)
	}
	return username, nil
}

func (s *AccountService) ListStudents(ctx context.Context) ([]models.Student, error) {
	students, err := s.students.ListStudents(ctx)
	return students, translate(err, "list students")
}

// UpdateProfile applies upd to username's profile. Students may only edit
// their own profile.
func (s *AccountService) UpdateProfile(ctx context.Context, caller, username string, upd ProfileUpdate) (models.Student, error) {
	if caller != username {
		return models.Student{}, apperr.Forbidden("You can only edit your own profile.")
	}

	current, err := s.students.GetStudentByUsername(ctx, username)
	if err != nil {
		return models.Student{}, translate(err, "load profile")
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return models.Student{}, apperr.InvalidArg("Name cannot be empty.")
		}
		current.Name = name
	}
	if upd.Courses != nil {
		current.Courses = cleanList(*upd.Courses)
	}
	if upd.CGPA != nil {
		current.CGPA = strings.TrimSpace(*upd.CGPA)
	}
	if upd.Availability != nil {
		current.Availability = cleanList(*upd.Availability)
	}

	updated, err := s.students.UpdateStudent(ctx, current)
	return updated, translate(err, "update profile")
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
