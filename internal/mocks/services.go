package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"studygroup-service/internal/models"
	"studygroup-service/internal/services"
)

type AccountServiceMock struct {
	mock.Mock
}

func (m *AccountServiceMock) Register(ctx context.Context, username, password string) (models.Student, error) {
	args := m.Called(ctx, username, password)
	var st models.Student
	if val := args.Get(0); val != nil {
		st = val.(models.Student)
	}
	return st, args.Error(1)
}

func (m *AccountServiceMock) Login(ctx context.Context, username, password string) (models.Student, string, error) {
	args := m.Called(ctx, username, password)
	var st models.Student
	if val := args.Get(0); val != nil {
		st = val.(models.Student)
	}
	return st, args.String(1), args.Error(2)
}

func (m *AccountServiceMock) Logout(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *AccountServiceMock) Authenticate(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

func (m *AccountServiceMock) ListStudents(ctx context.Context) ([]models.Student, error) {
	args := m.Called(ctx)
	var students []models.Student
	if val := args.Get(0); val != nil {
		students = val.([]models.Student)
	}
	return students, args.Error(1)
}

func (m *AccountServiceMock) UpdateProfile(ctx context.Context, caller, username string, upd services.ProfileUpdate) (models.Student, error) {
	args := m.Called(ctx, caller, username, upd)
	var st models.Student
	if val := args.Get(0); val != nil {
		st = val.(models.Student)
	}
	return st, args.Error(1)
}

type GroupServiceMock struct {
	mock.Mock
}

func (m *GroupServiceMock) Create(ctx context.Context, caller string, in services.CreateGroupInput) (models.Group, error) {
	args := m.Called(ctx, caller, in)
	var g models.Group
	if val := args.Get(0); val != nil {
		g = val.(models.Group)
	}
	return g, args.Error(1)
}

func (m *GroupServiceMock) List(ctx context.Context) ([]models.Group, error) {
	args := m.Called(ctx)
	var groups []models.Group
	if val := args.Get(0); val != nil {
		groups = val.([]models.Group)
	}
	return groups, args.Error(1)
}

func (m *GroupServiceMock) Get(ctx context.Context, groupID string) (models.Group, error) {
	args := m.Called(ctx, groupID)
	var g models.Group
	if val := args.Get(0); val != nil {
		g = val.(models.Group)
	}
	return g, args.Error(1)
}

func (m *GroupServiceMock) Join(ctx context.Context, groupID, username string) (models.Group, error) {
	args := m.Called(ctx, groupID, username)
	var g models.Group
	if val := args.Get(0); val != nil {
		g = val.(models.Group)
	}
	return g, args.Error(1)
}

func (m *GroupServiceMock) Leave(ctx context.Context, groupID, username string) (models.Group, bool, error) {
	args := m.Called(ctx, groupID, username)
	var g models.Group
	if val := args.Get(0); val != nil {
		g = val.(models.Group)
	}
	return g, args.Bool(1), args.Error(2)
}

func (m *GroupServiceMock) Update(ctx context.Context, caller, groupID string, snap services.GroupSnapshot) (models.Group, error) {
	args := m.Called(ctx, caller, groupID, snap)
	var g models.Group
	if val := args.Get(0); val != nil {
		g = val.(models.Group)
	}
	return g, args.Error(1)
}

func (m *GroupServiceMock) Delete(ctx context.Context, caller, groupID string) error {
	args := m.Called(ctx, caller, groupID)
	return args.Error(0)
}

type MessageServiceMock struct {
	mock.Mock
}

func (m *MessageServiceMock) Append(ctx context.Context, caller, groupID string, msg models.Message) (models.Message, bool, error) {
	args := m.Called(ctx, caller, groupID, msg)
	var stored models.Message
	if val := args.Get(0); val != nil {
		stored = val.(models.Message)
	}
	return stored, args.Bool(1), args.Error(2)
}

func (m *MessageServiceMock) List(ctx context.Context, groupID string) ([]models.Message, error) {
	args := m.Called(ctx, groupID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageServiceMock) ToggleReaction(ctx context.Context, groupID, messageID, symbol, reactor string) (models.Message, error) {
	args := m.Called(ctx, groupID, messageID, symbol, reactor)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

type AssistantServiceMock struct {
	mock.Mock
}

func (m *AssistantServiceMock) Ask(ctx context.Context, caller, groupID, prompt, requestID string) (models.Message, error) {
	args := m.Called(ctx, caller, groupID, prompt, requestID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

type SuggestionServiceMock struct {
	mock.Mock
}

func (m *SuggestionServiceMock) Suggest(ctx context.Context, username string) (models.Suggestions, error) {
	args := m.Called(ctx, username)
	var out models.Suggestions
	if val := args.Get(0); val != nil {
		out = val.(models.Suggestions)
	}
	return out, args.Error(1)
}

var _ interface {
	Register(context.Context, string, string) (models.Student, error)
	Login(context.Context, string, string) (models.Student, string, error)
	Authenticate(context.Context, string) (string, error)
} = (*AccountServiceMock)(nil)
var _ interface {
	Leave(context.Context, string, string) (models.Group, bool, error)
} = (*GroupServiceMock)(nil)
