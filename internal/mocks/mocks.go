package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"studygroup-service/internal/models"
	"studygroup-service/internal/repositories"
)

type GroupRepositoryMock struct {
	mock.Mock
}

func (m *GroupRepositoryMock) CreateGroup(ctx context.Context, group models.Group) (models.Group, error) {
	args := m.Called(ctx, group)
	var out models.Group
	if val := args.Get(0); val != nil {
		out = val.(models.Group)
	}
	return out, args.Error(1)
}

func (m *GroupRepositoryMock) ListGroups(ctx context.Context) ([]models.Group, error) {
	args := m.Called(ctx)
	var groups []models.Group
	if val := args.Get(0); val != nil {
		groups = val.([]models.Group)
	}
	return groups, args.Error(1)
}

func (m *GroupRepositoryMock) GetGroup(ctx context.Context, groupID string) (models.Group, error) {
	args := m.Called(ctx, groupID)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	return group, args.Error(1)
}

// MutateGroup applies fn to the group returned by the expectation's first
// value so the caller's rules still run.
func (m *GroupRepositoryMock) MutateGroup(ctx context.Context, groupID string, fn repositories.MutateFunc) (models.Group, repositories.GroupChange, error) {
	args := m.Called(ctx, groupID, fn)
	if err := args.Error(1); err != nil {
		return models.Group{}, repositories.GroupUnchanged, err
	}
	group := args.Get(0).(models.Group).Clone()
	change, err := fn(&group)
	if err != nil {
		return models.Group{}, repositories.GroupUnchanged, err
	}
	return group, change, nil
}

type GroupMessageRepositoryMock struct {
	mock.Mock
}

func (m *GroupMessageRepositoryMock) AppendMessage(ctx context.Context, groupID string, msg models.Message) (models.Message, bool, error) {
	args := m.Called(ctx, groupID, msg)
	var stored models.Message
	if val := args.Get(0); val != nil {
		stored = val.(models.Message)
	}
	return stored, args.Bool(1), args.Error(2)
}

func (m *GroupMessageRepositoryMock) ListGroupMessages(ctx context.Context, groupID string) ([]models.Message, error) {
	args := m.Called(ctx, groupID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *GroupMessageRepositoryMock) GetGroupMessage(ctx context.Context, groupID, messageID string) (models.Message, error) {
	args := m.Called(ctx, groupID, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *GroupMessageRepositoryMock) ToggleReaction(ctx context.Context, groupID, messageID, symbol, reactor string) (models.Message, error) {
	args := m.Called(ctx, groupID, messageID, symbol, reactor)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

var _ repositories.GroupRepository = (*GroupRepositoryMock)(nil)
var _ repositories.GroupMessageRepository = (*GroupMessageRepositoryMock)(nil)
