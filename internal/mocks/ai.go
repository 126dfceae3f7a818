package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"studygroup-service/internal/ai"
	"studygroup-service/internal/models"
	"studygroup-service/internal/services"
)

type GeneratorMock struct {
	mock.Mock
}

func (m *GeneratorMock) Generate(ctx context.Context, req ai.GenerateRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type ReplierMock struct {
	mock.Mock
}

func (m *ReplierMock) Reply(ctx context.Context, history []models.Message, prompt string) (string, error) {
	args := m.Called(ctx, history, prompt)
	return args.String(0), args.Error(1)
}

type SuggesterMock struct {
	mock.Mock
}

func (m *SuggesterMock) Suggest(ctx context.Context, me models.Student, others []models.Student, groups []models.Group) (models.Suggestions, error) {
	args := m.Called(ctx, me, others, groups)
	var out models.Suggestions
	if val := args.Get(0); val != nil {
		out = val.(models.Suggestions)
	}
	return out, args.Error(1)
}

var _ ai.Generator = (*GeneratorMock)(nil)
var _ services.Replier = (*ReplierMock)(nil)
var _ services.Suggester = (*SuggesterMock)(nil)
