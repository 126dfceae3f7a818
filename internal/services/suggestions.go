package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"studygroup-service/internal/ai"
	"studygroup-service/internal/apperr"
	"studygroup-service/internal/logging"
	"studygroup-service/internal/models"
	"studygroup-service/internal/observability"
	"studygroup-service/internal/repositories"
)

// Suggester produces recommendations for one student.
type Suggester interface {
	Suggest(ctx context.Context, me models.Student, others []models.Student, groups []models.Group) (models.Suggestions, error)
}

// SuggestionService gathers the directory and asks the model for matches.
type SuggestionService struct {
	students  repositories.StudentRepository
	groups    repositories.GroupRepository
	suggester Suggester
}

func NewSuggestionService(students repositories.StudentRepository, groups repositories.GroupRepository, suggester Suggester) *SuggestionService {
	return &SuggestionService{students: students, groups: groups, suggester: suggester}
}

// Suggest returns peer, group and resource recommendations for username.
func (s *SuggestionService) Suggest(ctx context.Context, username string) (models.Suggestions, error) {
	ctx, span := tracer.Start(ctx, "suggestions.Suggest")
	defer span.End()

	me, err := s.students.GetStudentByUsername(ctx, username)
	if err != nil {
		return models.Suggestions{}, translate(err, "load profile")
	}
	all, err := s.students.ListStudents(ctx)
	if err != nil {
		return models.Suggestions{}, translate(err, "list students")
	}
	others := make([]models.Student, 0, len(all))
	for _, st := range all {
		if st.Username != username {
			others = append(others, st)
		}
	}
	groups, err := s.groups.ListGroups(ctx)
	if err != nil {
		return models.Suggestions{}, translate(err, "list groups")
	}

	started := time.Now()
	out, err := s.suggester.Suggest(ctx, me, others, groups)
	observability.ObserveModelCall("suggestions", started)
	if err != nil {
		logging.Log.Warn("suggestion request failed", zap.String("username", username), zap.Error(err))
		switch {
		case errors.Is(err, ai.ErrMalformedReply):
			return models.Suggestions{}, apperr.Upstream("Failed to parse the AI's response. The data might be malformed.", err)
		case errors.Is(err, ai.ErrNotConfigured):
			return models.Suggestions{}, apperr.Upstream("The AI service is not configured.", err)
		default:
			return models.Suggestions{}, apperr.Upstream("An error occurred while communicating with the AI for suggestions.", err)
		}
	}
	return out, nil
}
