package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"studygroup-service/internal/logging"
	"studygroup-service/internal/models"
	"studygroup-service/internal/repositories"
)

const demoPassword = "password123"

type demoStudent struct {
	username     string
	name         string
	courses      []string
	cgpa         string
	availability []string
}

var demoStudents = []demoStudent{
	{"alice", "Alice Johnson", []string{"Data Structures", "Algorithms"}, "3.8", []string{"Mon Afternoon", "Wed Afternoon"}},
	{"bob", "Bob Williams", []string{"Data Structures", "Operating Systems"}, "3.5", []string{"Tue Morning", "Thu Morning"}},
	{"charlie", "Charlie Brown", []string{"Algorithms", "Database Systems", "Intro to CS"}, "3.9", []string{"Mon Afternoon", "Fri Afternoon"}},
	{"diana", "Diana Prince", []string{"Machine Learning", "Artificial Intelligence"}, "4.0", []string{"Weekends"}},
}

// Seeder loads the demo directory into an empty store.
type Seeder struct {
	accounts *AccountService
	students repositories.StudentRepository
	groups   repositories.GroupRepository
	messages repositories.GroupMessageRepository
}

func NewSeeder(accounts *AccountService, students repositories.StudentRepository, groups repositories.GroupRepository, messages repositories.GroupMessageRepository) *Seeder {
	return &Seeder{accounts: accounts, students: students, groups: groups, messages: messages}
}

// Seed does nothing when any student already exists.
func (s *Seeder) Seed(ctx context.Context) (bool, error) {
	existing, err := s.students.ListStudents(ctx)
	if err != nil {
		return false, fmt.Errorf("count students: %w", err)
	}
	if len(existing) > 0 {
		logging.Log.Info("demo data already present, skipping seed")
		return false, nil
	}

	for _, d := range demoStudents {
		student, err := s.accounts.Register(ctx, d.username, demoPassword)
		if err != nil {
			return false, fmt.Errorf("seed %s: %w", d.username, err)
		}
		student.Name = d.name
		student.Courses = d.courses
		student.CGPA = d.cgpa
		student.Availability = d.availability
		if _, err := s.students.UpdateStudent(ctx, student); err != nil {
			return false, fmt.Errorf("seed profile %s: %w", d.username, err)
		}
	}

	algo, err := s.groups.CreateGroup(ctx, models.Group{
		ID:             "group-algo-avengers",
		GroupName:      "Algo Avengers",
		Admin:          "alice",
		Members:        []string{"alice", "charlie"},
		FocusCourses:   []string{"Algorithms"},
		SuggestedTimes: []string{"Mon Afternoon"},
		Reason:         "Initial group for Algorithms course.",
	})
	if err != nil {
		return false, fmt.Errorf("seed group: %w", err)
	}
	for _, m := range []models.Message{
		{ID: "m1", Sender: "alice", Text: "Hey Charlie, ready for the midterm?", Timestamp: "10:30 AM"},
		{ID: "m2", Sender: "charlie", Text: "You bet! Been studying sorting algorithms all night.", Timestamp: "10:31 AM"},
	} {
		if _, _, err := s.messages.AppendMessage(ctx, algo.ID, m); err != nil {
			return false, fmt.Errorf("seed message %s: %w", m.ID, err)
		}
	}

	if _, err := s.groups.CreateGroup(ctx, models.Group{
		ID:             "group-data-dominators",
		GroupName:      "Data Dominators",
		Admin:          "bob",
		Members:        []string{"bob"},
		FocusCourses:   []string{"Data Structures"},
		SuggestedTimes: []string{"Tue Morning"},
		Reason:         "Bob created this group for DS.",
	}); err != nil {
		return false, fmt.Errorf("seed group: %w", err)
	}

	logging.Log.Info("demo data seeded", zap.Int("students", len(demoStudents)), zap.Int("groups", 2))
	return true, nil
}
