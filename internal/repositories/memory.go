package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"studygroup-service/internal/models"
)

type memoryGroup struct {
	group models.Group
	log   []models.Message
	index map[string]int
}

// MemoryStore keeps every entity in process memory behind one mutex. It
// implements all repository interfaces and is used for local runs and tests.
type MemoryStore struct {
	mu       sync.Mutex
	groups   map[string]*memoryGroup
	order    []string
	students map[string]models.Student
	accounts map[string]models.Account
	now      func() time.Time
}

var (
	_ GroupRepository        = (*MemoryStore)(nil)
	_ GroupMessageRepository = (*MemoryStore)(nil)
	_ StudentRepository      = (*MemoryStore)(nil)
	_ AccountRepository      = (*MemoryStore)(nil)
)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		groups:   map[string]*memoryGroup{},
		students: map[string]models.Student{},
		accounts: map[string]models.Account{},
		now:      time.Now,
	}
}

func (s *MemoryStore) CreateGroup(_ context.Context, group models.Group) (models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := group.Clone()
	stored.Members = dedupe(stored.Members)
	stored.FocusCourses = nonNil(stored.FocusCourses)
	stored.SuggestedTimes = nonNil(stored.SuggestedTimes)
	stored.Version = 1
	stored.CreatedAt = s.now().UTC()
	stored.Messages = nil

	s.groups[stored.ID] = &memoryGroup{group: stored, index: map[string]int{}}
	s.order = append(s.order, stored.ID)
	return stored.Clone(), nil
}

func (s *MemoryStore) ListGroups(_ context.Context) ([]models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	groups := make([]models.Group, 0, len(s.order))
	for _, id := range s.order {
		groups = append(groups, s.groups[id].group.Clone())
	}
	return groups, nil
}

func (s *MemoryStore) GetGroup(_ context.Context, groupID string) (models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[groupID]
	if !ok {
		return models.Group{}, ErrGroupNotFound
	}
	return g.group.Clone(), nil
}

func (s *MemoryStore) MutateGroup(_ context.Context, groupID string, fn MutateFunc) (models.Group, GroupChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[groupID]
	if !ok {
		return models.Group{}, GroupUnchanged, ErrGroupNotFound
	}

	working := g.group.Clone()
	change, err := fn(&working)
	if err != nil {
		return models.Group{}, GroupUnchanged, err
	}

	switch change {
	case GroupDeleted:
		s.removeGroup(groupID)
		working.Messages = nil
		return working, GroupDeleted, nil
	case GroupSaved:
		next := working.Clone()
		next.ID = g.group.ID
		next.CreatedAt = g.group.CreatedAt
		next.Version = g.group.Version + 1
		next.Members = keepJoinOrder(g.group.Members, dedupe(working.Members))
		next.FocusCourses = nonNil(next.FocusCourses)
		next.SuggestedTimes = nonNil(next.SuggestedTimes)
		if working.Messages != nil {
			g.log = g.log[:0]
			g.index = map[string]int{}
			for _, m := range working.Messages {
				g.index[m.ID] = len(g.log)
				g.log = append(g.log, m.Clone())
			}
		}
		next.Messages = nil
		g.group = next
		return next.Clone(), GroupSaved, nil
	default:
		return g.group.Clone(), GroupUnchanged, nil
	}
}

func (s *MemoryStore) removeGroup(groupID string) {
	delete(s.groups, groupID)
	for i, id := range s.order {
		if id == groupID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *MemoryStore) AppendMessage(_ context.Context, groupID string, msg models.Message) (models.Message, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[groupID]
	if !ok {
		return models.Message{}, false, ErrGroupNotFound
	}
	if i, dup := g.index[msg.ID]; dup {
		return g.log[i].Clone(), false, nil
	}
	stored := msg.Clone()
	stored.Reactions = stored.Reactions.Normalize()
	g.index[stored.ID] = len(g.log)
	g.log = append(g.log, stored)
	return stored.Clone(), true, nil
}

func (s *MemoryStore) ListGroupMessages(_ context.Context, groupID string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[groupID]
	if !ok {
		return nil, ErrGroupNotFound
	}
	msgs := make([]models.Message, 0, len(g.log))
	for _, m := range g.log {
		msgs = append(msgs, m.Clone())
	}
	return msgs, nil
}

func (s *MemoryStore) GetGroupMessage(_ context.Context, groupID, messageID string) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[groupID]
	if !ok {
		return models.Message{}, ErrGroupNotFound
	}
	i, ok := g.index[messageID]
	if !ok {
		return models.Message{}, ErrMessageNotFound
	}
	return g.log[i].Clone(), nil
}

func (s *MemoryStore) ToggleReaction(_ context.Context, groupID, messageID, symbol, reactor string) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[groupID]
	if !ok {
		return models.Message{}, ErrGroupNotFound
	}
	i, ok := g.index[messageID]
	if !ok {
		return models.Message{}, ErrMessageNotFound
	}
	g.log[i].Reactions, _ = g.log[i].Reactions.Toggle(symbol, reactor)
	return g.log[i].Clone(), nil
}

func (s *MemoryStore) ListStudents(_ context.Context) ([]models.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	students := make([]models.Student, 0, len(s.students))
	for _, st := range s.students {
		students = append(students, cloneStudent(st))
	}
	sort.Slice(students, func(i, j int) bool {
		if students[i].CreatedAt.Equal(students[j].CreatedAt) {
			return students[i].Username < students[j].Username
		}
		return students[i].CreatedAt.Before(students[j].CreatedAt)
	})
	return students, nil
}

func (s *MemoryStore) GetStudentByUsername(_ context.Context, username string) (models.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.students[username]
	if !ok {
		return models.Student{}, ErrStudentNotFound
	}
	return cloneStudent(st), nil
}

func (s *MemoryStore) UpdateStudent(_ context.Context, student models.Student) (models.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.students[student.Username]
	if !ok {
		return models.Student{}, ErrStudentNotFound
	}
	current.Name = student.Name
	current.Courses = nonNil(append([]string(nil), student.Courses...))
	current.CGPA = student.CGPA
	current.Availability = nonNil(append([]string(nil), student.Availability...))
	s.students[student.Username] = current
	return cloneStudent(current), nil
}

func (s *MemoryStore) CreateAccount(_ context.Context, account models.Account, student models.Student) (models.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.accounts[account.Username]; taken {
		return models.Student{}, ErrUsernameTaken
	}
	if _, taken := s.students[student.Username]; taken {
		return models.Student{}, ErrUsernameTaken
	}
	stored := cloneStudent(student)
	stored.CreatedAt = s.now().UTC()
	account.StudentID = stored.ID
	s.students[stored.Username] = stored
	s.accounts[account.Username] = account
	return cloneStudent(stored), nil
}

func (s *MemoryStore) GetAccount(_ context.Context, username string) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[username]
	if !ok {
		return models.Account{}, ErrAccountNotFound
	}
	return acc, nil
}

func cloneStudent(st models.Student) models.Student {
	st.Courses = nonNil(append([]string(nil), st.Courses...))
	st.Availability = nonNil(append([]string(nil), st.Availability...))
	return st
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// keepJoinOrder returns next ordered so that members already in prev keep
// their original position and newcomers follow in the order given.
func keepJoinOrder(prev, next []string) []string {
	wanted := make(map[string]struct{}, len(next))
	for _, u := range next {
		wanted[u] = struct{}{}
	}
	out := make([]string, 0, len(next))
	kept := map[string]struct{}{}
	for _, u := range prev {
		if _, ok := wanted[u]; ok {
			out = append(out, u)
			kept[u] = struct{}{}
		}
	}
	for _, u := range next {
		if _, ok := kept[u]; !ok {
			out = append(out, u)
		}
	}
	return out
}
