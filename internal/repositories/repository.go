package repositories

import (
	"context"
	"errors"

	"studygroup-service/internal/models"
)

var (
	ErrGroupNotFound   = errors.New("group not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrStudentNotFound = errors.New("student not found")
	ErrAccountNotFound = errors.New("account not found")
	ErrUsernameTaken   = errors.New("username already exists")
)

// GroupChange tells MutateGroup what to do with the edited group.
type GroupChange int

const (
	GroupUnchanged GroupChange = iota
	GroupSaved
	GroupDeleted
)

// MutateFunc edits a locked group in place. Setting g.Messages to a non-nil
// slice replaces the group's whole message log on save.
type MutateFunc func(g *models.Group) (GroupChange, error)

// GroupRepository abstracts group persistence.
type GroupRepository interface {
	CreateGroup(ctx context.Context, group models.Group) (models.Group, error)
	ListGroups(ctx context.Context) ([]models.Group, error)
	GetGroup(ctx context.Context, groupID string) (models.Group, error)
	// MutateGroup runs fn under an exclusive lock on the group. Members are
	// always returned in join order; members kept across a save keep their
	// original join position.
	MutateGroup(ctx context.Context, groupID string, fn MutateFunc) (models.Group, GroupChange, error)
}

// GroupMessageRepository defines interactions for group message logs.
type GroupMessageRepository interface {
	// AppendMessage inserts msg unless a message with the same id already
	// exists in the group, in which case the stored copy is returned and
	// created is false.
	AppendMessage(ctx context.Context, groupID string, msg models.Message) (stored models.Message, created bool, err error)
	ListGroupMessages(ctx context.Context, groupID string) ([]models.Message, error)
	GetGroupMessage(ctx context.Context, groupID, messageID string) (models.Message, error)
	ToggleReaction(ctx context.Context, groupID, messageID, symbol, reactor string) (models.Message, error)
}

// StudentRepository abstracts student profile persistence.
type StudentRepository interface {
	ListStudents(ctx context.Context) ([]models.Student, error)
	GetStudentByUsername(ctx context.Context, username string) (models.Student, error)
	UpdateStudent(ctx context.Context, student models.Student) (models.Student, error)
}

// AccountRepository abstracts credential persistence.
type AccountRepository interface {
	// CreateAccount stores the account and its student profile together.
	CreateAccount(ctx context.Context, account models.Account, student models.Student) (models.Student, error)
	GetAccount(ctx context.Context, username string) (models.Account, error)
}
