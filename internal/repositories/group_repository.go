package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"studygroup-service/internal/models"
)

// GroupRepo is a sqlx implementation of GroupRepository.
type GroupRepo struct {
	db *sqlx.DB
}

// NewGroupRepo constructs a GroupRepo.
func NewGroupRepo(db *sqlx.DB) *GroupRepo {
	return &GroupRepo{db: db}
}

type groupRow struct {
	ID             string         `db:"id"`
	Name           string         `db:"name"`
	Admin          string         `db:"admin"`
	FocusCourses   pq.StringArray `db:"focus_courses"`
	SuggestedTimes pq.StringArray `db:"suggested_times"`
	Reason         string         `db:"reason"`
	Version        int64          `db:"version"`
	CreatedAt      time.Time      `db:"created_at"`
}

func (r groupRow) toModel(members []string) models.Group {
	return models.Group{
		ID:             r.ID,
		GroupName:      r.Name,
		Admin:          r.Admin,
		Members:        nonNil(members),
		FocusCourses:   nonNil(r.FocusCourses),
		SuggestedTimes: nonNil(r.SuggestedTimes),
		Reason:         r.Reason,
		Version:        r.Version,
		CreatedAt:      r.CreatedAt,
	}
}

const groupColumns = `id, name, admin, focus_courses, suggested_times, reason, version, created_at`

// CreateGroup inserts the group and its initial members atomically.
func (r *GroupRepo) CreateGroup(ctx context.Context, group models.Group) (models.Group, error) {
	var created models.Group
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var row groupRow
		if err := tx.QueryRowxContext(ctx, `INSERT INTO groups (id, name, admin, focus_courses, suggested_times, reason, version)
            VALUES ($1, $2, $3, $4, $5, $6, 1) RETURNING `+groupColumns,
			group.ID, group.GroupName, group.Admin, pq.StringArray(group.FocusCourses), pq.StringArray(group.SuggestedTimes), group.Reason).
			StructScan(&row); err != nil {
			return fmt.Errorf("insert group: %w", err)
		}
		if err := addMembers(ctx, tx, group.ID, group.Members); err != nil {
			return err
		}
		members, err := loadMembers(ctx, tx, group.ID)
		if err != nil {
			return err
		}
		created = row.toModel(members)
		return nil
	})
	return created, err
}

// ListGroups returns every group, oldest first.
func (r *GroupRepo) ListGroups(ctx context.Context) ([]models.Group, error) {
	var rows []groupRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+groupColumns+` FROM groups ORDER BY created_at ASC, id ASC`); err != nil {
		return nil, err
	}

	var memberRows []struct {
		GroupID  string `db:"group_id"`
		Username string `db:"username"`
	}
	if err := r.db.SelectContext(ctx, &memberRows, `SELECT group_id, username FROM group_members ORDER BY joined_seq ASC`); err != nil {
		return nil, err
	}
	membersByGroup := map[string][]string{}
	for _, m := range memberRows {
		membersByGroup[m.GroupID] = append(membersByGroup[m.GroupID], m.Username)
	}

	groups := make([]models.Group, 0, len(rows))
	for _, row := range rows {
		groups = append(groups, row.toModel(membersByGroup[row.ID]))
	}
	return groups, nil
}

// GetGroup fetches a single group.
func (r *GroupRepo) GetGroup(ctx context.Context, groupID string) (models.Group, error) {
	return loadGroup(ctx, r.db, groupID, false)
}

// MutateGroup locks the group row for the duration of fn.
func (r *GroupRepo) MutateGroup(ctx context.Context, groupID string, fn MutateFunc) (models.Group, GroupChange, error) {
	var (
		result models.Group
		change GroupChange
	)
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		group, err := loadGroup(ctx, tx, groupID, true)
		if err != nil {
			return err
		}
		change, err = fn(&group)
		if err != nil {
			return err
		}

		switch change {
		case GroupDeleted:
			if _, err := tx.ExecContext(ctx, `DELETE FROM groups WHERE id=$1`, groupID); err != nil {
				return fmt.Errorf("delete group: %w", err)
			}
			result = group
			return nil
		case GroupSaved:
			if err := saveGroup(ctx, tx, groupID, group); err != nil {
				return err
			}
			if group.Messages != nil {
				if err := replaceLog(ctx, tx, groupID, group.Messages); err != nil {
					return err
				}
			}
			result, err = loadGroup(ctx, tx, groupID, false)
			return err
		default:
			result = group
			return nil
		}
	})
	if err != nil {
		return models.Group{}, GroupUnchanged, err
	}
	return result, change, nil
}

func loadGroup(ctx context.Context, q sqlx.QueryerContext, groupID string, forUpdate bool) (models.Group, error) {
	query := `SELECT ` + groupColumns + ` FROM groups WHERE id=$1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var row groupRow
	err := sqlx.GetContext(ctx, q, &row, query, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Group{}, ErrGroupNotFound
	}
	if err != nil {
		return models.Group{}, err
	}
	members, err := loadMembers(ctx, q, groupID)
	if err != nil {
		return models.Group{}, err
	}
	return row.toModel(members), nil
}

func loadMembers(ctx context.Context, q sqlx.QueryerContext, groupID string) ([]string, error) {
	var members []string
	err := sqlx.SelectContext(ctx, q, &members, `SELECT username FROM group_members WHERE group_id=$1 ORDER BY joined_seq ASC`, groupID)
	return members, err
}

// addMembers keeps the join position of members that are already present.
func addMembers(ctx context.Context, tx *sqlx.Tx, groupID string, members []string) error {
	for _, username := range members {
		if _, err := tx.ExecContext(ctx, `INSERT INTO group_members (group_id, username) VALUES ($1, $2)
            ON CONFLICT (group_id, username) DO NOTHING`, groupID, username); err != nil {
			return fmt.Errorf("insert member: %w", err)
		}
	}
	return nil
}

func saveGroup(ctx context.Context, tx *sqlx.Tx, groupID string, group models.Group) error {
	if _, err := tx.ExecContext(ctx, `UPDATE groups
        SET name=$2, admin=$3, focus_courses=$4, suggested_times=$5, reason=$6, version=version+1
        WHERE id=$1`,
		groupID, group.GroupName, group.Admin, pq.StringArray(group.FocusCourses), pq.StringArray(group.SuggestedTimes), group.Reason); err != nil {
		return fmt.Errorf("update group: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM group_members WHERE group_id=$1 AND NOT (username = ANY($2))`,
		groupID, pq.StringArray(group.Members)); err != nil {
		return fmt.Errorf("prune members: %w", err)
	}
	return addMembers(ctx, tx, groupID, group.Members)
}

func replaceLog(ctx context.Context, tx *sqlx.Tx, groupID string, msgs []models.Message) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM group_messages WHERE group_id=$1`, groupID); err != nil {
		return fmt.Errorf("clear message log: %w", err)
	}
	for _, msg := range msgs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO group_messages (group_id, id, sender, text, display_time, parent_id)
            VALUES ($1, $2, $3, $4, $5, $6)`, groupID, msg.ID, msg.Sender, msg.Text, msg.Timestamp, msg.ParentID); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		if err := insertReactions(ctx, tx, groupID, msg.ID, msg.Reactions); err != nil {
			return err
		}
	}
	return nil
}

func insertReactions(ctx context.Context, tx *sqlx.Tx, groupID, messageID string, reactions models.Reactions) error {
	symbols := make([]string, 0, len(reactions))
	for symbol := range reactions {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	for _, symbol := range symbols {
		for _, reactor := range reactions[symbol] {
			if _, err := tx.ExecContext(ctx, `INSERT INTO message_reactions (group_id, message_id, emoji, username)
                VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`, groupID, messageID, symbol, reactor); err != nil {
				return fmt.Errorf("insert reaction: %w", err)
			}
		}
	}
	return nil
}

func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
