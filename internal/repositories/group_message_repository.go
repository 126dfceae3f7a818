package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"studygroup-service/internal/models"
)

// GroupMessageRepo is a sqlx-backed implementation. Messages and reactions
// live in their own tables so appends and toggles never rewrite the log.
type GroupMessageRepo struct {
	db *sqlx.DB
}

// NewGroupMessageRepo constructs a GroupMessageRepo.
func NewGroupMessageRepo(db *sqlx.DB) *GroupMessageRepo {
	return &GroupMessageRepo{db: db}
}

type messageRow struct {
	ID          string `db:"id"`
	Sender      string `db:"sender"`
	Text        string `db:"text"`
	DisplayTime string `db:"display_time"`
	ParentID    string `db:"parent_id"`
}

func (r messageRow) toModel() models.Message {
	return models.Message{
		ID:        r.ID,
		Sender:    r.Sender,
		Text:      r.Text,
		Timestamp: r.DisplayTime,
		ParentID:  r.ParentID,
	}
}

type reactionRow struct {
	MessageID string `db:"message_id"`
	Emoji     string `db:"emoji"`
	Username  string `db:"username"`
}

const messageColumns = `id, sender, text, display_time, parent_id`

// AppendMessage inserts msg at the end of the log unless its id is taken.
func (r *GroupMessageRepo) AppendMessage(ctx context.Context, groupID string, msg models.Message) (models.Message, bool, error) {
	var (
		stored  models.Message
		created bool
	)
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := lockGroupShared(ctx, tx, groupID); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `INSERT INTO group_messages (group_id, id, sender, text, display_time, parent_id)
            VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (group_id, id) DO NOTHING`,
			groupID, msg.ID, msg.Sender, msg.Text, msg.Timestamp, msg.ParentID)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		count, err := res.RowsAffected()
		if err != nil {
			return err
		}
		created = count == 1
		if created {
			if err := insertReactions(ctx, tx, groupID, msg.ID, msg.Reactions); err != nil {
				return err
			}
		}

		stored, err = getMessage(ctx, tx, groupID, msg.ID)
		return err
	})
	if err != nil {
		return models.Message{}, false, err
	}
	return stored, created, nil
}

// ListGroupMessages returns the log in arrival order.
func (r *GroupMessageRepo) ListGroupMessages(ctx context.Context, groupID string) ([]models.Message, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM groups WHERE id=$1)`, groupID); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrGroupNotFound
	}

	var rows []messageRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+messageColumns+` FROM group_messages WHERE group_id=$1 ORDER BY seq ASC`, groupID); err != nil {
		return nil, err
	}
	var reactions []reactionRow
	if err := r.db.SelectContext(ctx, &reactions, `SELECT message_id, emoji, username FROM message_reactions
        WHERE group_id=$1 ORDER BY reacted_seq ASC`, groupID); err != nil {
		return nil, err
	}

	byMessage := map[string]models.Reactions{}
	for _, rr := range reactions {
		if byMessage[rr.MessageID] == nil {
			byMessage[rr.MessageID] = models.Reactions{}
		}
		byMessage[rr.MessageID][rr.Emoji] = append(byMessage[rr.MessageID][rr.Emoji], rr.Username)
	}

	msgs := make([]models.Message, 0, len(rows))
	for _, row := range rows {
		m := row.toModel()
		m.Reactions = byMessage[row.ID]
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// GetGroupMessage fetches a single message with its reactions.
func (r *GroupMessageRepo) GetGroupMessage(ctx context.Context, groupID, messageID string) (models.Message, error) {
	return getMessage(ctx, r.db, groupID, messageID)
}

// ToggleReaction adds or removes one reactor row.
func (r *GroupMessageRepo) ToggleReaction(ctx context.Context, groupID, messageID, symbol, reactor string) (models.Message, error) {
	var updated models.Message
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := lockGroupShared(ctx, tx, groupID); err != nil {
			return err
		}
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM group_messages WHERE group_id=$1 AND id=$2)`, groupID, messageID); err != nil {
			return err
		}
		if !exists {
			return ErrMessageNotFound
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM message_reactions
            WHERE group_id=$1 AND message_id=$2 AND emoji=$3 AND username=$4`, groupID, messageID, symbol, reactor)
		if err != nil {
			return fmt.Errorf("remove reaction: %w", err)
		}
		removed, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if removed == 0 {
			if _, err := tx.ExecContext(ctx, `INSERT INTO message_reactions (group_id, message_id, emoji, username)
                VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`, groupID, messageID, symbol, reactor); err != nil {
				return fmt.Errorf("add reaction: %w", err)
			}
		}

		updated, err = getMessage(ctx, tx, groupID, messageID)
		return err
	})
	return updated, err
}

// lockGroupShared blocks concurrent deletes and log replacement while a
// message or reaction is written.
func lockGroupShared(ctx context.Context, tx *sqlx.Tx, groupID string) error {
	var id string
	err := tx.GetContext(ctx, &id, `SELECT id FROM groups WHERE id=$1 FOR SHARE`, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrGroupNotFound
	}
	return err
}

func getMessage(ctx context.Context, q sqlx.QueryerContext, groupID, messageID string) (models.Message, error) {
	var row messageRow
	err := sqlx.GetContext(ctx, q, &row, `SELECT `+messageColumns+` FROM group_messages WHERE group_id=$1 AND id=$2`, groupID, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, err
	}

	var reactions []reactionRow
	if err := sqlx.SelectContext(ctx, q, &reactions, `SELECT message_id, emoji, username FROM message_reactions
        WHERE group_id=$1 AND message_id=$2 ORDER BY reacted_seq ASC`, groupID, messageID); err != nil {
		return models.Message{}, err
	}

	msg := row.toModel()
	for _, rr := range reactions {
		if msg.Reactions == nil {
			msg.Reactions = models.Reactions{}
		}
		msg.Reactions[rr.Emoji] = append(msg.Reactions[rr.Emoji], rr.Username)
	}
	return msg, nil
}
