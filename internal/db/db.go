package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"studygroup-service/internal/logging"
)

// Connect opens the Postgres pool and applies the schema.
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS students (
        id TEXT PRIMARY KEY,
        username TEXT NOT NULL UNIQUE,
        name TEXT NOT NULL DEFAULT '',
        courses TEXT[] NOT NULL DEFAULT '{}',
        cgpa TEXT NOT NULL DEFAULT '',
        availability TEXT[] NOT NULL DEFAULT '{}',
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    );`,
	`CREATE TABLE IF NOT EXISTS accounts (
        username TEXT PRIMARY KEY,
        password_hash TEXT NOT NULL,
        student_id TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE
    );`,
	`CREATE TABLE IF NOT EXISTS groups (
        id TEXT PRIMARY KEY,
        name TEXT NOT NULL,
        admin TEXT NOT NULL,
        focus_courses TEXT[] NOT NULL DEFAULT '{}',
        suggested_times TEXT[] NOT NULL DEFAULT '{}',
        reason TEXT NOT NULL DEFAULT '',
        version BIGINT NOT NULL DEFAULT 1,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    );`,
	`CREATE TABLE IF NOT EXISTS group_members (
        group_id TEXT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
        username TEXT NOT NULL,
        joined_seq BIGSERIAL,
        PRIMARY KEY (group_id, username)
    );`,
	`CREATE TABLE IF NOT EXISTS group_messages (
        group_id TEXT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
        id TEXT NOT NULL,
        seq BIGSERIAL,
        sender TEXT NOT NULL,
        text TEXT NOT NULL,
        display_time TEXT NOT NULL DEFAULT '',
        parent_id TEXT NOT NULL DEFAULT '',
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        PRIMARY KEY (group_id, id)
    );`,
	`CREATE INDEX IF NOT EXISTS idx_group_messages_seq ON group_messages (group_id, seq);`,
	`CREATE TABLE IF NOT EXISTS message_reactions (
        group_id TEXT NOT NULL,
        message_id TEXT NOT NULL,
        emoji TEXT NOT NULL,
        username TEXT NOT NULL,
        reacted_seq BIGSERIAL,
        PRIMARY KEY (group_id, message_id, emoji, username),
        FOREIGN KEY (group_id, message_id) REFERENCES group_messages(group_id, id) ON DELETE CASCADE
    );`,
}

func runMigrations(ctx context.Context, db *sqlx.DB) error {
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	logging.Log.Info("database migrations applied", zap.Int("statements", len(migrations)))
	return nil
}
