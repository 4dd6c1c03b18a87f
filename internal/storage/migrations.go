package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Event log",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS events (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					category TEXT NOT NULL,
					subject_key TEXT NOT NULL DEFAULT '',
					raw_text TEXT NOT NULL,
					intent TEXT NOT NULL,
					method TEXT NOT NULL,
					signals TEXT NOT NULL DEFAULT '{}',
					amount_cents INTEGER,
					occurred_at TEXT NOT NULL,
					submitted_at TEXT NOT NULL,
					checksum TEXT UNIQUE
				)`,
				`CREATE INDEX idx_events_user_category_time ON events(user_id, category, occurred_at)`,
				`CREATE INDEX idx_events_user_time ON events(user_id, occurred_at)`,
			)
		},
	},
	{
		Version:     2,
		Description: "Habits and completions",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS habits (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					name TEXT NOT NULL,
					frequency_unit TEXT NOT NULL DEFAULT 'daily',
					current_streak INTEGER NOT NULL DEFAULT 0,
					longest_streak INTEGER NOT NULL DEFAULT 0,
					created_at TEXT NOT NULL,
					updated_at TEXT NOT NULL,
					UNIQUE(user_id, name)
				)`,
				`CREATE TABLE IF NOT EXISTS habit_completions (
					habit_id TEXT NOT NULL,
					completion_date TEXT NOT NULL,
					completed INTEGER NOT NULL,
					PRIMARY KEY (habit_id, completion_date),
					FOREIGN KEY (habit_id) REFERENCES habits(id) ON DELETE CASCADE
				)`,
			)
		},
	},
	{
		Version:     3,
		Description: "Snapshot history",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS snapshots (
					id TEXT PRIMARY KEY,
					created_at TEXT NOT NULL,
					description TEXT,
					file_path TEXT NOT NULL,
					checksum TEXT NOT NULL,
					event_count INTEGER NOT NULL,
					habit_count INTEGER NOT NULL
				)`,
			)
		},
	},
}

func execAll(tx *sql.Tx, queries ...string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// SchemaVersion returns the database's current schema version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	currentVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	finalVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
