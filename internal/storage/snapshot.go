package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Snapshot errors.
var (
	ErrSnapshotExists   = errors.New("snapshot already exists")
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrSnapshotModified = errors.New("snapshot file does not match its recorded checksum")
)

// SnapshotInfo describes a point-in-time copy of the database.
type SnapshotInfo struct {
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	ID          string    `json:"id" yaml:"id"`
	Description string    `json:"description" yaml:"description"`
	Path        string    `json:"path" yaml:"path"`
	Checksum    string    `json:"checksum" yaml:"checksum"`
	Events      int       `json:"events" yaml:"events"`
	Habits      int       `json:"habits" yaml:"habits"`
}

// Snapshot copies the database into dir as <tag>.db and records its SHA-256.
// An empty tag is derived from now.
func (s *SQLiteStorage) Snapshot(ctx context.Context, dir, tag, description string, now time.Time) (*SnapshotInfo, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if tag == "" {
		tag = "snapshot-" + now.UTC().Format("2006-01-02-150405")
	}
	if strings.ContainsAny(tag, `/\`) || strings.Contains(tag, "..") {
		return nil, fmt.Errorf("invalid snapshot tag %q: cannot contain path separators", tag)
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	path := filepath.Join(dir, tag+".db")
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotExists, tag)
	}

	events, err := s.CountEvents(ctx)
	if err != nil {
		return nil, err
	}
	habits, err := s.CountHabits(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return nil, fmt.Errorf("failed to copy database: %w", err)
	}

	sum, err := fileChecksum(path)
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			slog.Error("failed to remove snapshot after checksum failure", "error", rmErr)
		}
		return nil, err
	}

	info := &SnapshotInfo{
		ID:          tag,
		CreatedAt:   now,
		Description: description,
		Path:        path,
		Checksum:    sum,
		Events:      events,
		Habits:      habits,
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, created_at, description, file_path, checksum, event_count, habit_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, info.ID, formatTime(info.CreatedAt), info.Description, info.Path, info.Checksum, info.Events, info.Habits)
	if err != nil {
		return nil, fmt.Errorf("failed to record snapshot: %w", err)
	}

	return info, nil
}

// ListSnapshots returns recorded snapshots, newest first.
func (s *SQLiteStorage) ListSnapshots(ctx context.Context) ([]SnapshotInfo, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, COALESCE(description, ''), file_path, checksum, event_count, habit_count
		FROM snapshots
		ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snapshots []SnapshotInfo
	for rows.Next() {
		var (
			info      SnapshotInfo
			createdAt string
		)
		if err := rows.Scan(&info.ID, &createdAt, &info.Description, &info.Path, &info.Checksum, &info.Events, &info.Habits); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		if info.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return snapshots, nil
}

// VerifySnapshot recomputes a snapshot file's checksum and compares it with the recorded one.
func (s *SQLiteStorage) VerifySnapshot(ctx context.Context, id string) error {
	snapshots, err := s.ListSnapshots(ctx)
	if err != nil {
		return err
	}
	for _, info := range snapshots {
		if info.ID != id {
			continue
		}
		sum, err := fileChecksum(info.Path)
		if err != nil {
			return err
		}
		if sum != info.Checksum {
			return fmt.Errorf("%w: %s", ErrSnapshotModified, id)
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
}

func fileChecksum(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // path is built from the configured snapshot directory
	if err != nil {
		return "", fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash snapshot: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
