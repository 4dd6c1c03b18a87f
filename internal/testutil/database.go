// Package testutil provides shared test fixtures: a migrated SQLite store,
// an in-memory event store and fixed clocks.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Veraticus/lifelog/internal/model"
	"github.com/Veraticus/lifelog/internal/service"
	"github.com/Veraticus/lifelog/internal/storage"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a migrated in-memory database seeded with events.
// The database is closed when the test finishes.
func SetupTestDB(t *testing.T, events ...model.HistoricalEvent) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(storage.MemoryPath)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	for i := range events {
		if err := store.SaveEvent(ctx, &events[i]); err != nil {
			t.Fatalf("failed to seed event %q: %v", events[i].ID, err)
		}
	}

	return &TestDB{
		Storage: store,
		t:       t,
	}
}

// MustCreateHabit inserts a habit or fails the test.
func (db *TestDB) MustCreateHabit(habit model.Habit) *model.Habit {
	db.t.Helper()
	if err := db.Storage.CreateHabit(context.Background(), &habit); err != nil {
		db.t.Fatalf("failed to create habit %q: %v", habit.Name, err)
	}
	return &habit
}

// WithTransaction executes fn within a transaction that is always rolled back.
func (db *TestDB) WithTransaction(fn func(tx service.Transaction) error) error {
	tx, err := db.Storage.BeginTx(context.Background())
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	return fn(tx)
}

// Clock returns a function that always reports now.
func Clock(now time.Time) func() time.Time {
	return func() time.Time { return now }
}

// SteppingClock returns a clock that starts at start and advances by step on every call.
func SteppingClock(start time.Time, step time.Duration) func() time.Time {
	next := start
	return func() time.Time {
		current := next
		next = next.Add(step)
		return current
	}
}
