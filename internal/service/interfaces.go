// Package service defines the interfaces between the integrity core and its collaborators.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/lifelog/internal/model"
)

// EventReader is the read side of the event store. The validator and the
// adherence calculator only ever read through this interface.
type EventReader interface {
	// FindEvents returns matching events ordered by occurrence time, oldest
	// first unless the query asks for newest first.
	FindEvents(ctx context.Context, query model.EventQuery) ([]model.HistoricalEvent, error)
}

// EventWriter persists accepted events.
type EventWriter interface {
	// SaveEvent inserts an event. A checksum that already exists yields common.ErrDuplicateEntry.
	SaveEvent(ctx context.Context, event *model.HistoricalEvent) error
}

// HabitStore owns habit records and their completion log.
type HabitStore interface {
	CreateHabit(ctx context.Context, habit *model.Habit) error
	GetHabit(ctx context.Context, id string) (*model.Habit, error)
	FindHabitByName(ctx context.Context, userID, name string) (*model.Habit, error)
	ListHabits(ctx context.Context, userID string) ([]model.Habit, error)
	UpdateHabitFrequency(ctx context.Context, id string, unit model.FrequencyUnit, updatedAt time.Time) error
	SaveStreak(ctx context.Context, id string, state model.StreakState, updatedAt time.Time) error
	// LogCompletion upserts the completion for the habit's calendar day.
	LogCompletion(ctx context.Context, habitID string, completion model.Completion) error
	// GetCompletions returns completions on or after since, newest first.
	GetCompletions(ctx context.Context, habitID string, since time.Time) ([]model.Completion, error)
}

// Transactor opens event transactions.
type Transactor interface {
	BeginTx(ctx context.Context) (Transaction, error)
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	EventReader
	EventWriter
	HabitStore
	Transactor

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	EventReader
	EventWriter
	Commit() error
	Rollback() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
