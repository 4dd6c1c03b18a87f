// Package storage provides the SQLite persistence layer for events and habits.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/lifelog/internal/model"
)

// Validation errors.
var (
	ErrNilContext   = errors.New("context cannot be nil")
	ErrEmptyString  = errors.New("string parameter cannot be empty")
	ErrNilParameter = errors.New("parameter cannot be nil")
	ErrInvalidEvent = errors.New("invalid event")
	ErrInvalidHabit = errors.New("invalid habit")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateEvent validates an event before insert.
func validateEvent(event *model.HistoricalEvent) error {
	if event == nil {
		return fmt.Errorf("%w: event", ErrNilParameter)
	}
	if event.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidEvent)
	}
	if event.UserID == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidEvent)
	}
	if event.Category == "" {
		return fmt.Errorf("%w: missing category", ErrInvalidEvent)
	}
	if event.OccurredAt.IsZero() {
		return fmt.Errorf("%w: missing occurrence time", ErrInvalidEvent)
	}
	return nil
}

// validateHabit validates a habit before insert.
func validateHabit(habit *model.Habit) error {
	if habit == nil {
		return fmt.Errorf("%w: habit", ErrNilParameter)
	}
	if habit.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidHabit)
	}
	if habit.UserID == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidHabit)
	}
	if strings.TrimSpace(habit.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidHabit)
	}
	if err := validateFrequency(habit.FrequencyUnit); err != nil {
		return err
	}
	return nil
}

func validateFrequency(unit model.FrequencyUnit) error {
	switch unit {
	case model.FrequencyDaily, model.FrequencyWeekly, model.FrequencyMonthly:
		return nil
	default:
		return fmt.Errorf("%w: unknown frequency unit %q", ErrInvalidHabit, unit)
	}
}
