package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/lifelog/internal/common"
	"github.com/Veraticus/lifelog/internal/model"
)

const habitColumns = `id, user_id, name, frequency_unit, current_streak, longest_streak, created_at, updated_at`

// CreateHabit inserts a new habit. A repeated name for the same user yields common.ErrDuplicateEntry.
func (s *SQLiteStorage) CreateHabit(ctx context.Context, habit *model.Habit) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateHabit(habit); err != nil {
		return err
	}

	if habit.CreatedAt.IsZero() {
		habit.CreatedAt = time.Now()
	}
	if habit.UpdatedAt.IsZero() {
		habit.UpdatedAt = habit.CreatedAt
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO habits (`+habitColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		habit.ID,
		habit.UserID,
		habit.Name,
		string(habit.FrequencyUnit),
		habit.Streak.CurrentStreak,
		habit.Streak.LongestStreak,
		formatTime(habit.CreatedAt),
		formatTime(habit.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: habit %q", common.ErrDuplicateEntry, habit.Name)
		}
		return fmt.Errorf("failed to create habit: %w", err)
	}
	return nil
}

// GetHabit retrieves a habit by ID.
func (s *SQLiteStorage) GetHabit(ctx context.Context, id string) (*model.Habit, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+habitColumns+` FROM habits WHERE id = ?`, id)
	habit, err := scanHabit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: habit %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return habit, nil
}

// FindHabitByName looks up a user's habit by its name.
func (s *SQLiteStorage) FindHabitByName(ctx context.Context, userID, name string) (*model.Habit, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+habitColumns+` FROM habits WHERE user_id = ? AND name = ?`, userID, name)
	habit, err := scanHabit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: habit %q", common.ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return habit, nil
}

// ListHabits returns a user's habits ordered by name.
func (s *SQLiteStorage) ListHabits(ctx context.Context, userID string) ([]model.Habit, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+habitColumns+`
		FROM habits
		WHERE user_id = ?
		ORDER BY name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query habits: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var habits []model.Habit
	for rows.Next() {
		habit, err := scanHabit(rows)
		if err != nil {
			return nil, err
		}
		habits = append(habits, *habit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating habits: %w", err)
	}
	return habits, nil
}

// UpdateHabitFrequency changes a habit's frequency unit. Stored completions are untouched.
func (s *SQLiteStorage) UpdateHabitFrequency(ctx context.Context, id string, unit model.FrequencyUnit, updatedAt time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateFrequency(unit); err != nil {
		return err
	}

	return s.updateHabit(ctx, id, `
		UPDATE habits SET frequency_unit = ?, updated_at = ? WHERE id = ?
	`, string(unit), formatTime(updatedAt), id)
}

// SaveStreak stores recomputed streak state for a habit.
func (s *SQLiteStorage) SaveStreak(ctx context.Context, id string, state model.StreakState, updatedAt time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	return s.updateHabit(ctx, id, `
		UPDATE habits SET current_streak = ?, longest_streak = ?, updated_at = ? WHERE id = ?
	`, state.CurrentStreak, state.LongestStreak, formatTime(updatedAt), id)
}

func (s *SQLiteStorage) updateHabit(ctx context.Context, id, stmt string, args ...any) error {
	result, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("failed to update habit: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: habit %s", common.ErrNotFound, id)
	}
	return nil
}

// LogCompletion records the completion state for one calendar day, replacing any earlier entry for that day.
func (s *SQLiteStorage) LogCompletion(ctx context.Context, habitID string, completion model.Completion) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(habitID, "habitID"); err != nil {
		return err
	}
	if completion.Date.IsZero() {
		return fmt.Errorf("%w: completion date", ErrNilParameter)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO habit_completions (habit_id, completion_date, completed)
		VALUES (?, ?, ?)
		ON CONFLICT(habit_id, completion_date) DO UPDATE SET
			completed = excluded.completed
	`, habitID, completion.Date.Format(model.DateLayout), completion.Completed)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: habit %s", common.ErrNotFound, habitID)
		}
		return fmt.Errorf("failed to log completion: %w", err)
	}
	return nil
}

// GetCompletions returns completions on or after since's calendar day, newest first.
func (s *SQLiteStorage) GetCompletions(ctx context.Context, habitID string, since time.Time) ([]model.Completion, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT completion_date, completed
		FROM habit_completions
		WHERE habit_id = ? AND completion_date >= ?
		ORDER BY completion_date DESC
	`, habitID, since.Format(model.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query completions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var completions []model.Completion
	for rows.Next() {
		var (
			date      string
			completed bool
		)
		if err := rows.Scan(&date, &completed); err != nil {
			return nil, fmt.Errorf("failed to scan completion: %w", err)
		}
		parsed, err := time.Parse(model.DateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("failed to parse completion date %q: %w", date, err)
		}
		completions = append(completions, model.Completion{Date: parsed, Completed: completed})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating completions: %w", err)
	}
	return completions, nil
}

// CountHabits returns the number of stored habits.
func (s *SQLiteStorage) CountHabits(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM habits").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count habits: %w", err)
	}
	return count, nil
}

func scanHabit(row scanner) (*model.Habit, error) {
	var (
		habit                model.Habit
		unit                 string
		createdAt, updatedAt string
	)
	err := row.Scan(
		&habit.ID,
		&habit.UserID,
		&habit.Name,
		&unit,
		&habit.Streak.CurrentStreak,
		&habit.Streak.LongestStreak,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan habit: %w", err)
	}

	habit.FrequencyUnit = model.FrequencyUnit(unit)
	if habit.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if habit.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &habit, nil
}
