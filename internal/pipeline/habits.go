package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/lifelog/internal/common"
	"github.com/Veraticus/lifelog/internal/model"
)

// CreateHabit registers a habit for a user.
func (p *Pipeline) CreateHabit(ctx context.Context, userID, name string, unit model.FrequencyUnit, now time.Time) (*model.Habit, error) {
	habit := &model.Habit{
		ID:            uuid.NewString(),
		UserID:        userID,
		Name:          strings.TrimSpace(name),
		FrequencyUnit: unit,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := p.store.CreateHabit(ctx, habit); err != nil {
		return nil, err
	}
	return habit, nil
}

// CompleteHabit records whether the habit was done on date's calendar day and
// recomputes its streak.
func (p *Pipeline) CompleteHabit(ctx context.Context, habitID string, date time.Time, completed bool, now time.Time) (*model.Habit, error) {
	y, m, d := date.Date()
	if time.Date(y, m, d, 0, 0, 0, 0, now.Location()).After(now) {
		return nil, fmt.Errorf("%w: cannot record a completion for %s, which is in the future",
			common.ErrInvalidInput, date.Format(model.DateLayout))
	}

	unlock := p.locks.Lock("habit|" + habitID)
	defer unlock()

	if err := p.store.LogCompletion(ctx, habitID, model.Completion{Date: date, Completed: completed}); err != nil {
		return nil, err
	}
	return p.recompute(ctx, habitID, now)
}

// ChangeFrequency switches the habit's frequency unit and recomputes its
// streak over the existing completion history.
func (p *Pipeline) ChangeFrequency(ctx context.Context, habitID string, unit model.FrequencyUnit, now time.Time) (*model.Habit, error) {
	unlock := p.locks.Lock("habit|" + habitID)
	defer unlock()

	if err := p.store.UpdateHabitFrequency(ctx, habitID, unit, now); err != nil {
		return nil, err
	}
	return p.recompute(ctx, habitID, now)
}

// RefreshStreak recomputes stored streak state, e.g. once days have passed without a completion.
func (p *Pipeline) RefreshStreak(ctx context.Context, habitID string, now time.Time) (*model.Habit, error) {
	unlock := p.locks.Lock("habit|" + habitID)
	defer unlock()

	return p.recompute(ctx, habitID, now)
}

func (p *Pipeline) recompute(ctx context.Context, habitID string, now time.Time) (*model.Habit, error) {
	habit, err := p.store.GetHabit(ctx, habitID)
	if err != nil {
		return nil, err
	}

	history, err := p.store.GetCompletions(ctx, habitID, p.streaks.Since(now))
	if err != nil {
		return nil, err
	}

	state := p.streaks.Update(habit.ID, history, habit.FrequencyUnit, habit.Streak.LongestStreak, now)
	if err := p.store.SaveStreak(ctx, habit.ID, state, now); err != nil {
		return nil, err
	}

	slog.Info("Updated habit streak",
		"habit_id", habit.ID,
		"name", habit.Name,
		"frequency", habit.FrequencyUnit,
		"current", state.CurrentStreak,
		"longest", state.LongestStreak)

	habit.Streak = state
	habit.UpdatedAt = now
	return habit, nil
}
