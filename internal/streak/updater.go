// Package streak recomputes habit streak state from completion history.
//
// Streaks are always replayed from a bounded trailing window of completions
// rather than incremented in place, so a recompute after any change (a new
// completion, a missed day, a frequency edit) yields the same state a fresh
// computation would.
package streak

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Veraticus/lifelog/internal/common"
	"github.com/Veraticus/lifelog/internal/model"
)

// WeekMode selects how weekly and monthly continuity is judged.
type WeekMode string

// Week modes.
const (
	// WeekModeRolling treats completions up to 7 (weekly) or 31 (monthly) days apart as consecutive.
	WeekModeRolling WeekMode = "rolling"
	// WeekModeCalendar treats completions in the same or adjacent ISO week (or calendar month) as consecutive.
	WeekModeCalendar WeekMode = "calendar"
)

// DefaultWindowDays is the trailing history replayed on every update.
const DefaultWindowDays = 90

// ParseWeekMode parses a configured week mode.
func ParseWeekMode(s string) (WeekMode, error) {
	switch WeekMode(strings.ToLower(strings.TrimSpace(s))) {
	case WeekModeRolling, "":
		return WeekModeRolling, nil
	case WeekModeCalendar:
		return WeekModeCalendar, nil
	default:
		return "", fmt.Errorf("%w: unknown week mode %q", common.ErrInvalidConfig, s)
	}
}

// Options configures an Updater.
type Options struct {
	WeekMode   WeekMode
	WindowDays int
}

// DefaultOptions returns a 90 day rolling configuration.
func DefaultOptions() Options {
	return Options{WindowDays: DefaultWindowDays, WeekMode: WeekModeRolling}
}

// Validate checks the options are usable.
func (o Options) Validate() error {
	if o.WindowDays < 1 || o.WindowDays > 366 {
		return fmt.Errorf("%w: streak window must be between 1 and 366 days, got %d", common.ErrInvalidConfig, o.WindowDays)
	}
	if o.WeekMode != WeekModeRolling && o.WeekMode != WeekModeCalendar {
		return fmt.Errorf("%w: unknown week mode %q", common.ErrInvalidConfig, o.WeekMode)
	}
	return nil
}

// Updater recomputes StreakState. It holds no mutable state.
type Updater struct {
	opts Options
}

// NewUpdater creates an updater. Zero fields fall back to the defaults.
func NewUpdater(opts Options) *Updater {
	if opts.WindowDays <= 0 {
		opts.WindowDays = DefaultWindowDays
	}
	if opts.WeekMode == "" {
		opts.WeekMode = WeekModeRolling
	}
	return &Updater{opts: opts}
}

// Options returns the effective configuration.
func (u *Updater) Options() Options {
	return u.opts
}

// Since returns the first calendar day of the replay window ending on now.
func (u *Updater) Since(now time.Time) time.Time {
	return startOfDay(now).AddDate(0, 0, -(u.opts.WindowDays - 1))
}

// Update replays history under unit's gap tolerance. previousLongest is the
// stored longest streak; the returned longest never falls below it.
func (u *Updater) Update(habitID string, history []model.Completion, unit model.FrequencyUnit, previousLongest int, now time.Time) model.StreakState {
	today := startOfDay(now)
	days := u.normalize(history, today)

	state := model.StreakState{
		CurrentStreak: u.current(days, unit, today),
		LongestStreak: u.longest(days, unit),
	}
	if previousLongest > state.LongestStreak {
		state.LongestStreak = previousLongest
	}
	if state.CurrentStreak > state.LongestStreak {
		state.LongestStreak = state.CurrentStreak
	}

	slog.Debug("Recomputed streak",
		"habit_id", habitID,
		"unit", unit,
		"week_mode", u.opts.WeekMode,
		"entries", len(days),
		"current", state.CurrentStreak,
		"longest", state.LongestStreak)

	return state
}

type day struct {
	date      time.Time
	completed bool
}

// normalize collapses rows to one per calendar day (completed wins), drops
// rows outside the window and sorts newest first.
func (u *Updater) normalize(history []model.Completion, today time.Time) []day {
	floor := today.AddDate(0, 0, -(u.opts.WindowDays - 1))
	byDate := make(map[string]*day)
	for _, c := range history {
		y, m, d := c.Date.Date()
		date := time.Date(y, m, d, 0, 0, 0, 0, today.Location())
		if date.Before(floor) || date.After(today) {
			continue
		}
		key := date.Format(model.DateLayout)
		if existing, ok := byDate[key]; ok {
			existing.completed = existing.completed || c.Completed
			continue
		}
		byDate[key] = &day{date: date, completed: c.Completed}
	}

	days := make([]day, 0, len(byDate))
	for _, d := range byDate {
		days = append(days, *d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].date.After(days[j].date) })
	return days
}

// current counts back from the most recent completion. A missed row newer
// than that completion, or a completion too far from today, resets it to 0.
func (u *Updater) current(days []day, unit model.FrequencyUnit, today time.Time) int {
	if len(days) == 0 || !days[0].completed {
		return 0
	}
	if !u.consecutive(days[0].date, today, unit) {
		return 0
	}

	streak := 1
	for i := 1; i < len(days); i++ {
		if !days[i].completed || !u.consecutive(days[i].date, days[i-1].date, unit) {
			break
		}
		streak++
	}
	return streak
}

// longest finds the longest run of consecutive completions anywhere in days.
func (u *Updater) longest(days []day, unit model.FrequencyUnit) int {
	best, run := 0, 0
	var newer time.Time
	for _, d := range days {
		switch {
		case !d.completed:
			run = 0
		case run > 0 && u.consecutive(d.date, newer, unit):
			run++
		default:
			run = 1
		}
		if d.completed {
			newer = d.date
		}
		if run > best {
			best = run
		}
	}
	return best
}

// consecutive reports whether older and newer are close enough under unit to
// continue a streak.
func (u *Updater) consecutive(older, newer time.Time, unit model.FrequencyUnit) bool {
	switch unit {
	case model.FrequencyWeekly:
		if u.opts.WeekMode == WeekModeCalendar {
			return weekIndex(newer)-weekIndex(older) <= 1
		}
		return daysBetween(older, newer) <= 7
	case model.FrequencyMonthly:
		if u.opts.WeekMode == WeekModeCalendar {
			return monthIndex(newer)-monthIndex(older) <= 1
		}
		return daysBetween(older, newer) <= 31
	default:
		return daysBetween(older, newer) <= 1
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// daysBetween counts calendar days from a to b independent of DST shifts.
func daysBetween(a, b time.Time) int {
	return int(dayNumber(b) - dayNumber(a))
}

func dayNumber(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

// weekIndex numbers ISO weeks (Monday start) consecutively.
func weekIndex(t time.Time) int64 {
	// 1970-01-01 was a Thursday; shift so weeks start on Monday.
	return (dayNumber(t) + 3) / 7
}

func monthIndex(t time.Time) int {
	return t.Year()*12 + int(t.Month())
}
