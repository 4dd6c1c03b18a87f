package model

import (
	"fmt"
	"strings"
	"time"
)

// FrequencyUnit is how often a habit is meant to be completed.
type FrequencyUnit string

// Frequency units.
const (
	FrequencyDaily   FrequencyUnit = "daily"
	FrequencyWeekly  FrequencyUnit = "weekly"
	FrequencyMonthly FrequencyUnit = "monthly"
)

// ParseFrequencyUnit accepts the canonical names plus the short forms day/week/month.
func ParseFrequencyUnit(s string) (FrequencyUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily", "day":
		return FrequencyDaily, nil
	case "weekly", "week":
		return FrequencyWeekly, nil
	case "monthly", "month":
		return FrequencyMonthly, nil
	default:
		return "", fmt.Errorf("unknown frequency unit %q", s)
	}
}

// Habit is a tracked recurring practice and its stored streak state.
type Habit struct {
	CreatedAt     time.Time     `json:"created_at" yaml:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" yaml:"updated_at"`
	ID            string        `json:"id" yaml:"id"`
	UserID        string        `json:"user_id" yaml:"user_id"`
	Name          string        `json:"name" yaml:"name"`
	FrequencyUnit FrequencyUnit `json:"frequency_unit" yaml:"frequency_unit"`
	Streak        StreakState   `json:"streak" yaml:"streak"`
}

// Completion is one day's record for a habit.
type Completion struct {
	Date      time.Time `json:"date" yaml:"date"`
	Completed bool      `json:"completed" yaml:"completed"`
}

// StreakState is recomputed from completion history, never incremented in place.
type StreakState struct {
	CurrentStreak int `json:"current_streak" yaml:"current_streak"`
	LongestStreak int `json:"longest_streak" yaml:"longest_streak"`
}
