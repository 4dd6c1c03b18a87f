// Package adherence turns a history of logged events into gap, streak and
// percentage statistics.
//
// Every report is a pure function of (user, subject, window, event snapshot,
// now) and carries a checksum over exactly those inputs, so repeated
// computation against an unchanged store is verifiable.
package adherence

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/Veraticus/lifelog/internal/checksum"
	"github.com/Veraticus/lifelog/internal/common"
	"github.com/Veraticus/lifelog/internal/model"
	"github.com/Veraticus/lifelog/internal/service"
)

// Standard report windows.
const (
	WeeklyWindow  = 7
	MonthlyWindow = 30

	// MaxWindow bounds a report to roughly ten years of daily buckets.
	MaxWindow = 3660
)

// Calculator computes adherence reports from an event store.
type Calculator struct {
	events   service.EventReader
	category model.Category
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithCategory restricts matching events to one category.
func WithCategory(category model.Category) Option {
	return func(c *Calculator) {
		c.category = category
	}
}

// New creates a calculator reading from events.
func New(events service.EventReader, opts ...Option) *Calculator {
	c := &Calculator{events: events}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Calculate builds the adherence report for subject over the trailing
// windowDays calendar days ending on now's calendar day.
func (c *Calculator) Calculate(ctx context.Context, userID, subject string, windowDays int, now time.Time) (*model.AdherenceReport, error) {
	if err := checkArgs(subject, windowDays); err != nil {
		return nil, err
	}

	start, end := windowBounds(windowDays, now)
	events, err := c.events.FindEvents(ctx, model.EventQuery{
		UserID:          userID,
		Category:        c.category,
		SubjectContains: subject,
		From:            start,
		To:              end,
	})
	if err != nil {
		return nil, readError(err)
	}

	return Analyze(userID, subject, windowDays, events, now)
}

// Detailed returns the weekly and monthly reports plus all-time totals.
func (c *Calculator) Detailed(ctx context.Context, userID, subject string, now time.Time) (*model.DetailedAdherence, error) {
	weekly, err := c.Calculate(ctx, userID, subject, WeeklyWindow, now)
	if err != nil {
		return nil, err
	}
	monthly, err := c.Calculate(ctx, userID, subject, MonthlyWindow, now)
	if err != nil {
		return nil, err
	}

	events, err := c.events.FindEvents(ctx, model.EventQuery{
		UserID:          userID,
		Category:        c.category,
		SubjectContains: subject,
		To:              now,
	})
	if err != nil {
		return nil, readError(err)
	}

	detailed := &model.DetailedAdherence{
		Weekly:  weekly,
		Monthly: monthly,
		AllTime: model.AllTimeStats{Total: len(events)},
	}
	if len(events) > 0 {
		first := events[0].OccurredAt
		last := events[len(events)-1].OccurredAt
		detailed.AllTime.FirstLog = &first
		detailed.AllTime.LastLog = &last
	}
	return detailed, nil
}

// VerifyDeterminism recomputes the report iterations times and compares checksums.
func (c *Calculator) VerifyDeterminism(ctx context.Context, userID, subject string, windowDays, iterations int, now time.Time) (model.DeterminismCheck, error) {
	if iterations < 1 {
		return model.DeterminismCheck{}, fmt.Errorf("%w: iterations must be at least 1", common.ErrInvalidInput)
	}

	check := model.DeterminismCheck{
		Iterations:    iterations,
		Checksums:     make([]string, 0, iterations),
		Deterministic: true,
	}
	for i := 0; i < iterations; i++ {
		report, err := c.Calculate(ctx, userID, subject, windowDays, now)
		if err != nil {
			return model.DeterminismCheck{}, err
		}
		if i > 0 && report.Checksum != check.Checksums[0] {
			check.Deterministic = false
		}
		check.Checksums = append(check.Checksums, report.Checksum)
	}
	return check, nil
}

// Analyze computes a report from an already fetched event set. Events outside
// the window are ignored, so callers may pass a superset.
func Analyze(userID, subject string, windowDays int, events []model.HistoricalEvent, now time.Time) (*model.AdherenceReport, error) {
	if err := checkArgs(subject, windowDays); err != nil {
		return nil, err
	}

	loc := now.Location()
	today := startOfDay(now)
	start := today.AddDate(0, 0, -(windowDays - 1))

	counts := make(map[string]int)
	total := 0
	for _, e := range events {
		day := startOfDay(e.OccurredAt.In(loc))
		if day.Before(start) || day.After(today) {
			continue
		}
		counts[day.Format(model.DateLayout)]++
		total++
	}

	report := &model.AdherenceReport{
		UserID:       userID,
		Subject:      subject,
		PeriodDays:   windowDays,
		ExpectedDays: windowDays,
		CalculatedAt: now,
		TotalEvents:  total,
		Days:         make([]model.DayCount, 0, len(counts)),
		Gaps:         []model.Gap{},
		Pattern:      make([]int, windowDays),
	}

	var gap *model.Gap
	for i := 0; i < windowDays; i++ {
		date := start.AddDate(0, 0, i).Format(model.DateLayout)
		n := counts[date]
		if n > 0 {
			report.Days = append(report.Days, model.DayCount{Date: date, Count: n})
			report.Pattern[i] = 1
			if gap != nil {
				report.Gaps = append(report.Gaps, *gap)
				gap = nil
			}
			continue
		}
		if gap == nil {
			gap = &model.Gap{StartDate: date}
		}
		gap.EndDate = date
		gap.Days++
	}
	if gap != nil {
		report.Gaps = append(report.Gaps, *gap)
	}

	report.ActualDays = len(report.Days)
	report.MissedDays = windowDays - report.ActualDays
	report.AdherencePercentage = int(math.Round(100 * float64(report.ActualDays) / float64(windowDays)))

	for i := windowDays - 1; i >= 0 && report.Pattern[i] == 1; i-- {
		report.CurrentStreak++
	}

	sum, err := reportChecksum(userID, subject, windowDays, report.Days)
	if err != nil {
		return nil, err
	}
	report.Checksum = sum

	slog.Debug("Computed adherence",
		"user_id", userID,
		"subject", subject,
		"window_days", windowDays,
		"actual_days", report.ActualDays,
		"current_streak", report.CurrentStreak)

	return report, nil
}

func reportChecksum(userID, subject string, windowDays int, days []model.DayCount) (string, error) {
	entries := make([]map[string]any, len(days))
	for i, d := range days {
		entries[i] = map[string]any{
			"date":        d.Date,
			"event_count": d.Count,
		}
	}
	return checksum.Sum(checksum.DomainAdherence, map[string]any{
		"user_id":     userID,
		"subject":     subject,
		"window_days": windowDays,
		"days":        entries,
	})
}

func checkArgs(subject string, windowDays int) error {
	if subject == "" {
		return fmt.Errorf("%w: subject is required", common.ErrInvalidInput)
	}
	if windowDays < 1 || windowDays > MaxWindow {
		return fmt.Errorf("%w: window must be between 1 and %d days, got %d", common.ErrInvalidInput, MaxWindow, windowDays)
	}
	return nil
}

// windowBounds returns the first instant of the window and the last instant of today.
func windowBounds(windowDays int, now time.Time) (time.Time, time.Time) {
	today := startOfDay(now)
	return today.AddDate(0, 0, -(windowDays - 1)), today.AddDate(0, 0, 1).Add(-time.Nanosecond)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func readError(err error) error {
	if common.IsStoreUnavailable(err) {
		return err
	}
	return common.StoreUnavailable("adherence query", err)
}
