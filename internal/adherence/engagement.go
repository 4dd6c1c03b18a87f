package adherence

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/Veraticus/lifelog/internal/model"
)

// Engagement trends.
const (
	TrendInactive   = "inactive"
	TrendDeclining  = "declining"
	TrendIncreasing = "increasing"
	TrendStable     = "stable"
)

// Churn risk levels.
const (
	RiskChurned = "churned"
	RiskHigh    = "high"
	RiskMedium  = "medium"
	RiskLow     = "low"
	RiskNone    = "none"
)

// NoActivity is reported as days since last event when a user has never logged.
const NoActivity = 999

// loggingStreakLookback bounds how many distinct days the logging streak inspects.
const loggingStreakLookback = 90

// Engagement scores a user's overall logging activity. An empty subject
// considers every event the user logged.
func (c *Calculator) Engagement(ctx context.Context, userID, subject string, now time.Time) (model.Engagement, error) {
	events, err := c.events.FindEvents(ctx, model.EventQuery{
		UserID:          userID,
		Category:        c.category,
		SubjectContains: subject,
		To:              now,
	})
	if err != nil {
		return model.Engagement{}, readError(err)
	}
	return ScoreEngagement(CollectEngagementStats(events, now)), nil
}

// CollectEngagementStats derives raw activity counts from events. Events after now are ignored.
func CollectEngagementStats(events []model.HistoricalEvent, now time.Time) model.EngagementStats {
	stats := model.EngagementStats{DaysSinceLast: NoActivity}

	loc := now.Location()
	today := startOfDay(now)
	var last time.Time
	seen := make(map[string]bool)
	var dates []time.Time

	for _, e := range events {
		if e.OccurredAt.After(now) {
			continue
		}
		if e.OccurredAt.After(last) {
			last = e.OccurredAt
		}
		age := now.Sub(e.OccurredAt)
		if age <= 7*24*time.Hour {
			stats.Events7d++
		}
		if age <= 30*24*time.Hour {
			stats.Events30d++
		}
		day := startOfDay(e.OccurredAt.In(loc))
		if key := day.Format(model.DateLayout); !seen[key] {
			seen[key] = true
			dates = append(dates, day)
		}
	}

	if !last.IsZero() {
		stats.DaysSinceLast = daysBetween(startOfDay(last.In(loc)), today)
	}
	stats.CurrentStreak = loggingStreak(dates, today)
	return stats
}

// loggingStreak counts consecutive logged days ending today or yesterday.
func loggingStreak(dates []time.Time, today time.Time) int {
	if len(dates) == 0 {
		return 0
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })
	if len(dates) > loggingStreakLookback {
		dates = dates[:loggingStreakLookback]
	}

	if d := daysBetween(dates[0], today); d != 0 && d != 1 {
		return 0
	}
	streak := 1
	for i := 0; i+1 < len(dates); i++ {
		if daysBetween(dates[i+1], dates[i]) != 1 {
			break
		}
		streak++
	}
	return streak
}

// ScoreEngagement weighs recency 40%, frequency 30%, streak 20% and growth 10%.
func ScoreEngagement(stats model.EngagementStats) model.Engagement {
	recency := scoreRecency(stats.DaysSinceLast)
	frequency := scoreFrequency(stats.Events7d)
	streak := scoreStreak(stats.CurrentStreak)
	growth := scoreGrowth(stats.Events7d, stats.Events30d)

	score := recency*0.4 + frequency*0.3 + streak*0.2 + growth*0.1

	return model.Engagement{
		Score:     int(math.Round(score)),
		Trend:     engagementTrend(score, stats.DaysSinceLast),
		RiskLevel: churnRisk(score, stats.DaysSinceLast),
		AtRisk:    stats.DaysSinceLast >= 3,
		Components: model.EngagementComponents{
			Recency:   int(math.Round(recency)),
			Frequency: int(math.Round(frequency)),
			Streak:    int(math.Round(streak)),
			Growth:    int(math.Round(growth)),
		},
		Stats: stats,
	}
}

func scoreRecency(daysSinceLast int) float64 {
	switch {
	case daysSinceLast <= 0:
		return 100
	case daysSinceLast == 1:
		return 80
	case daysSinceLast == 2:
		return 60
	case daysSinceLast == 3:
		return 40
	case daysSinceLast <= 7:
		return 20
	default:
		return 0
	}
}

func scoreFrequency(events7d int) float64 {
	switch {
	case events7d >= 14:
		return 100
	case events7d >= 7:
		return 80
	case events7d >= 4:
		return 60
	case events7d >= 2:
		return 40
	case events7d == 1:
		return 20
	default:
		return 0
	}
}

func scoreStreak(current int) float64 {
	switch {
	case current >= 21:
		return 100
	case current >= 14:
		return 80
	case current >= 7:
		return 60
	case current >= 3:
		return 40
	case current >= 1:
		return 20
	default:
		return 0
	}
}

// scoreGrowth compares the last week against the 30-day weekly average.
func scoreGrowth(events7d, events30d int) float64 {
	if events30d == 0 {
		return 0
	}
	expected := float64(events30d) / 30 * 7
	actual := float64(events7d)
	switch {
	case actual > expected*1.2:
		return 100
	case actual > expected:
		return 70
	case actual >= expected*0.8:
		return 50
	default:
		return 20
	}
}

func engagementTrend(score float64, daysSinceLast int) string {
	switch {
	case daysSinceLast >= 7:
		return TrendInactive
	case daysSinceLast >= 3:
		return TrendDeclining
	case score >= 70:
		return TrendIncreasing
	default:
		return TrendStable
	}
}

func churnRisk(score float64, daysSinceLast int) string {
	switch {
	case daysSinceLast >= 14:
		return RiskChurned
	case daysSinceLast >= 7:
		return RiskHigh
	case daysSinceLast >= 3:
		return RiskMedium
	case score < 40:
		return RiskLow
	default:
		return RiskNone
	}
}

// daysBetween counts calendar days from a to b, both midnights in the same location.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	ua := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	ub := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}
