package model

import "time"

// DayCount is the number of matching events on one calendar day.
type DayCount struct {
	Date  string `json:"date" yaml:"date"`
	Count int    `json:"event_count" yaml:"event_count"`
}

// Gap is a contiguous run of days with no matching events.
type Gap struct {
	StartDate string `json:"start_date" yaml:"start_date"`
	EndDate   string `json:"end_date" yaml:"end_date"`
	Days      int    `json:"days" yaml:"days"`
}

// AdherenceReport summarizes how consistently a subject was logged over a window.
type AdherenceReport struct {
	CalculatedAt        time.Time  `json:"calculated_at" yaml:"calculated_at"`
	UserID              string     `json:"user_id" yaml:"user_id"`
	Subject             string     `json:"subject" yaml:"subject"`
	Checksum            string     `json:"checksum" yaml:"checksum"`
	Days                []DayCount `json:"days" yaml:"days"`
	Gaps                []Gap      `json:"gaps" yaml:"gaps"`
	Pattern             []int      `json:"pattern" yaml:"pattern"`
	PeriodDays          int        `json:"period_days" yaml:"period_days"`
	ActualDays          int        `json:"actual_days" yaml:"actual_days"`
	ExpectedDays        int        `json:"expected_days" yaml:"expected_days"`
	MissedDays          int        `json:"missed_days" yaml:"missed_days"`
	AdherencePercentage int        `json:"adherence_percentage" yaml:"adherence_percentage"`
	CurrentStreak       int        `json:"current_streak" yaml:"current_streak"`
	TotalEvents         int        `json:"total_events" yaml:"total_events"`
}

// DeterminismCheck is the result of recomputing a report several times over one snapshot.
type DeterminismCheck struct {
	Checksums     []string `json:"checksums" yaml:"checksums"`
	Iterations    int      `json:"iterations" yaml:"iterations"`
	Deterministic bool     `json:"is_deterministic" yaml:"is_deterministic"`
}

// AlertLevel classifies derived adherence alerts.
type AlertLevel string

// Alert levels.
const (
	AlertCritical AlertLevel = "critical"
	AlertWarning  AlertLevel = "warning"
	AlertSuccess  AlertLevel = "success"
)

// Alert is a derived, never-stored observation about a report.
type Alert struct {
	Level   AlertLevel `json:"level" yaml:"level"`
	Message string     `json:"message" yaml:"message"`
}

// AllTimeStats summarizes every matching event regardless of window.
type AllTimeStats struct {
	FirstLog *time.Time `json:"first_log,omitempty" yaml:"first_log,omitempty"`
	LastLog  *time.Time `json:"last_log,omitempty" yaml:"last_log,omitempty"`
	Total    int        `json:"total" yaml:"total"`
}

// DetailedAdherence bundles weekly and monthly reports with all-time totals.
type DetailedAdherence struct {
	Weekly  *AdherenceReport `json:"weekly" yaml:"weekly"`
	Monthly *AdherenceReport `json:"monthly" yaml:"monthly"`
	AllTime AllTimeStats     `json:"all_time" yaml:"all_time"`
}

// EngagementStats are the raw activity counts an engagement score is derived from.
type EngagementStats struct {
	DaysSinceLast int `json:"days_since_last" yaml:"days_since_last"`
	Events7d      int `json:"events_7d" yaml:"events_7d"`
	Events30d     int `json:"events_30d" yaml:"events_30d"`
	CurrentStreak int `json:"current_streak" yaml:"current_streak"`
}

// EngagementComponents are the per-factor scores, each 0-100.
type EngagementComponents struct {
	Recency   int `json:"recency" yaml:"recency"`
	Frequency int `json:"frequency" yaml:"frequency"`
	Streak    int `json:"streak" yaml:"streak"`
	Growth    int `json:"growth" yaml:"growth"`
}

// Engagement is an overall engagement score with trend and churn risk.
type Engagement struct {
	Trend      string               `json:"trend" yaml:"trend"`
	RiskLevel  string               `json:"risk_level" yaml:"risk_level"`
	Components EngagementComponents `json:"components" yaml:"components"`
	Stats      EngagementStats      `json:"stats" yaml:"stats"`
	Score      int                  `json:"engagement_score" yaml:"engagement_score"`
	AtRisk     bool                 `json:"is_at_risk" yaml:"is_at_risk"`
}
