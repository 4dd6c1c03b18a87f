// Package model defines the core data structures for the lifelog application.
package model

import (
	"time"
)

// DateLayout is the calendar-day format used in reports and checksums.
const DateLayout = "2006-01-02"

// Category groups events for duplicate and adherence queries.
type Category string

// Event categories.
const (
	CategoryMedication Category = "medication"
	CategoryFinance    Category = "finance"
	CategoryActivity   Category = "activity"
	CategoryGeneral    Category = "general"
)

// RawStatement is a user's free-text claim about something that happened.
type RawStatement struct {
	ObservedAt  time.Time // When the user claims it happened; may be backdated
	SubmittedAt time.Time // Server-observed submission time
	Text        string
}

// HistoricalEvent is an accepted, persisted event as read back from storage.
type HistoricalEvent struct {
	OccurredAt  time.Time      `json:"occurred_at" yaml:"occurred_at"`
	SubmittedAt time.Time      `json:"submitted_at" yaml:"submitted_at"`
	AmountCents *int64         `json:"amount_cents,omitempty" yaml:"amount_cents,omitempty"`
	Signals     map[string]any `json:"signals,omitempty" yaml:"signals,omitempty"`
	ID          string         `json:"id" yaml:"id"`
	UserID      string         `json:"user_id" yaml:"user_id"`
	Category    Category       `json:"category" yaml:"category"`
	SubjectKey  string         `json:"subject_key" yaml:"subject_key"`
	RawText     string         `json:"raw_text" yaml:"raw_text"`
	Intent      Intent         `json:"intent" yaml:"intent"`
	Method      Method         `json:"method" yaml:"method"`
	Checksum    string         `json:"checksum,omitempty" yaml:"checksum,omitempty"`
}

// Ref returns a lightweight reference to the event.
func (e HistoricalEvent) Ref() *EventRef {
	return &EventRef{
		ID:         e.ID,
		OccurredAt: e.OccurredAt,
		RawText:    e.RawText,
	}
}

// EventRef points at a previously recorded event, e.g. the one a submission duplicates.
type EventRef struct {
	OccurredAt time.Time `json:"occurred_at" yaml:"occurred_at"`
	ID         string    `json:"id" yaml:"id"`
	RawText    string    `json:"raw_text" yaml:"raw_text"`
}

// EventQuery filters historical events. Zero values mean "no filter".
type EventQuery struct {
	From            time.Time // Inclusive
	To              time.Time // Inclusive
	AmountCents     *int64
	UserID          string
	Category        Category
	SubjectContains string // Case-insensitive match against subject key or raw text
	Limit           int
	NewestFirst     bool
}
