package model

import "time"

// Intent is the classified purpose of a statement.
type Intent string

// Known intents.
const (
	IntentTrackMedication Intent = "TRACK_MEDICATION"
	IntentTrackExpense    Intent = "TRACK_EXPENSE"
	IntentBuildHabit      Intent = "BUILD_HABIT"
	IntentGeneralLog      Intent = "GENERAL_LOG"
)

// Category maps an intent to the event category it is stored under.
func (i Intent) Category() Category {
	switch i {
	case IntentTrackMedication:
		return CategoryMedication
	case IntentTrackExpense:
		return CategoryFinance
	case IntentBuildHabit:
		return CategoryActivity
	default:
		return CategoryGeneral
	}
}

// Critical reports whether statements with this intent must pass validation before persisting.
func (i Intent) Critical() bool {
	return i == IntentTrackMedication || i == IntentTrackExpense
}

// Method records how an extraction result was produced.
type Method string

// Extraction methods.
const (
	MethodDeterministic Method = "deterministic"
	MethodLLMFallback   Method = "llm_fallback"
)

// Match is the tagged result of a rule firing. The concrete types are
// MedicationMatch, ExpenseMatch, ActivityMatch and Unclassified.
type Match interface {
	Intent() Intent
	Signals() map[string]any
	isMatch()
}

// MedicationMatch is produced when a statement reports taking a medication.
type MedicationMatch struct {
	Timestamp  time.Time
	Medication string
	Action     string
}

// Intent implements Match.
func (MedicationMatch) Intent() Intent { return IntentTrackMedication }

// Signals implements Match.
func (m MedicationMatch) Signals() map[string]any {
	return map[string]any{
		"medication": m.Medication,
		"action":     m.Action,
		"timestamp":  m.Timestamp.UTC().Format(time.RFC3339),
	}
}

func (MedicationMatch) isMatch() {}

// ExpenseMatch is produced when a statement reports spending money.
type ExpenseMatch struct {
	Description string
	Amount      float64 // Rounded to cents
	// RawAmount is the amount as written; numeric policy is checked against it.
	RawAmount float64
}

// Intent implements Match.
func (ExpenseMatch) Intent() Intent { return IntentTrackExpense }

// Signals implements Match.
func (m ExpenseMatch) Signals() map[string]any {
	return map[string]any{
		"amount":      m.Amount,
		"description": m.Description,
	}
}

func (ExpenseMatch) isMatch() {}

// ActivityMatch is produced when a statement reports physical activity.
type ActivityMatch struct {
	DurationMinutes *int
	Activity        string
}

// Intent implements Match.
func (ActivityMatch) Intent() Intent { return IntentBuildHabit }

// Signals implements Match.
func (m ActivityMatch) Signals() map[string]any {
	signals := map[string]any{"activity": m.Activity}
	if m.DurationMinutes != nil {
		signals["duration"] = *m.DurationMinutes
	}
	return signals
}

func (ActivityMatch) isMatch() {}

// Unclassified means no deterministic rule fired and the caller should escalate.
type Unclassified struct{}

// Intent implements Match.
func (Unclassified) Intent() Intent { return IntentGeneralLog }

// Signals implements Match.
func (Unclassified) Signals() map[string]any { return map[string]any{} }

func (Unclassified) isMatch() {}

// ExtractionResult is the output of the extractor for one statement.
type ExtractionResult struct {
	Match      Match
	Method     Method
	Confidence float64
}

// Intent returns the intent of the underlying match.
func (r ExtractionResult) Intent() Intent {
	if r.Match == nil {
		return IntentGeneralLog
	}
	return r.Match.Intent()
}

// Signals returns the loosely-typed signal map for persistence and display.
func (r ExtractionResult) Signals() map[string]any {
	if r.Match == nil {
		return map[string]any{}
	}
	return r.Match.Signals()
}

// Unclassified reports whether the result needs escalation.
func (r ExtractionResult) Unclassified() bool {
	_, ok := r.Match.(Unclassified)
	return r.Match == nil || ok
}

// Subject returns the key that duplicate and adherence logic groups on.
func (r ExtractionResult) Subject() string {
	switch m := r.Match.(type) {
	case MedicationMatch:
		return m.Medication
	case ExpenseMatch:
		return m.Description
	case ActivityMatch:
		return m.Activity
	default:
		return ""
	}
}
