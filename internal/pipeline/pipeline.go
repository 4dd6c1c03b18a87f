// Package pipeline is the caller layer around the integrity core: it extracts
// a statement, validates critical intents and persists accepted events.
//
// Validation and insert for one (user, category) run under a per-key lock,
// and inside one store transaction when the store offers transactions.
// Medication duplicates match on subject substrings, so two different
// subject spellings still serialize. The store's unique checksum constraint
// rejects any insert that races past the lock from another process.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/lifelog/internal/common"
	"github.com/Veraticus/lifelog/internal/extract"
	"github.com/Veraticus/lifelog/internal/model"
	"github.com/Veraticus/lifelog/internal/service"
	"github.com/Veraticus/lifelog/internal/streak"
	"github.com/Veraticus/lifelog/internal/validation"
)

// ReasonAlreadyRecorded is the rejection reason when the store refuses a repeated checksum.
const ReasonAlreadyRecorded = "Duplicate: an identical event is already recorded"

// Store is the persistence the pipeline needs.
type Store interface {
	service.EventReader
	service.EventWriter
	service.HabitStore
}

// Config holds configuration options for the pipeline.
type Config struct {
	Retry  service.RetryOptions
	Streak streak.Options
	Policy validation.Policy
	// Transactional validates and inserts critical events inside one store
	// transaction when the store supports it.
	Transactional bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Transactional: true,
		Policy:        validation.DefaultPolicy(),
		Streak:        streak.DefaultOptions(),
		Retry: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     2 * time.Second,
			Multiplier:   2.0,
		},
	}
}

// Pipeline orchestrates extraction, validation and persistence.
type Pipeline struct {
	store      Store
	transactor service.Transactor
	escalator  Escalator
	extractor  *extract.Extractor
	validator  *validation.Validator
	streaks    *streak.Updater
	locks      *keyedMutex
	retry      service.RetryOptions
}

// Submission is one statement to record.
type Submission struct {
	// Amount, when set, routes the statement through transaction validation
	// with this amount instead of any amount found in the text.
	Amount    *float64
	UserID    string
	Statement model.RawStatement
}

// Result reports what happened to a submission.
type Result struct {
	// Outcome is nil for intents that do not require validation.
	Outcome *model.ValidationOutcome
	// Event is the persisted event, nil when the submission was rejected.
	Event      *model.HistoricalEvent
	Extraction model.ExtractionResult
}

// Accepted reports whether the submission was persisted.
func (r *Result) Accepted() bool {
	return r.Event != nil
}

// New creates a pipeline with the default configuration.
func New(store Store, escalator Escalator) *Pipeline {
	return NewWithConfig(store, escalator, DefaultConfig())
}

// NewWithConfig creates a pipeline with custom configuration.
func NewWithConfig(store Store, escalator Escalator, config Config) *Pipeline {
	if escalator == nil {
		escalator = NoopEscalator{}
	}
	p := &Pipeline{
		store:     store,
		escalator: escalator,
		extractor: extract.New(),
		validator: validation.NewWithPolicy(store, config.Policy),
		streaks:   streak.NewUpdater(config.Streak),
		locks:     newKeyedMutex(),
		retry:     config.Retry,
	}
	if transactor, ok := store.(service.Transactor); ok && config.Transactional {
		p.transactor = transactor
	}
	return p
}

// Submit classifies a statement and records it if it passes validation.
// Policy rejections are reported in the Result; only infrastructure failures
// are returned as errors.
func (p *Pipeline) Submit(ctx context.Context, sub Submission, now time.Time) (*Result, error) {
	statement := sub.Statement
	statement.Text = strings.TrimSpace(statement.Text)
	if statement.Text == "" {
		return nil, fmt.Errorf("%w: statement text is required", common.ErrInvalidInput)
	}
	if sub.UserID == "" {
		return nil, fmt.Errorf("%w: user ID is required", common.ErrInvalidInput)
	}
	if statement.ObservedAt.IsZero() {
		statement.ObservedAt = now
	}
	if statement.SubmittedAt.IsZero() {
		statement.SubmittedAt = now
	}

	extraction := p.extractor.Extract(statement.Text, statement.ObservedAt)
	if extraction.Unclassified() {
		escalated, err := p.escalator.Escalate(ctx, sub.UserID, statement, extraction)
		if err != nil {
			slog.Warn("Escalation failed, keeping general log entry",
				"user_id", sub.UserID,
				"error", err)
		} else {
			extraction = escalated
		}
	}
	if sub.Amount != nil {
		extraction = asExpense(extraction, statement.Text, *sub.Amount)
	}

	result := &Result{Extraction: extraction}
	intent := extraction.Intent()

	if !intent.Critical() {
		event := newEvent(sub.UserID, statement, extraction)
		event.SubjectKey = extraction.Subject()
		if err := p.save(ctx, event); err != nil {
			return nil, err
		}
		result.Event = event
		slog.Info("Recorded statement",
			"user_id", sub.UserID,
			"intent", intent,
			"subject", event.SubjectKey)
		return result, nil
	}

	unlock := p.locks.Lock(lockKey(sub.UserID, intent))
	defer unlock()

	var (
		outcome model.ValidationOutcome
		event   *model.HistoricalEvent
		err     error
	)
	if p.transactor != nil {
		outcome, event, err = p.recordInTx(ctx, sub.UserID, statement, extraction, now)
	} else {
		outcome, event, err = p.record(ctx, sub.UserID, statement, extraction, now)
	}
	if errors.Is(err, common.ErrDuplicateEntry) {
		rejected := model.Reject(ReasonAlreadyRecorded)
		result.Outcome = &rejected
		slog.Info("Rejected statement",
			"user_id", sub.UserID,
			"intent", intent,
			"subject", extraction.Subject(),
			"reasons", rejected.Errors)
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	result.Outcome = &outcome

	if !outcome.Valid {
		slog.Info("Rejected statement",
			"user_id", sub.UserID,
			"intent", intent,
			"subject", extraction.Subject(),
			"reasons", outcome.Errors)
		return result, nil
	}

	result.Event = event
	slog.Info("Accepted statement",
		"user_id", sub.UserID,
		"intent", intent,
		"subject", event.SubjectKey,
		"checksum", event.Checksum)
	return result, nil
}

// record validates against the store and then inserts, retrying each step.
func (p *Pipeline) record(ctx context.Context, userID string, statement model.RawStatement, extraction model.ExtractionResult, now time.Time) (model.ValidationOutcome, *model.HistoricalEvent, error) {
	var outcome model.ValidationOutcome
	err := common.WithRetry(ctx, func() error {
		var validateErr error
		outcome, validateErr = p.validate(ctx, p.validator, userID, statement, extraction, now)
		return validateErr
	}, p.retry)
	if err != nil || !outcome.Valid {
		return outcome, nil, err
	}

	event := acceptedEvent(userID, statement, extraction, *outcome.Metadata)
	if err := p.save(ctx, event); err != nil {
		return outcome, nil, err
	}
	return outcome, event, nil
}

// recordInTx runs the duplicate read, the policy checks and the insert in one
// store transaction. A retry repeats the whole unit.
func (p *Pipeline) recordInTx(ctx context.Context, userID string, statement model.RawStatement, extraction model.ExtractionResult, now time.Time) (model.ValidationOutcome, *model.HistoricalEvent, error) {
	var (
		outcome model.ValidationOutcome
		event   *model.HistoricalEvent
	)
	err := common.WithRetry(ctx, func() error {
		var txErr error
		outcome, event, txErr = p.attemptTx(ctx, userID, statement, extraction, now)
		return txErr
	}, p.retry)
	return outcome, event, err
}

func (p *Pipeline) attemptTx(ctx context.Context, userID string, statement model.RawStatement, extraction model.ExtractionResult, now time.Time) (model.ValidationOutcome, *model.HistoricalEvent, error) {
	tx, err := p.transactor.BeginTx(ctx)
	if err != nil {
		return model.ValidationOutcome{}, nil, common.StoreUnavailable("begin transaction", err)
	}
	// Rollback after a successful commit is a no-op.
	defer func() { _ = tx.Rollback() }()

	validator := validation.NewWithPolicy(tx, p.validator.Policy())
	outcome, err := p.validate(ctx, validator, userID, statement, extraction, now)
	if err != nil || !outcome.Valid {
		return outcome, nil, err
	}

	event := acceptedEvent(userID, statement, extraction, *outcome.Metadata)
	if err := tx.SaveEvent(ctx, event); err != nil {
		return outcome, nil, err
	}
	if err := tx.Commit(); err != nil {
		return outcome, nil, common.StoreUnavailable("commit event", err)
	}
	return outcome, event, nil
}

func (p *Pipeline) validate(ctx context.Context, validator *validation.Validator, userID string, statement model.RawStatement, extraction model.ExtractionResult, now time.Time) (model.ValidationOutcome, error) {
	switch m := extraction.Match.(type) {
	case model.MedicationMatch:
		return validator.ValidateMedication(ctx, userID, statement.Text, statement.ObservedAt, now)
	case model.ExpenseMatch:
		return validator.ValidateTransaction(ctx, userID, statement.Text, m.RawAmount, statement.ObservedAt, now)
	default:
		return model.ValidationOutcome{}, fmt.Errorf("%w: intent %s has no validator", common.ErrInvalidInput, extraction.Intent())
	}
}

func (p *Pipeline) save(ctx context.Context, event *model.HistoricalEvent) error {
	return common.WithRetry(ctx, func() error {
		return p.store.SaveEvent(ctx, event)
	}, p.retry)
}

func newEvent(userID string, statement model.RawStatement, extraction model.ExtractionResult) *model.HistoricalEvent {
	intent := extraction.Intent()
	return &model.HistoricalEvent{
		ID:          uuid.NewString(),
		UserID:      userID,
		Category:    intent.Category(),
		RawText:     statement.Text,
		Intent:      intent,
		Method:      extraction.Method,
		Signals:     extraction.Signals(),
		OccurredAt:  statement.ObservedAt,
		SubmittedAt: statement.SubmittedAt,
	}
}

func acceptedEvent(userID string, statement model.RawStatement, extraction model.ExtractionResult, meta model.ValidationMetadata) *model.HistoricalEvent {
	event := newEvent(userID, statement, extraction)
	event.SubjectKey = meta.Subject
	event.AmountCents = meta.AmountCents
	event.Checksum = meta.Checksum
	return event
}

// asExpense forces a statement onto the transaction path with an explicit amount.
func asExpense(extraction model.ExtractionResult, text string, amount float64) model.ExtractionResult {
	if m, ok := extraction.Match.(model.ExpenseMatch); ok {
		m.Amount = extract.RoundCents(amount)
		m.RawAmount = amount
		extraction.Match = m
		return extraction
	}

	description := text
	if _, parsed, ok := extract.ParseExpense(text); ok {
		description = parsed
	}
	return model.ExtractionResult{
		Match:      model.ExpenseMatch{Description: description, Amount: extract.RoundCents(amount), RawAmount: amount},
		Method:     model.MethodDeterministic,
		Confidence: extract.DeterministicConfidence,
	}
}

// lockKey scopes critical locks to the user and category.
func lockKey(userID string, intent model.Intent) string {
	return userID + "|" + string(intent.Category())
}
