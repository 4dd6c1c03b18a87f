// Package validation enforces acceptance policy for medication and finance events.
//
// Validation is read-only against the event store. Policy violations are
// returned as rejected outcomes; only store failures are returned as errors.
// The check is not atomic with the caller's insert, so callers must serialize
// validate-then-persist per subject (see pipeline) or rely on the store's
// unique checksum constraint.
package validation

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/lifelog/internal/checksum"
	"github.com/Veraticus/lifelog/internal/common"
	"github.com/Veraticus/lifelog/internal/extract"
	"github.com/Veraticus/lifelog/internal/model"
	"github.com/Veraticus/lifelog/internal/service"
)

// Rejection reasons that do not carry dynamic values.
const (
	ReasonNoMedication       = "Could not identify medication name"
	ReasonFutureMedication   = "Cannot log future medications"
	ReasonInvalidAmount      = "Amount must be a valid number"
	ReasonAmountPrecision    = "Amount must have at most 2 decimal places"
	ReasonMissingDescription = "Transaction description is required"
)

// Validator applies Policy using read queries against an EventReader.
type Validator struct {
	events service.EventReader
	policy Policy
}

// New creates a validator with the default policy.
func New(events service.EventReader) *Validator {
	return NewWithPolicy(events, DefaultPolicy())
}

// NewWithPolicy creates a validator with custom limits.
func NewWithPolicy(events service.EventReader, policy Policy) *Validator {
	return &Validator{
		events: events,
		policy: policy,
	}
}

// Policy returns the limits this validator enforces.
func (v *Validator) Policy() Policy {
	return v.policy
}

// ValidateMedication checks a medication log for duplicates and dating policy.
func (v *Validator) ValidateMedication(ctx context.Context, userID, text string, observedAt, now time.Time) (model.ValidationOutcome, error) {
	medication, ok := extract.ParseMedication(text)
	if !ok {
		return model.Reject(ReasonNoMedication), nil
	}

	window := v.policy.MedicationDuplicateWindow
	existing, err := v.events.FindEvents(ctx, model.EventQuery{
		UserID:          userID,
		Category:        model.CategoryMedication,
		SubjectContains: medication,
		From:            observedAt.Add(-window),
		To:              observedAt.Add(window),
	})
	if err != nil {
		return model.ValidationOutcome{}, storeError("medication duplicate check", err)
	}
	if dup, found := nearest(existing, observedAt); found {
		hours := absDuration(dup.OccurredAt.Sub(observedAt)).Hours()
		return model.RejectDuplicate(
			fmt.Sprintf("Duplicate: %q already logged %.1f hours ago", medication, hours),
			dup.Ref(),
		), nil
	}

	elapsed := now.Sub(observedAt)
	if elapsed > v.policy.MedicationMaxBackdate {
		return model.Reject(fmt.Sprintf("Cannot backdate more than %s hours (attempted %.1f hours ago)",
			formatNumber(v.policy.MedicationMaxBackdate.Hours()), elapsed.Hours())), nil
	}

	if observedAt.After(now) {
		return model.Reject(ReasonFutureMedication), nil
	}

	sum, err := checksum.Sum(checksum.DomainValidation, map[string]any{
		"category":    string(model.CategoryMedication),
		"user_id":     userID,
		"subject":     medication,
		"observed_at": observedAt,
	})
	if err != nil {
		return model.ValidationOutcome{}, err
	}

	return model.Accept(model.ValidationMetadata{
		Subject:     medication,
		Checksum:    sum,
		ValidatedAt: now,
	}), nil
}

// ValidateTransaction checks an expense for numeric policy, duplicates and backdating.
func (v *Validator) ValidateTransaction(ctx context.Context, userID, text string, amount float64, observedAt, now time.Time) (model.ValidationOutcome, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return model.Reject(ReasonInvalidAmount), nil
	}
	if amount < v.policy.MinAmount || amount > v.policy.MaxAmount {
		return model.Reject(fmt.Sprintf("Amount must be between $%s and $%s",
			formatMoney(v.policy.MinAmount), formatMoney(v.policy.MaxAmount))), nil
	}
	if math.Abs(amount-extract.RoundCents(amount)) > v.policy.PrecisionTolerance {
		return model.Reject(ReasonAmountPrecision), nil
	}
	cents := int64(math.Round(amount * 100))

	description := strings.TrimSpace(text)
	if _, parsed, ok := extract.ParseExpense(text); ok {
		description = parsed
	}
	if description == "" {
		return model.Reject(ReasonMissingDescription), nil
	}

	window := v.policy.FinanceDuplicateWindow
	existing, err := v.events.FindEvents(ctx, model.EventQuery{
		UserID:      userID,
		Category:    model.CategoryFinance,
		AmountCents: &cents,
		From:        observedAt.Add(-window),
		To:          observedAt.Add(window),
	})
	if err != nil {
		return model.ValidationOutcome{}, storeError("transaction duplicate check", err)
	}
	if dup, found := nearest(existing, observedAt); found {
		return model.RejectDuplicate(
			fmt.Sprintf("Duplicate transaction detected within %s minutes", formatNumber(window.Minutes())),
			dup.Ref(),
		), nil
	}

	elapsed := now.Sub(observedAt)
	if elapsed > v.policy.FinanceMaxBackdate {
		return model.Reject(fmt.Sprintf("Cannot backdate more than %s days (attempted %.1f days ago)",
			formatNumber(v.policy.FinanceMaxBackdate.Hours()/24), elapsed.Hours()/24)), nil
	}

	sum, err := checksum.Sum(checksum.DomainValidation, map[string]any{
		"category":     string(model.CategoryFinance),
		"user_id":      userID,
		"subject":      description,
		"observed_at":  observedAt,
		"amount_cents": cents,
	})
	if err != nil {
		return model.ValidationOutcome{}, err
	}

	return model.Accept(model.ValidationMetadata{
		Subject:     description,
		AmountCents: &cents,
		Checksum:    sum,
		ValidatedAt: now,
	}), nil
}

// nearest picks the event closest to t; ties go to the earlier event, then the smaller ID.
func nearest(events []model.HistoricalEvent, t time.Time) (model.HistoricalEvent, bool) {
	var best model.HistoricalEvent
	found := false
	for _, e := range events {
		if !found {
			best, found = e, true
			continue
		}
		d, bd := absDuration(e.OccurredAt.Sub(t)), absDuration(best.OccurredAt.Sub(t))
		switch {
		case d < bd:
			best = e
		case d == bd && (e.OccurredAt.Before(best.OccurredAt) ||
			(e.OccurredAt.Equal(best.OccurredAt) && e.ID < best.ID)):
			best = e
		}
	}
	return best, found
}

func storeError(op string, err error) error {
	if common.IsStoreUnavailable(err) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return common.StoreUnavailable(op, err)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// formatMoney renders 1000000 as "1,000,000" and 0.01 as "0.01".
func formatMoney(f float64) string {
	whole := int64(f)
	frac := f - float64(whole)

	digits := strconv.FormatInt(whole, 10)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	if frac > 0 {
		b.WriteString(strings.TrimPrefix(strconv.FormatFloat(frac, 'f', 2, 64), "0"))
	}
	return b.String()
}
