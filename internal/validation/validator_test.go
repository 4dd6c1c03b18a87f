package validation

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/Veraticus/lifelog/internal/common"
	"github.com/Veraticus/lifelog/internal/model"
	"github.com/Veraticus/lifelog/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

// accept records an accepted outcome the way the pipeline would.
func accept(t *testing.T, store *testutil.MemoryEventStore, id, userID, text string, category model.Category, out model.ValidationOutcome, observedAt time.Time) {
	t.Helper()
	require.True(t, out.Valid, "expected valid outcome, got %v", out.Errors)
	require.NoError(t, store.SaveEvent(context.Background(), &model.HistoricalEvent{
		ID:          id,
		UserID:      userID,
		Category:    category,
		SubjectKey:  out.Metadata.Subject,
		RawText:     text,
		AmountCents: out.Metadata.AmountCents,
		OccurredAt:  observedAt,
		Checksum:    out.Metadata.Checksum,
	}))
}

func TestValidateMedication_DuplicateWindow(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemoryEventStore()
	v := New(store)

	first, err := v.ValidateMedication(ctx, "user-1", "I took Aspirin", baseNow, baseNow)
	require.NoError(t, err)
	accept(t, store, "evt-1", "user-1", "I took Aspirin", model.CategoryMedication, first, baseNow)

	second := baseNow.Add(3 * time.Hour)
	out, err := v.ValidateMedication(ctx, "user-1", "I took Aspirin", second, second)
	require.NoError(t, err)
	assert.False(t, out.Valid)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, `Duplicate: "Aspirin" already logged 3.0 hours ago`, out.Errors[0])
	require.NotNil(t, out.DuplicateOf)
	assert.Equal(t, "evt-1", out.DuplicateOf.ID)
	assert.Nil(t, out.Metadata)

	third := baseNow.Add(13 * time.Hour)
	out, err = v.ValidateMedication(ctx, "user-1", "I took Aspirin", third, third)
	require.NoError(t, err)
	assert.True(t, out.Valid)
	assert.Empty(t, out.Errors)
}

func TestValidateMedication_DuplicateIsCaseInsensitiveAndPerUser(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemoryEventStore(model.HistoricalEvent{
		ID:         "evt-1",
		UserID:     "user-1",
		Category:   model.CategoryMedication,
		SubjectKey: "aspirin",
		RawText:    "took aspirin",
		OccurredAt: baseNow.Add(-time.Hour),
	})
	v := New(store)

	out, err := v.ValidateMedication(ctx, "user-1", "I took ASPIRIN", baseNow, baseNow)
	require.NoError(t, err)
	assert.False(t, out.Valid)
	assert.Equal(t, `Duplicate: "ASPIRIN" already logged 1.0 hours ago`, out.Errors[0])

	out, err = v.ValidateMedication(ctx, "user-2", "I took aspirin", baseNow, baseNow)
	require.NoError(t, err)
	assert.True(t, out.Valid)

	out, err = v.ValidateMedication(ctx, "user-1", "I took ibuprofen", baseNow, baseNow)
	require.NoError(t, err)
	assert.True(t, out.Valid)
}

func TestValidateMedication_DatingPolicy(t *testing.T) {
	tests := []struct {
		name       string
		observedAt time.Time
		wantErr    string
		wantValid  bool
	}{
		{name: "now", observedAt: baseNow, wantValid: true},
		{name: "one hour ago", observedAt: baseNow.Add(-time.Hour), wantValid: true},
		{name: "exactly at the limit", observedAt: baseNow.Add(-2 * time.Hour), wantValid: true},
		{name: "three hours ago", observedAt: baseNow.Add(-3 * time.Hour), wantErr: "Cannot backdate more than 2 hours (attempted 3.0 hours ago)"},
		{name: "one second in the future", observedAt: baseNow.Add(time.Second), wantErr: ReasonFutureMedication},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New(testutil.NewMemoryEventStore())
			out, err := v.ValidateMedication(context.Background(), "user-1", "took melatonin", tt.observedAt, baseNow)
			require.NoError(t, err)
			assert.Equal(t, tt.wantValid, out.Valid)
			if tt.wantValid {
				require.NotNil(t, out.Metadata)
				assert.Equal(t, "melatonin", out.Metadata.Subject)
				assert.Equal(t, baseNow, out.Metadata.ValidatedAt)
				return
			}
			assert.Equal(t, []string{tt.wantErr}, out.Errors)
		})
	}
}

func TestValidateMedication_NoMedication(t *testing.T) {
	store := testutil.NewMemoryEventStore()
	v := New(store)

	out, err := v.ValidateMedication(context.Background(), "user-1", "feeling great", baseNow, baseNow)
	require.NoError(t, err)
	assert.False(t, out.Valid)
	assert.Equal(t, []string{ReasonNoMedication}, out.Errors)
	assert.Empty(t, store.Queries(), "no store query should run when extraction fails")
}

func TestValidateMedication_ChecksumIgnoresValidationTime(t *testing.T) {
	v := New(testutil.NewMemoryEventStore())
	observed := baseNow.Add(-30 * time.Minute)

	a, err := v.ValidateMedication(context.Background(), "user-1", "took aspirin", observed, baseNow)
	require.NoError(t, err)
	b, err := v.ValidateMedication(context.Background(), "user-1", "I took aspirin today", observed, baseNow.Add(45*time.Minute))
	require.NoError(t, err)

	require.True(t, a.Valid)
	require.True(t, b.Valid)
	assert.NotEqual(t, a.Metadata.ValidatedAt, b.Metadata.ValidatedAt)
	assert.Equal(t, a.Metadata.Checksum, b.Metadata.Checksum)
	assert.Len(t, a.Metadata.Checksum, 64)

	c, err := v.ValidateMedication(context.Background(), "user-2", "took aspirin", observed, baseNow)
	require.NoError(t, err)
	assert.NotEqual(t, a.Metadata.Checksum, c.Metadata.Checksum)
}

func TestValidateMedication_StoreUnavailable(t *testing.T) {
	store := testutil.NewMemoryEventStore()
	store.Err = errors.New("database is locked")
	v := New(store)

	_, err := v.ValidateMedication(context.Background(), "user-1", "took aspirin", baseNow, baseNow)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)
	assert.Contains(t, err.Error(), "database is locked")
}

func TestValidateMedication_QueryWindow(t *testing.T) {
	store := testutil.NewMemoryEventStore()
	v := New(store)

	_, err := v.ValidateMedication(context.Background(), "user-1", "took aspirin", baseNow, baseNow)
	require.NoError(t, err)

	queries := store.Queries()
	require.Len(t, queries, 1)
	assert.Equal(t, "user-1", queries[0].UserID)
	assert.Equal(t, model.CategoryMedication, queries[0].Category)
	assert.Equal(t, "aspirin", queries[0].SubjectContains)
	assert.Equal(t, baseNow.Add(-12*time.Hour), queries[0].From)
	assert.Equal(t, baseNow.Add(12*time.Hour), queries[0].To)
}

func TestValidateTransaction_NumericPolicy(t *testing.T) {
	tests := []struct {
		name      string
		wantErr   string
		amount    float64
		wantCents int64
		wantValid bool
	}{
		{name: "whole dollars", amount: 50, wantValid: true, wantCents: 5000},
		{name: "two decimals", amount: 50.00, wantValid: true, wantCents: 5000},
		{name: "cents", amount: 12.34, wantValid: true, wantCents: 1234},
		{name: "minimum", amount: 0.01, wantValid: true, wantCents: 1},
		{name: "maximum", amount: 1_000_000, wantValid: true, wantCents: 100_000_000},
		{name: "three decimals", amount: 50.005, wantErr: ReasonAmountPrecision},
		{name: "below minimum", amount: 0.001, wantErr: "Amount must be between $0.01 and $1,000,000"},
		{name: "zero", amount: 0, wantErr: "Amount must be between $0.01 and $1,000,000"},
		{name: "negative", amount: -5, wantErr: "Amount must be between $0.01 and $1,000,000"},
		{name: "above maximum", amount: 1_000_000.01, wantErr: "Amount must be between $0.01 and $1,000,000"},
		{name: "not a number", amount: math.NaN(), wantErr: ReasonInvalidAmount},
		{name: "infinite", amount: math.Inf(1), wantErr: ReasonInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New(testutil.NewMemoryEventStore())
			out, err := v.ValidateTransaction(context.Background(), "user-1", "spent on groceries", tt.amount, baseNow, baseNow)
			require.NoError(t, err)
			assert.Equal(t, tt.wantValid, out.Valid)
			if !tt.wantValid {
				assert.Equal(t, []string{tt.wantErr}, out.Errors)
				return
			}
			require.NotNil(t, out.Metadata)
			require.NotNil(t, out.Metadata.AmountCents)
			assert.Equal(t, tt.wantCents, *out.Metadata.AmountCents)
		})
	}
}

func TestValidateTransaction_SameAmountSameChecksum(t *testing.T) {
	v := New(testutil.NewMemoryEventStore())

	a, err := v.ValidateTransaction(context.Background(), "user-1", "spent $50 on groceries", 50, baseNow, baseNow)
	require.NoError(t, err)
	b, err := v.ValidateTransaction(context.Background(), "user-1", "spent $50.00 on groceries", 50.00, baseNow, baseNow)
	require.NoError(t, err)

	assert.Equal(t, "groceries", a.Metadata.Subject)
	assert.Equal(t, a.Metadata.Checksum, b.Metadata.Checksum)
}

func TestValidateTransaction_Duplicate(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemoryEventStore()
	v := New(store)

	first, err := v.ValidateTransaction(ctx, "user-1", "spent $50 on groceries", 50, baseNow, baseNow)
	require.NoError(t, err)
	accept(t, store, "txn-1", "user-1", "spent $50 on groceries", model.CategoryFinance, first, baseNow)

	inWindow := baseNow.Add(4 * time.Minute)
	out, err := v.ValidateTransaction(ctx, "user-1", "spent $50 on snacks", 50, inWindow, inWindow)
	require.NoError(t, err)
	assert.False(t, out.Valid)
	assert.Equal(t, []string{"Duplicate transaction detected within 5 minutes"}, out.Errors)
	require.NotNil(t, out.DuplicateOf)
	assert.Equal(t, "txn-1", out.DuplicateOf.ID)

	differentAmount, err := v.ValidateTransaction(ctx, "user-1", "spent $51 on snacks", 51, inWindow, inWindow)
	require.NoError(t, err)
	assert.True(t, differentAmount.Valid)

	afterWindow := baseNow.Add(6 * time.Minute)
	out, err = v.ValidateTransaction(ctx, "user-1", "spent $50 on groceries", 50, afterWindow, afterWindow)
	require.NoError(t, err)
	assert.True(t, out.Valid)
}

func TestValidateTransaction_Backdate(t *testing.T) {
	v := New(testutil.NewMemoryEventStore())

	ok, err := v.ValidateTransaction(context.Background(), "user-1", "paid $20 for lunch", 20, baseNow.Add(-6*24*time.Hour), baseNow)
	require.NoError(t, err)
	assert.True(t, ok.Valid)

	stale, err := v.ValidateTransaction(context.Background(), "user-1", "paid $20 for lunch", 20, baseNow.Add(-8*24*time.Hour-12*time.Hour), baseNow)
	require.NoError(t, err)
	assert.False(t, stale.Valid)
	assert.Equal(t, []string{"Cannot backdate more than 7 days (attempted 8.5 days ago)"}, stale.Errors)
}

func TestValidateTransaction_MissingDescription(t *testing.T) {
	v := New(testutil.NewMemoryEventStore())

	out, err := v.ValidateTransaction(context.Background(), "user-1", "   ", 20, baseNow, baseNow)
	require.NoError(t, err)
	assert.False(t, out.Valid)
	assert.Equal(t, []string{ReasonMissingDescription}, out.Errors)
}

func TestValidateTransaction_StoreUnavailable(t *testing.T) {
	store := testutil.NewMemoryEventStore()
	store.Err = common.StoreUnavailable("find events", errors.New("disk I/O error"))
	v := New(store)

	_, err := v.ValidateTransaction(context.Background(), "user-1", "paid $20 for lunch", 20, baseNow, baseNow)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)
	assert.Contains(t, err.Error(), "transaction duplicate check")
}

func TestNewWithPolicy(t *testing.T) {
	policy := DefaultPolicy()
	policy.MedicationMaxBackdate = 6 * time.Hour
	v := NewWithPolicy(testutil.NewMemoryEventStore(), policy)

	out, err := v.ValidateMedication(context.Background(), "user-1", "took aspirin", baseNow.Add(-5*time.Hour), baseNow)
	require.NoError(t, err)
	assert.True(t, out.Valid)
	assert.Equal(t, 6*time.Hour, v.Policy().MedicationMaxBackdate)
}

func TestPolicy_Validate(t *testing.T) {
	require.NoError(t, DefaultPolicy().Validate())

	bad := DefaultPolicy()
	bad.MaxAmount = 0
	assert.ErrorIs(t, bad.Validate(), common.ErrInvalidConfig)

	bad = DefaultPolicy()
	bad.FinanceDuplicateWindow = 0
	assert.ErrorIs(t, bad.Validate(), common.ErrInvalidConfig)

	bad = DefaultPolicy()
	bad.PrecisionTolerance = 0.01
	assert.ErrorIs(t, bad.Validate(), common.ErrInvalidConfig)
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "0.01", formatMoney(0.01))
	assert.Equal(t, "1,000,000", formatMoney(1_000_000))
	assert.Equal(t, "999", formatMoney(999))
	assert.Equal(t, "1,000", formatMoney(1000))
}
