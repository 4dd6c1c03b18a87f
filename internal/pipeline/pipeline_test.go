package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/lifelog/internal/common"
	"github.com/Veraticus/lifelog/internal/model"
	"github.com/Veraticus/lifelog/internal/service"
	"github.com/Veraticus/lifelog/internal/testutil"
)

var testNow = time.Date(2024, 6, 15, 20, 0, 0, 0, time.UTC)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Retry = service.RetryOptions{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
	return cfg
}

func newTestPipeline(t *testing.T) (*Pipeline, *testutil.TestDB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return NewWithConfig(db.Storage, nil, testConfig()), db
}

func submission(text string, observedAt time.Time) Submission {
	return Submission{
		UserID:    "user-1",
		Statement: model.RawStatement{Text: text, ObservedAt: observedAt},
	}
}

func TestSubmit_MedicationFlow(t *testing.T) {
	p, db := newTestPipeline(t)
	ctx := context.Background()

	first, err := p.Submit(ctx, submission("Took Aspirin", testNow.Add(-time.Hour)), testNow)
	require.NoError(t, err)
	require.True(t, first.Accepted())
	require.NotNil(t, first.Outcome)
	assert.True(t, first.Outcome.Valid)
	assert.Equal(t, model.CategoryMedication, first.Event.Category)
	assert.Equal(t, "Aspirin", first.Event.SubjectKey)
	assert.Len(t, first.Event.Checksum, 64)
	assert.Equal(t, testNow, first.Event.SubmittedAt)

	second, err := p.Submit(ctx, submission("took aspirin again", testNow), testNow)
	require.NoError(t, err)
	assert.False(t, second.Accepted())
	require.NotNil(t, second.Outcome)
	assert.Equal(t, []string{`Duplicate: "aspirin" already logged 1.0 hours ago`}, second.Outcome.Errors)
	require.NotNil(t, second.Outcome.DuplicateOf)
	assert.Equal(t, first.Event.ID, second.Outcome.DuplicateOf.ID)

	count, err := db.Storage.CountEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSubmit_Rejections(t *testing.T) {
	amount := func(f float64) *float64 { return &f }

	tests := []struct {
		name       string
		sub        Submission
		wantReason string
	}{
		{
			name:       "backdated medication",
			sub:        submission("took ibuprofen", testNow.Add(-3*time.Hour)),
			wantReason: "Cannot backdate more than 2 hours (attempted 3.0 hours ago)",
		},
		{
			name:       "future medication",
			sub:        submission("took ibuprofen", testNow.Add(time.Hour)),
			wantReason: "Cannot log future medications",
		},
		{
			name: "too many decimals",
			sub: Submission{
				UserID:    "user-1",
				Statement: model.RawStatement{Text: "coffee", ObservedAt: testNow},
				Amount:    amount(4.555),
			},
			wantReason: "Amount must have at most 2 decimal places",
		},
		{
			name:       "too many decimals in text",
			sub:        submission("spent $50.005 on groceries", testNow),
			wantReason: "Amount must have at most 2 decimal places",
		},
		{
			name: "amount out of range",
			sub: Submission{
				UserID:    "user-1",
				Statement: model.RawStatement{Text: "coffee", ObservedAt: testNow},
				Amount:    amount(0),
			},
			wantReason: "Amount must be between $0.01 and $1,000,000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, db := newTestPipeline(t)

			result, err := p.Submit(context.Background(), tt.sub, testNow)
			require.NoError(t, err)
			assert.False(t, result.Accepted())
			require.NotNil(t, result.Outcome)
			assert.Equal(t, []string{tt.wantReason}, result.Outcome.Errors)

			count, err := db.Storage.CountEvents(context.Background())
			require.NoError(t, err)
			assert.Zero(t, count)
		})
	}
}

func TestSubmit_Expense(t *testing.T) {
	p, _ := newTestPipeline(t)
	ctx := context.Background()

	result, err := p.Submit(ctx, submission("spent $12.50 on lunch", testNow), testNow)
	require.NoError(t, err)
	require.True(t, result.Accepted())
	assert.Equal(t, model.CategoryFinance, result.Event.Category)
	assert.Equal(t, "lunch", result.Event.SubjectKey)
	require.NotNil(t, result.Event.AmountCents)
	assert.Equal(t, int64(1250), *result.Event.AmountCents)

	dup, err := p.Submit(ctx, submission("paid $12.50 for a sandwich", testNow.Add(2*time.Minute)), testNow.Add(2*time.Minute))
	require.NoError(t, err)
	assert.False(t, dup.Accepted())
	assert.Equal(t, []string{"Duplicate transaction detected within 5 minutes"}, dup.Outcome.Errors)
}

func TestSubmit_ExplicitAmount(t *testing.T) {
	p, _ := newTestPipeline(t)
	amount := 20.0

	result, err := p.Submit(context.Background(), Submission{
		UserID:    "user-1",
		Statement: model.RawStatement{Text: "groceries", ObservedAt: testNow},
		Amount:    &amount,
	}, testNow)
	require.NoError(t, err)
	require.True(t, result.Accepted())
	assert.Equal(t, model.IntentTrackExpense, result.Event.Intent)
	assert.Equal(t, "groceries", result.Event.SubjectKey)
	assert.Equal(t, int64(2000), *result.Event.AmountCents)
}

func TestSubmit_NonCriticalSkipsValidation(t *testing.T) {
	p, db := newTestPipeline(t)
	ctx := context.Background()

	for range 2 {
		result, err := p.Submit(ctx, submission("ran 30 minutes", testNow), testNow)
		require.NoError(t, err)
		assert.True(t, result.Accepted())
		assert.Nil(t, result.Outcome)
		assert.Empty(t, result.Event.Checksum)
		assert.Equal(t, model.CategoryActivity, result.Event.Category)
	}

	count, err := db.Storage.CountEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSubmit_Escalation(t *testing.T) {
	tests := []struct {
		name       string
		escalator  Escalator
		wantIntent model.Intent
		wantMethod model.Method
	}{
		{
			name:       "no escalator keeps general log",
			escalator:  nil,
			wantIntent: model.IntentGeneralLog,
			wantMethod: model.MethodLLMFallback,
		},
		{
			name: "escalator reclassifies",
			escalator: EscalatorFunc(func(_ context.Context, _ string, _ model.RawStatement, _ model.ExtractionResult) (model.ExtractionResult, error) {
				return model.ExtractionResult{
					Match:      model.ActivityMatch{Activity: "yoga"},
					Method:     model.MethodLLMFallback,
					Confidence: 0.8,
				}, nil
			}),
			wantIntent: model.IntentBuildHabit,
			wantMethod: model.MethodLLMFallback,
		},
		{
			name: "escalator failure keeps general log",
			escalator: EscalatorFunc(func(_ context.Context, _ string, _ model.RawStatement, r model.ExtractionResult) (model.ExtractionResult, error) {
				return r, errors.New("model offline")
			}),
			wantIntent: model.IntentGeneralLog,
			wantMethod: model.MethodLLMFallback,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.SetupTestDB(t)
			p := NewWithConfig(db.Storage, tt.escalator, testConfig())

			result, err := p.Submit(context.Background(), submission("felt great after stretching", testNow), testNow)
			require.NoError(t, err)
			require.True(t, result.Accepted())
			assert.Equal(t, tt.wantIntent, result.Event.Intent)
			assert.Equal(t, tt.wantMethod, result.Event.Method)
		})
	}
}

func TestSubmit_InvalidInput(t *testing.T) {
	p, _ := newTestPipeline(t)

	_, err := p.Submit(context.Background(), submission("   ", testNow), testNow)
	require.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = p.Submit(context.Background(), Submission{Statement: model.RawStatement{Text: "took aspirin"}}, testNow)
	require.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestSubmit_DefaultsObservedAt(t *testing.T) {
	p, _ := newTestPipeline(t)

	result, err := p.Submit(context.Background(), Submission{
		UserID:    "user-1",
		Statement: model.RawStatement{Text: "took melatonin"},
	}, testNow)
	require.NoError(t, err)
	require.True(t, result.Accepted())
	assert.Equal(t, testNow, result.Event.OccurredAt)
}

// blindStore hides existing events from reads so the unique checksum
// constraint is the only thing left to catch a repeat.
type blindStore struct {
	Store
}

func (blindStore) FindEvents(context.Context, model.EventQuery) ([]model.HistoricalEvent, error) {
	return nil, nil
}

func TestSubmit_ChecksumConstraintRejectsRace(t *testing.T) {
	db := testutil.SetupTestDB(t)
	p := NewWithConfig(blindStore{Store: db.Storage}, nil, testConfig())
	ctx := context.Background()

	first, err := p.Submit(ctx, submission("took aspirin", testNow), testNow)
	require.NoError(t, err)
	require.True(t, first.Accepted())

	second, err := p.Submit(ctx, submission("took aspirin", testNow), testNow)
	require.NoError(t, err)
	assert.False(t, second.Accepted())
	assert.Equal(t, []string{ReasonAlreadyRecorded}, second.Outcome.Errors)
}

func TestSubmit_ConcurrentDuplicates(t *testing.T) {
	p, db := newTestPipeline(t)
	ctx := context.Background()

	const workers = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		errs     []error
	)
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			observed := testNow.Add(-time.Duration(i) * time.Minute)
			result, err := p.Submit(ctx, submission("took aspirin", observed), testNow)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if result.Accepted() {
				accepted++
			}
		}(i)
	}
	wg.Wait()

	assert.Empty(t, errs)
	assert.Equal(t, 1, accepted)
	assert.Zero(t, p.locks.size())

	count, err := db.Storage.CountEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// flakyStore fails the first n reads with a retryable error.
type flakyStore struct {
	Store
	mu    sync.Mutex
	fails int
	calls int
}

func (f *flakyStore) FindEvents(ctx context.Context, q model.EventQuery) ([]model.HistoricalEvent, error) {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.fails
	f.mu.Unlock()
	if fail {
		return nil, common.StoreUnavailable("find events", errors.New("database is locked"))
	}
	return f.Store.FindEvents(ctx, q)
}

func TestSubmit_RetriesStoreReads(t *testing.T) {
	tests := []struct {
		name     string
		fails    int
		wantErr  bool
		wantCall int
	}{
		{name: "recovers after one failure", fails: 1, wantCall: 2},
		{name: "gives up after max attempts", fails: 5, wantErr: true, wantCall: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.SetupTestDB(t)
			store := &flakyStore{Store: db.Storage, fails: tt.fails}
			p := NewWithConfig(store, nil, testConfig())

			result, err := p.Submit(context.Background(), submission("took aspirin", testNow), testNow)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, common.ErrMaxRetries)
				assert.ErrorIs(t, err, common.ErrStoreUnavailable)
			} else {
				require.NoError(t, err)
				assert.True(t, result.Accepted())
			}
			assert.Equal(t, tt.wantCall, store.calls)
		})
	}
}

// countingTxStore opens real transactions and can fail their commits.
type countingTxStore struct {
	Store
	db          service.Transactor
	begun       int
	failCommits bool
}

func (c *countingTxStore) BeginTx(ctx context.Context) (service.Transaction, error) {
	c.begun++
	tx, err := c.db.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	if c.failCommits {
		return failingCommitTx{Transaction: tx}, nil
	}
	return tx, nil
}

type failingCommitTx struct {
	service.Transaction
}

func (failingCommitTx) Commit() error {
	return errors.New("disk I/O error")
}

func TestSubmit_Transactional(t *testing.T) {
	t.Run("validates and inserts in one transaction", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		store := &countingTxStore{Store: db.Storage, db: db.Storage}
		p := NewWithConfig(store, nil, testConfig())
		ctx := context.Background()

		first, err := p.Submit(ctx, submission("took aspirin", testNow), testNow)
		require.NoError(t, err)
		require.True(t, first.Accepted())

		second, err := p.Submit(ctx, submission("took aspirin", testNow.Add(time.Minute)), testNow.Add(time.Minute))
		require.NoError(t, err)
		assert.False(t, second.Accepted())

		_, err = p.Submit(ctx, submission("ran 30 minutes", testNow), testNow)
		require.NoError(t, err)

		assert.Equal(t, 2, store.begun)
		count, err := db.Storage.CountEvents(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("failed commit leaves nothing behind", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		store := &countingTxStore{Store: db.Storage, db: db.Storage, failCommits: true}
		p := NewWithConfig(store, nil, testConfig())
		ctx := context.Background()

		_, err := p.Submit(ctx, submission("spent $12.50 on lunch", testNow), testNow)
		require.ErrorIs(t, err, common.ErrMaxRetries)
		assert.Equal(t, 3, store.begun)

		count, err := db.Storage.CountEvents(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("disabled by config", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		store := &countingTxStore{Store: db.Storage, db: db.Storage}
		cfg := testConfig()
		cfg.Transactional = false
		p := NewWithConfig(store, nil, cfg)

		result, err := p.Submit(context.Background(), submission("took aspirin", testNow), testNow)
		require.NoError(t, err)
		assert.True(t, result.Accepted())
		assert.Zero(t, store.begun)
	})
}

func TestLockKey(t *testing.T) {
	assert.Equal(t, "u|medication", lockKey("u", model.IntentTrackMedication))
	assert.Equal(t, "u|finance", lockKey("u", model.IntentTrackExpense))
}

func TestSubmit_MedicationSubjectsShareLock(t *testing.T) {
	p, db := newTestPipeline(t)
	ctx := context.Background()

	unlock := p.locks.Lock(lockKey("user-1", model.IntentTrackMedication))

	done := make(chan *Result, 1)
	go func() {
		result, err := p.Submit(ctx, submission("took vitamin C", testNow), testNow)
		assert.NoError(t, err)
		done <- result
	}()

	select {
	case <-done:
		t.Fatal("submission for another subject ran while the medication lock was held")
	case <-time.After(20 * time.Millisecond):
	}

	unlock()
	result := <-done
	require.NotNil(t, result)
	assert.True(t, result.Accepted())

	count, err := db.Storage.CountEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestKeyedMutex(t *testing.T) {
	locks := newKeyedMutex()

	unlockA := locks.Lock("a")
	unlockB := locks.Lock("b")
	assert.Equal(t, 2, locks.size())

	acquired := make(chan struct{})
	go func() {
		unlock := locks.Lock("a")
		close(acquired)
		unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held key")
	case <-time.After(20 * time.Millisecond):
	}

	unlockA()
	<-acquired
	unlockB()
	assert.Zero(t, locks.size())
}
