package extract

import (
	"testing"
	"time"

	"github.com/Veraticus/lifelog/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)

func intPtr(i int) *int { return &i }

func TestExtractor_Extract(t *testing.T) {
	tests := []struct {
		want       model.Match
		name       string
		text       string
		wantIntent model.Intent
	}{
		{
			name:       "simple medication",
			text:       "I took Aspirin",
			wantIntent: model.IntentTrackMedication,
			want:       model.MedicationMatch{Medication: "Aspirin", Action: "consumed", Timestamp: fixedNow},
		},
		{
			name:       "medication with my and trailing time words",
			text:       "I took my vitamin C this morning",
			wantIntent: model.IntentTrackMedication,
			want:       model.MedicationMatch{Medication: "vitamin C", Action: "consumed", Timestamp: fixedNow},
		},
		{
			name:       "medication with quantity and dosage form",
			text:       "took 2 aspirin tablets.",
			wantIntent: model.IntentTrackMedication,
			want:       model.MedicationMatch{Medication: "aspirin", Action: "consumed", Timestamp: fixedNow},
		},
		{
			name:       "dosage form pattern",
			text:       "fish oil supplement every morning",
			wantIntent: model.IntentTrackMedication,
			want:       model.MedicationMatch{Medication: "fish oil", Action: "consumed", Timestamp: fixedNow},
		},
		{
			name:       "dosage form pattern strips possessive",
			text:       "remembered my vitamin D supplement",
			wantIntent: model.IntentTrackMedication,
			want:       model.MedicationMatch{Medication: "vitamin D", Action: "consumed", Timestamp: fixedNow},
		},
		{
			name:       "spent verb with dollar sign",
			text:       "spent $50 on groceries",
			wantIntent: model.IntentTrackExpense,
			want:       model.ExpenseMatch{Amount: 50, RawAmount: 50, Description: "groceries"},
		},
		{
			name:       "paid verb without preposition",
			text:       "Paid 12.50 parking downtown",
			wantIntent: model.IntentTrackExpense,
			want:       model.ExpenseMatch{Amount: 12.5, RawAmount: 12.5, Description: "parking downtown"},
		},
		{
			name:       "currency amount then preposition",
			text:       "$7.25 for coffee!",
			wantIntent: model.IntentTrackExpense,
			want:       model.ExpenseMatch{Amount: 7.25, RawAmount: 7.25, Description: "coffee"},
		},
		{
			name:       "dollars word",
			text:       "20 dollars on a birthday gift",
			wantIntent: model.IntentTrackExpense,
			want:       model.ExpenseMatch{Amount: 20, RawAmount: 20, Description: "a birthday gift"},
		},
		{
			name:       "activity with minutes",
			text:       "I ran for 30 minutes",
			wantIntent: model.IntentBuildHabit,
			want:       model.ActivityMatch{Activity: "ran", DurationMinutes: intPtr(30)},
		},
		{
			name:       "activity with fractional hours",
			text:       "Gym session 1.5 hours",
			wantIntent: model.IntentBuildHabit,
			want:       model.ActivityMatch{Activity: "gym", DurationMinutes: intPtr(90)},
		},
		{
			name:       "activity with compact hours",
			text:       "walked 2h around the lake",
			wantIntent: model.IntentBuildHabit,
			want:       model.ActivityMatch{Activity: "walked", DurationMinutes: intPtr(120)},
		},
		{
			name:       "activity without duration ignores distance",
			text:       "I ran 5 miles",
			wantIntent: model.IntentBuildHabit,
			want:       model.ActivityMatch{Activity: "ran"},
		},
		{
			name:       "article after verb is not a medication",
			text:       "I had a great workout at the gym",
			wantIntent: model.IntentBuildHabit,
			want:       model.ActivityMatch{Activity: "workout"},
		},
		{
			name:       "keyword must be a whole word",
			text:       "The restaurant was great",
			wantIntent: model.IntentGeneralLog,
			want:       model.Unclassified{},
		},
		{
			name:       "took a walk is not a medication",
			text:       "I took a walk",
			wantIntent: model.IntentGeneralLog,
			want:       model.Unclassified{},
		},
		{
			name:       "empty text",
			text:       "   ",
			wantIntent: model.IntentGeneralLog,
			want:       model.Unclassified{},
		},
	}

	extractor := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractor.Extract(tt.text, fixedNow)
			assert.Equal(t, tt.wantIntent, got.Intent())
			assert.Equal(t, tt.want, got.Match)
		})
	}
}

func TestExtractor_ConfidenceAndMethod(t *testing.T) {
	extractor := New()

	det := extractor.Extract("I took ibuprofen", fixedNow)
	assert.Equal(t, model.MethodDeterministic, det.Method)
	assert.InDelta(t, 1.0, det.Confidence, 0)
	assert.False(t, det.Unclassified())

	miss := extractor.Extract("feeling good today", fixedNow)
	assert.Equal(t, model.MethodLLMFallback, miss.Method)
	assert.InDelta(t, 0.5, miss.Confidence, 0)
	assert.True(t, miss.Unclassified())
	assert.Empty(t, miss.Signals())
	assert.Equal(t, "", miss.Subject())
}

func TestExtractor_Deterministic(t *testing.T) {
	extractor := New()
	inputs := []string{
		"I took my vitamin C this morning",
		"spent $50 on groceries",
		"ran 45 minutes",
		"nothing to see here",
	}

	for _, input := range inputs {
		first := extractor.Extract(input, fixedNow)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, extractor.Extract(input, fixedNow), input)
		}
	}
}

func TestExtractor_RulePriority(t *testing.T) {
	// The medication rule is first, so a statement that also mentions
	// an amount is still classified as medication.
	got := New().Extract("took ibuprofen, 12 dollars for the bottle", fixedNow)
	assert.Equal(t, model.IntentTrackMedication, got.Intent())

	// Custom ordering changes the winner.
	reordered := NewWithRules(FinanceRule{}, MedicationRule{})
	got = reordered.Extract("took ibuprofen, 12 dollars for the bottle", fixedNow)
	assert.Equal(t, model.IntentTrackExpense, got.Intent())
}

func TestExtractionResult_Signals(t *testing.T) {
	extractor := New()

	med := extractor.Extract("I took Aspirin", fixedNow)
	assert.Equal(t, map[string]any{
		"medication": "Aspirin",
		"action":     "consumed",
		"timestamp":  "2024-06-15T09:00:00Z",
	}, med.Signals())
	assert.Equal(t, "Aspirin", med.Subject())

	expense := extractor.Extract("spent $50 on groceries", fixedNow)
	assert.Equal(t, map[string]any{"amount": 50.0, "description": "groceries"}, expense.Signals())

	activity := extractor.Extract("swam 40 mins", fixedNow)
	assert.Equal(t, map[string]any{"activity": "swam", "duration": 40}, activity.Signals())
}

func TestParseMedication(t *testing.T) {
	tests := []struct {
		text   string
		want   string
		wantOK bool
	}{
		{text: "I took Aspirin", want: "Aspirin", wantOK: true},
		{text: "consumed ibuprofen with food", want: "ibuprofen", wantOK: true},
		{text: "Taken melatonin at 10pm", want: "melatonin", wantOK: true},
		{text: "took my pill", wantOK: false},
		{text: "I took it", wantOK: false},
		{text: "had x", wantOK: false},
		{text: "went shopping", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := ParseMedication(tt.text)
			require.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseExpense(t *testing.T) {
	amount50, desc, ok := ParseExpense("spent $50 on lunch")
	require.True(t, ok)
	amount5000, _, ok := ParseExpense("spent $50.00 on lunch")
	require.True(t, ok)

	assert.Equal(t, "lunch", desc)
	assert.Equal(t, amount50, amount5000)

	raw, _, ok := ParseExpense("spent $50.005 on groceries")
	require.True(t, ok)
	assert.InDelta(t, 50.005, raw, 1e-9)
	assert.InDelta(t, 50.01, RoundCents(raw), 1e-9)

	_, _, ok = ParseExpense("spent $0 on nothing")
	assert.False(t, ok)

	_, _, ok = ParseExpense("spent $10 on   ...")
	assert.False(t, ok)
}
