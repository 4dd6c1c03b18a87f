package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/lifelog/internal/model"
)

// Rule is one deterministic matcher. Rules must be pure functions of their input.
type Rule interface {
	// Name identifies the rule in logs.
	Name() string
	// Match returns the structured match when the rule fires.
	Match(text string, now time.Time) (model.Match, bool)
}

// DefaultRules returns the built-in rules in priority order.
func DefaultRules() []Rule {
	return []Rule{
		MedicationRule{},
		FinanceRule{},
		ActivityRule{},
	}
}

var (
	// "took/had/consumed/taken [my] <phrase>"
	medicationVerbRe = regexp.MustCompile(`(?i)\b(?:took|had|consumed|taken)\s+(?:my\s+)?([a-z0-9][a-z0-9\s\-]*)`)
	// "<one or two words> pill/tablet/dose/medication/supplement"
	medicationFormRe = regexp.MustCompile(`(?i)\b([a-z0-9][a-z0-9\-]*(?:\s+[a-z0-9\-]+)?)\s+(?:pill|tablet|dose|medication|supplement)s?\b`)

	triggerVerbs = map[string]bool{"took": true, "had": true, "consumed": true, "taken": true}
	stopwords    = map[string]bool{"a": true, "an": true, "the": true, "some": true, "my": true, "it": true, "this": true, "that": true}
	formWords    = map[string]bool{
		"pill": true, "pills": true, "tablet": true, "tablets": true, "dose": true, "doses": true,
		"medication": true, "medications": true, "supplement": true, "supplements": true,
	}
	// Words that end a medication phrase: "took aspirin this morning", "had ibuprofen with food".
	phraseBreaks = map[string]bool{
		"this": true, "that": true, "at": true, "with": true, "today": true, "yesterday": true, "tonight": true,
		"in": true, "on": true, "for": true, "before": true, "after": true, "and": true, "around": true,
		"about": true, "again": true, "earlier": true, "last": true, "now": true, "just": true, "every": true,
	}
)

const maxMedicationWords = 4

// MedicationRule recognizes statements about taking medication or supplements.
type MedicationRule struct{}

// Name implements Rule.
func (MedicationRule) Name() string { return "medication" }

// Match implements Rule.
func (MedicationRule) Match(text string, now time.Time) (model.Match, bool) {
	medication, ok := ParseMedication(text)
	if !ok {
		return nil, false
	}
	return model.MedicationMatch{
		Medication: medication,
		Action:     "consumed",
		Timestamp:  now,
	}, true
}

// ParseMedication derives the medication name from free text.
// The validator uses it to re-derive the subject from the submitted text.
func ParseMedication(text string) (string, bool) {
	if m := medicationVerbRe.FindStringSubmatch(text); m != nil {
		words := strings.Fields(m[1])
		words = dropLeadingQuantities(words)
		if len(words) > 0 && !stopwords[strings.ToLower(words[0])] {
			if phrase, ok := finishPhrase(words); ok {
				return phrase, true
			}
		}
	}

	if m := medicationFormRe.FindStringSubmatch(text); m != nil {
		words := strings.Fields(m[1])
		for len(words) > 0 {
			w := strings.ToLower(words[0])
			if !triggerVerbs[w] && !stopwords[w] {
				break
			}
			words = words[1:]
		}
		words = dropLeadingQuantities(words)
		if phrase, ok := finishPhrase(words); ok {
			return phrase, true
		}
	}

	return "", false
}

// finishPhrase cuts the phrase at the first break word, strips trailing dosage
// forms and applies the stopword and length checks.
func finishPhrase(words []string) (string, bool) {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if phraseBreaks[strings.ToLower(w)] {
			break
		}
		out = append(out, w)
		if len(out) == maxMedicationWords {
			break
		}
	}
	for len(out) > 0 && formWords[strings.ToLower(out[len(out)-1])] {
		out = out[:len(out)-1]
	}

	phrase := strings.Trim(strings.Join(out, " "), " -")
	if len(phrase) < 2 || stopwords[strings.ToLower(phrase)] {
		return "", false
	}
	return phrase, true
}

func dropLeadingQuantities(words []string) []string {
	for len(words) > 1 {
		if _, err := strconv.Atoi(words[0]); err != nil {
			break
		}
		words = words[1:]
	}
	return words
}

var (
	// "spent/paid/bought [$]12.34 [dollars] [on|for] <description>"
	financeVerbRe = regexp.MustCompile(`(?i)\b(?:spent|paid|bought)\s+\$?(\d+(?:\.\d+)?)(?:\s*(?:dollars?|bucks?|usd)\b)?\s+(?:(?:on|for)\s+)?(.+)`)
	// "$12.34 on <description>" or "12 bucks for <description>"
	financeAmountRe = regexp.MustCompile(`(?i)(?:\$(\d+(?:\.\d+)?)|\b(\d+(?:\.\d+)?)\s*(?:dollars?|bucks?|usd)\b)\s+(?:on|for|to|towards?)\s+(.+)`)
)

// FinanceRule recognizes statements about spending money.
type FinanceRule struct{}

// Name implements Rule.
func (FinanceRule) Name() string { return "finance" }

// Match implements Rule.
func (FinanceRule) Match(text string, _ time.Time) (model.Match, bool) {
	amount, description, ok := ParseExpense(text)
	if !ok {
		return nil, false
	}
	return model.ExpenseMatch{
		Amount:      RoundCents(amount),
		RawAmount:   amount,
		Description: description,
	}, true
}

// ParseExpense extracts a positive amount, as written, and a non-empty description.
func ParseExpense(text string) (float64, string, bool) {
	var rawAmount, description string

	if m := financeVerbRe.FindStringSubmatch(text); m != nil {
		rawAmount, description = m[1], m[2]
	} else if m := financeAmountRe.FindStringSubmatch(text); m != nil {
		rawAmount = m[1]
		if rawAmount == "" {
			rawAmount = m[2]
		}
		description = m[3]
	} else {
		return 0, "", false
	}

	amount, err := strconv.ParseFloat(rawAmount, 64)
	if err != nil || amount <= 0 || math.IsInf(amount, 0) || math.IsNaN(amount) {
		return 0, "", false
	}

	description = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(description), ".!?,;"))
	if description == "" {
		return 0, "", false
	}

	return amount, description, true
}

// RoundCents rounds to two decimal places.
func RoundCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}

// ActivityKeywords are checked in this order; the first present keyword names the activity.
var ActivityKeywords = []string{"ran", "jogged", "walked", "cycled", "swam", "lifted", "exercised", "workout", "gym"}

var (
	activityRes = compileKeywords(ActivityKeywords)
	durationRe  = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(minutes?|mins?|m|hours?|hrs?|h)\b`)
)

func compileKeywords(keywords []string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(keywords))
	for i, kw := range keywords {
		res[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(kw) + `\b`)
	}
	return res
}

// ActivityRule recognizes exercise statements and an optional duration.
type ActivityRule struct{}

// Name implements Rule.
func (ActivityRule) Name() string { return "activity" }

// Match implements Rule.
func (ActivityRule) Match(text string, _ time.Time) (model.Match, bool) {
	activity := ""
	for i, re := range activityRes {
		if re.MatchString(text) {
			activity = ActivityKeywords[i]
			break
		}
	}
	if activity == "" {
		return nil, false
	}

	match := model.ActivityMatch{Activity: activity}
	if minutes, ok := parseDurationMinutes(text); ok {
		match.DurationMinutes = &minutes
	}
	return match, true
}

func parseDurationMinutes(text string) (int, bool) {
	m := durationRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil || value <= 0 {
		return 0, false
	}
	if strings.HasPrefix(strings.ToLower(m[2]), "h") {
		value *= 60
	}
	return int(math.Round(value)), true
}
