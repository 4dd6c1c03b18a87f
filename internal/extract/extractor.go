// Package extract maps free text to an intent and structured signals using
// an ordered list of deterministic rules.
package extract

import (
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/lifelog/internal/model"
)

// Confidence values reported by the extractor.
const (
	DeterministicConfidence = 1.0
	FallbackConfidence      = 0.5
)

// Extractor evaluates rules in priority order and stops at the first match.
type Extractor struct {
	rules []Rule
}

// New creates an extractor with the default rule set.
func New() *Extractor {
	return NewWithRules(DefaultRules()...)
}

// NewWithRules creates an extractor with the given rules; list order is priority order.
func NewWithRules(rules ...Rule) *Extractor {
	return &Extractor{rules: rules}
}

// Extract classifies text. now is only used for timestamp signals.
// When no rule fires the result is Unclassified and the caller decides whether to escalate.
func (e *Extractor) Extract(text string, now time.Time) model.ExtractionResult {
	if strings.TrimSpace(text) != "" {
		for _, rule := range e.rules {
			match, ok := rule.Match(text, now)
			if !ok {
				continue
			}
			slog.Debug("Extraction rule matched",
				"rule", rule.Name(),
				"intent", match.Intent())
			return model.ExtractionResult{
				Match:      match,
				Confidence: DeterministicConfidence,
				Method:     model.MethodDeterministic,
			}
		}
	}

	return model.ExtractionResult{
		Match:      model.Unclassified{},
		Confidence: FallbackConfidence,
		Method:     model.MethodLLMFallback,
	}
}
