package pipeline

import (
	"context"

	"github.com/Veraticus/lifelog/internal/model"
)

// Escalator gets a second opinion on statements no deterministic rule matched,
// typically from a language model. It may return the result unchanged.
type Escalator interface {
	Escalate(ctx context.Context, userID string, statement model.RawStatement, result model.ExtractionResult) (model.ExtractionResult, error)
}

// NoopEscalator keeps unclassified statements as general log entries.
type NoopEscalator struct{}

// Escalate implements Escalator.
func (NoopEscalator) Escalate(_ context.Context, _ string, _ model.RawStatement, result model.ExtractionResult) (model.ExtractionResult, error) {
	return result, nil
}

// EscalatorFunc adapts a function to the Escalator interface.
type EscalatorFunc func(ctx context.Context, userID string, statement model.RawStatement, result model.ExtractionResult) (model.ExtractionResult, error)

// Escalate implements Escalator.
func (f EscalatorFunc) Escalate(ctx context.Context, userID string, statement model.RawStatement, result model.ExtractionResult) (model.ExtractionResult, error) {
	return f(ctx, userID, statement, result)
}
