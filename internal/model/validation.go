package model

import "time"

// ValidationOutcome is the result of a validation call. Rejections are values, not errors.
type ValidationOutcome struct {
	DuplicateOf *EventRef           `json:"duplicate_of,omitempty" yaml:"duplicate_of,omitempty"`
	Metadata    *ValidationMetadata `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Errors      []string            `json:"errors" yaml:"errors"`
	Valid       bool                `json:"valid" yaml:"valid"`
}

// ValidationMetadata is attached to accepted outcomes only.
type ValidationMetadata struct {
	ValidatedAt time.Time `json:"validated_at" yaml:"validated_at"`
	AmountCents *int64    `json:"amount_cents,omitempty" yaml:"amount_cents,omitempty"`
	Subject     string    `json:"subject" yaml:"subject"`
	Checksum    string    `json:"checksum" yaml:"checksum"`
}

// Reject builds a failed outcome with a single reason.
func Reject(reason string) ValidationOutcome {
	return ValidationOutcome{
		Valid:  false,
		Errors: []string{reason},
	}
}

// RejectDuplicate builds a failed outcome that references the conflicting event.
func RejectDuplicate(reason string, existing *EventRef) ValidationOutcome {
	out := Reject(reason)
	out.DuplicateOf = existing
	return out
}

// Accept builds a successful outcome.
func Accept(meta ValidationMetadata) ValidationOutcome {
	return ValidationOutcome{
		Valid:    true,
		Errors:   []string{},
		Metadata: &meta,
	}
}
