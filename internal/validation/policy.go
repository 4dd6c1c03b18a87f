package validation

import (
	"fmt"
	"time"

	"github.com/Veraticus/lifelog/internal/common"
)

// Policy holds the acceptance limits for critical categories.
type Policy struct {
	MedicationDuplicateWindow time.Duration
	MedicationMaxBackdate     time.Duration
	FinanceDuplicateWindow    time.Duration
	FinanceMaxBackdate        time.Duration
	MinAmount                 float64
	MaxAmount                 float64
	// PrecisionTolerance is the largest drift allowed when rounding an amount to cents.
	PrecisionTolerance float64
}

// DefaultPolicy returns the standard acceptance limits.
func DefaultPolicy() Policy {
	return Policy{
		MedicationDuplicateWindow: 12 * time.Hour,
		MedicationMaxBackdate:     2 * time.Hour,
		FinanceDuplicateWindow:    5 * time.Minute,
		FinanceMaxBackdate:        7 * 24 * time.Hour,
		MinAmount:                 0.01,
		MaxAmount:                 1_000_000,
		PrecisionTolerance:        0.001,
	}
}

// Validate checks the policy is internally consistent.
func (p Policy) Validate() error {
	if p.MedicationDuplicateWindow <= 0 || p.FinanceDuplicateWindow <= 0 {
		return fmt.Errorf("%w: duplicate windows must be positive", common.ErrInvalidConfig)
	}
	if p.MedicationMaxBackdate < 0 || p.FinanceMaxBackdate < 0 {
		return fmt.Errorf("%w: backdate limits cannot be negative", common.ErrInvalidConfig)
	}
	if p.MinAmount <= 0 || p.MaxAmount < p.MinAmount {
		return fmt.Errorf("%w: amount range [%v, %v] is invalid", common.ErrInvalidConfig, p.MinAmount, p.MaxAmount)
	}
	if p.PrecisionTolerance <= 0 || p.PrecisionTolerance >= 0.005 {
		return fmt.Errorf("%w: precision tolerance must be in (0, 0.005)", common.ErrInvalidConfig)
	}
	return nil
}
