// Package derived recomputes dependent fields from their inputs.
//
// All arithmetic is decimal, never binary floating point, so repeated edits
// cannot accumulate rounding drift. Recomputation runs synchronously before
// any persistence call: the value written to the server is already consistent.
package derived

import (
	"github.com/shopspring/decimal"

	derrors "prequal/pkg/domain-errors"
)

var hundred = decimal.NewFromInt(100)

// ValidatePercent rejects completion percentages outside [0, 100].
// Boundary values are accepted; nothing is silently clamped.
func ValidatePercent(percent decimal.Decimal) error {
	if percent.IsNegative() || percent.GreaterThan(hundred) {
		return derrors.NewValidation("percent_completion must be between 0 and 100", "percent_completion")
	}
	return nil
}

// CompletedValue computes round(value * percent / 100, 2) with half-up
// rounding. ok is false when either input is absent, in which case the
// dependent field must be left blank rather than computed.
func CompletedValue(contractValue, percent *decimal.Decimal) (decimal.Decimal, bool) {
	if contractValue == nil || percent == nil {
		return decimal.Decimal{}, false
	}
	return contractValue.Mul(*percent).Div(hundred).Round(2), true
}
