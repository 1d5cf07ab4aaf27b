package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// currencyExponent is the number of decimal places in the operating
// currency. The gateway transmits amounts as integers in the minor unit
// (e.g. kobo, cents), so 12.50 goes over the wire as 1250.
const currencyExponent = 2

// ToMinorUnits converts a major-unit amount to the gateway's integer minor
// unit. Amounts with more than two decimal places are rejected rather than
// rounded, so no value is ever silently lost in transit.
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	shifted := amount.Shift(currencyExponent)
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("%w: amount %s has sub-minor-unit precision", ErrInvalidInput, amount)
	}
	if !shifted.IsPositive() {
		return 0, fmt.Errorf("%w: amount %s must be positive", ErrInvalidInput, amount)
	}
	return shifted.IntPart(), nil
}

// FromMinorUnits converts a gateway minor-unit amount back to major units.
// Exact inverse of ToMinorUnits.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -currencyExponent)
}
