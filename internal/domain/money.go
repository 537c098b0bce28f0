package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var paisePerRupee = decimal.NewFromInt(100)

// RupeesToPaise converts a rupee amount to the smallest currency unit.
// Amounts finer than one paisa are rejected rather than silently rounded.
func RupeesToPaise(rupees decimal.Decimal) (int64, error) {
	p := rupees.Mul(paisePerRupee)
	if !p.IsInteger() {
		return 0, fmt.Errorf("%w: amount has sub-paisa precision", ErrInvalidInput)
	}
	return p.IntPart(), nil
}

// PaiseToRupees renders a paise amount in rupees for display.
func PaiseToRupees(paise int64) decimal.Decimal {
	return decimal.NewFromInt(paise).Div(paisePerRupee)
}
