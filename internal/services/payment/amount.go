package payment

import (
	"github.com/shopspring/decimal"
)

var maxMajor = decimal.New(1, 13) // 1e13 major units, far below int64 minor units

// ToMinorUnits converts a major-unit amount such as 999.00 into paise/cents.
// More than two fractional digits or a non-positive amount is a validation error.
func ToMinorUnits(d decimal.Decimal) (int64, error) {
	if !d.IsPositive() {
		return 0, reject(ErrValidation, "amount must be positive, got %s", d.String())
	}
	if !d.Equal(d.Round(2)) {
		return 0, reject(ErrValidation, "amount %s has more than two decimal places", d.String())
	}
	if d.GreaterThanOrEqual(maxMajor) {
		return 0, reject(ErrValidation, "amount %s is too large", d.String())
	}
	return d.Shift(2).IntPart(), nil
}

// FromMinorUnits is the inverse of ToMinorUnits.
func FromMinorUnits(v int64) decimal.Decimal {
	return decimal.New(v, -2)
}
