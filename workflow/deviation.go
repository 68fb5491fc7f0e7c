package workflow

import (
	"github.com/shopspring/decimal"
)

var (
	// quantityEpsilon is the absolute ordered-vs-delivered difference below
	// which a quantity gap is treated as scanner noise, in the line's unit.
	quantityEpsilon = decimal.NewFromFloat(0.001)

	// nearZeroExpected guards the deviation division. An expected value this
	// small cannot serve as a denominator.
	nearZeroExpected = decimal.NewFromFloat(0.0001)

	oneHundred = decimal.NewFromInt(100)
)

// DeviationPercent returns the signed percentage deviation of received
// against expected, rounded to two decimal places. When expected is near
// zero the result is 100 for any positive received value and 0 otherwise.
func DeviationPercent(expected, received decimal.Decimal) decimal.Decimal {
	if expected.Abs().LessThan(nearZeroExpected) {
		if received.GreaterThan(decimal.Zero) {
			return oneHundred
		}
		return decimal.Zero
	}
	return received.Sub(expected).Div(expected).Mul(oneHundred).Round(2)
}

// signedPercent formats a deviation for alert messages: one decimal place,
// always carrying an explicit sign.
func signedPercent(deviation decimal.Decimal) string {
	rounded := deviation.Round(1)
	if rounded.Sign() >= 0 {
		return "+" + rounded.StringFixed(1)
	}
	return rounded.StringFixed(1)
}
