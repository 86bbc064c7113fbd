package feeplan

import (
	"errors"

	"github.com/shopspring/decimal"
)

var ErrPlanUnresolvable = errors.New("assignment has neither custom amount nor plan base amount")

var oneHundred = decimal.NewFromInt(100)

// EffectiveAmount computes the periodic amount a student owes under an
// assignment. The assignment's custom amount overrides the plan base;
// the discount is applied on top; the result is clamped at zero and
// rounded half-up to the currency's decimal places, once at the end so
// intermediate rounding error cannot compound.
func EffectiveAmount(a *Assignment, planBase *decimal.Decimal, places int32) (decimal.Decimal, error) {
	var base decimal.Decimal
	switch {
	case a.CustomAmount != nil:
		base = *a.CustomAmount
	case planBase != nil:
		base = *planBase
	default:
		return decimal.Zero, ErrPlanUnresolvable
	}

	var discount decimal.Decimal
	if a.DiscountValue.IsPositive() {
		switch a.DiscountType {
		case DiscountPercent:
			discount = base.Mul(a.DiscountValue).Div(oneHundred)
		case DiscountFixed:
			discount = a.DiscountValue
		}
	}

	result := base.Sub(discount)
	if result.IsNegative() {
		result = decimal.Zero
	}

	// Round is half away from zero, which is half-up for money >= 0.
	return result.Round(places), nil
}
