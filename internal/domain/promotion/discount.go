package promotion

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// CalculateDiscount returns the discount p grants on cartTotal. The result
// is never negative and never exceeds cartTotal. No rounding is applied.
func CalculateDiscount(p *Promotion, cartTotal decimal.Decimal) decimal.Decimal {
	if !cartTotal.IsPositive() {
		return decimal.Zero
	}

	var amount decimal.Decimal
	switch p.DiscountType {
	case DiscountPercentage:
		amount = cartTotal.Mul(p.Discount).Div(hundred)
		if p.MaxDiscount != nil && amount.GreaterThan(*p.MaxDiscount) {
			amount = *p.MaxDiscount
		}
	case DiscountFixedAmount:
		amount = p.Discount
	default:
		return decimal.Zero
	}

	amount = decimal.Min(amount, cartTotal)
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

// FinalTotal is cartTotal minus discount, floored at zero.
func FinalTotal(cartTotal, discount decimal.Decimal) decimal.Decimal {
	total := cartTotal.Sub(discount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}
