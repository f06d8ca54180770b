package promotion

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCalculateDiscount(t *testing.T) {
	tests := []struct {
		name      string
		promo     Promotion
		cartTotal decimal.Decimal
		want      decimal.Decimal
	}{
		{
			name:      "percentage without cap",
			promo:     Promotion{DiscountType: DiscountPercentage, Discount: d("10")},
			cartTotal: d("100"),
			want:      d("10"),
		},
		{
			name:      "percentage keeps fractional cents",
			promo:     Promotion{DiscountType: DiscountPercentage, Discount: d("15")},
			cartTotal: d("33.33"),
			want:      d("4.9995"),
		},
		{
			name:      "percentage clamped to max discount",
			promo:     Promotion{DiscountType: DiscountPercentage, Discount: d("50"), MaxDiscount: dp("20")},
			cartTotal: d("100"),
			want:      d("20"),
		},
		{
			name:      "percentage below max discount",
			promo:     Promotion{DiscountType: DiscountPercentage, Discount: d("10"), MaxDiscount: dp("20")},
			cartTotal: d("100"),
			want:      d("10"),
		},
		{
			name:      "fixed amount",
			promo:     Promotion{DiscountType: DiscountFixedAmount, Discount: d("5")},
			cartTotal: d("20"),
			want:      d("5"),
		},
		{
			name:      "fixed amount clamped to cart total",
			promo:     Promotion{DiscountType: DiscountFixedAmount, Discount: d("30")},
			cartTotal: d("20"),
			want:      d("20"),
		},
		{
			name:      "empty cart",
			promo:     Promotion{DiscountType: DiscountFixedAmount, Discount: d("30")},
			cartTotal: decimal.Zero,
			want:      decimal.Zero,
		},
		{
			name:      "unknown discount type",
			promo:     Promotion{DiscountType: "bogus", Discount: d("30")},
			cartTotal: d("100"),
			want:      decimal.Zero,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateDiscount(&tt.promo, tt.cartTotal)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestCalculateDiscount_Bounds(t *testing.T) {
	totals := []string{"0.01", "0.99", "1", "19.99", "50", "100", "1234.56", "99999.99"}
	discounts := []string{"0.5", "1", "10", "33.333", "99.99", "100", "250"}
	caps := []*decimal.Decimal{nil, dp("0.01"), dp("5"), dp("100")}

	for _, total := range totals {
		cartTotal := d(total)
		for _, disc := range discounts {
			for _, maxDiscount := range caps {
				pct := Promotion{DiscountType: DiscountPercentage, Discount: d(disc), MaxDiscount: maxDiscount}
				got := CalculateDiscount(&pct, cartTotal)
				if maxDiscount == nil && !d(disc).GreaterThan(hundred) {
					want := cartTotal.Mul(d(disc)).Div(hundred)
					assert.True(t, want.Equal(got), "percentage %s of %s: want %s, got %s", disc, total, want, got)
				}
				if maxDiscount != nil {
					assert.True(t, got.LessThanOrEqual(*maxDiscount), "capped by %s, got %s", maxDiscount, got)
				}
				assert.False(t, FinalTotal(cartTotal, got).IsNegative())

				fixed := Promotion{DiscountType: DiscountFixedAmount, Discount: d(disc), MaxDiscount: maxDiscount}
				got = CalculateDiscount(&fixed, cartTotal)
				assert.True(t, got.LessThanOrEqual(cartTotal), "fixed %s on %s, got %s", disc, total, got)
				assert.False(t, got.IsNegative())
			}
		}
	}
}

func TestFinalTotal(t *testing.T) {
	assert.True(t, d("90").Equal(FinalTotal(d("100"), d("10"))))
	assert.True(t, decimal.Zero.Equal(FinalTotal(d("10"), d("20"))))
}
