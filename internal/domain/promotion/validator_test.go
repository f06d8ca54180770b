package promotion

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func basePromotion(code string) *Promotion {
	return &Promotion{
		ID:           "promo-" + code,
		Code:         code,
		Name:         code,
		Type:         TypeGeneral,
		StartDate:    fixedNow.Add(-24 * time.Hour),
		EndDate:      fixedNow.Add(24 * time.Hour),
		Discount:     d("10"),
		DiscountType: DiscountPercentage,
		IsActive:     true,
	}
}

func newTestValidator(repo *mockRepo, usages *mockUsages) *Validator {
	eval, _, _, _ := newEvaluator()
	return NewValidator(repo, usages, eval, WithClock(func() time.Time { return fixedNow }))
}

func TestValidator_Scenarios(t *testing.T) {
	save10 := basePromotion("SAVE10")
	save10.MinPurchase = dp("50")

	fixed30 := basePromotion("FIXED30")
	fixed30.DiscountType = DiscountFixedAmount
	fixed30.Discount = d("30")

	once := basePromotion("ONCE")
	once.UsageLimitPerUser = ip(1)

	p1Only := basePromotion("P1ONLY")
	p1Only.Conditions = []ConditionRecord{{
		ID:       "c1",
		Type:     ConditionSpecificProducts,
		Payload:  []byte(`{"productIds":["P1"]}`),
		IsActive: true,
	}}

	repo := newMockRepo(save10, fixed30, once, p1Only)
	usages := &mockUsages{perUser: map[string]int{"promo-ONCE/u1": 1}}
	v := newTestValidator(repo, usages)

	tests := []struct {
		name         string
		req          ValidateRequest
		wantDiscount string
		wantFinal    string
		wantErr      error
	}{
		{
			name:         "A: percentage over minimum purchase",
			req:          ValidateRequest{Code: "SAVE10", CartTotal: d("100")},
			wantDiscount: "10",
			wantFinal:    "90",
		},
		{
			name:    "B: below minimum purchase",
			req:     ValidateRequest{Code: "SAVE10", CartTotal: d("40")},
			wantErr: ErrBelowMinimumPurchase,
		},
		{
			name:         "C: fixed amount clamped to cart",
			req:          ValidateRequest{Code: "FIXED30", CartTotal: d("20")},
			wantDiscount: "20",
			wantFinal:    "0",
		},
		{
			name:    "D: per-user limit reached",
			req:     ValidateRequest{Code: "ONCE", UserID: "u1", CartTotal: d("100")},
			wantErr: ErrUsageLimitExceeded,
		},
		{
			name:         "D: per-user limit ignored for anonymous",
			req:          ValidateRequest{Code: "ONCE", CartTotal: d("100")},
			wantDiscount: "10",
			wantFinal:    "90",
		},
		{
			name: "E: required product missing",
			req: ValidateRequest{
				Code:      "P1ONLY",
				Items:     []CartItem{{ProductID: "P2", Quantity: 1}},
				CartTotal: d("100"),
			},
			wantErr: ErrConditionNotSatisfied,
		},
		{
			name: "E: required product present",
			req: ValidateRequest{
				Code:      "P1ONLY",
				Items:     []CartItem{{ProductID: "P1", Quantity: 1}, {ProductID: "P2", Quantity: 1}},
				CartTotal: d("100"),
			},
			wantDiscount: "10",
			wantFinal:    "90",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec, err := v.Validate(context.Background(), tt.req)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.True(t, IsRejection(err))
				assert.Nil(t, dec)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.req.Code, dec.Promotion.Code)
			assert.True(t, d(tt.wantDiscount).Equal(dec.DiscountAmount), "discount: got %s", dec.DiscountAmount)
			assert.True(t, d(tt.wantFinal).Equal(dec.FinalTotal), "final: got %s", dec.FinalTotal)
		})
	}
}

func TestValidator_Rejections(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(p *Promotion)
		usages    *mockUsages
		req       ValidateRequest
		wantErr   error
		wantScope UsageScope
		wantMsg   string
	}{
		{
			name:    "unknown code",
			req:     ValidateRequest{Code: "NOPE"},
			wantErr: ErrInvalidCode,
			wantMsg: "Invalid promotion code or promotion is not active",
		},
		{
			name:    "code is case sensitive",
			req:     ValidateRequest{Code: "promo"},
			wantErr: ErrInvalidCode,
		},
		{
			name:    "inactive promotion",
			mutate:  func(p *Promotion) { p.IsActive = false },
			req:     ValidateRequest{Code: "PROMO"},
			wantErr: ErrInvalidCode,
		},
		{
			name:    "not started",
			mutate:  func(p *Promotion) { p.StartDate = fixedNow.Add(time.Second) },
			req:     ValidateRequest{Code: "PROMO"},
			wantErr: ErrInactiveOrExpired,
			wantMsg: "Promotion is not active at this time",
		},
		{
			name: "expired despite generous fields",
			mutate: func(p *Promotion) {
				p.EndDate = fixedNow.Add(-time.Nanosecond)
				p.UsageLimit = nil
				p.MinPurchase = nil
			},
			req:     ValidateRequest{Code: "PROMO", CartTotal: d("1000")},
			wantErr: ErrInactiveOrExpired,
		},
		{
			name:      "global limit reached",
			mutate:    func(p *Promotion) { p.UsageLimit = ip(5) },
			usages:    &mockUsages{total: map[string]int{"promo-PROMO": 5}},
			req:       ValidateRequest{Code: "PROMO"},
			wantErr:   ErrUsageLimitExceeded,
			wantScope: ScopeGlobal,
			wantMsg:   "This promotion has reached its usage limit",
		},
		{
			name:      "per-user limit reached",
			mutate:    func(p *Promotion) { p.UsageLimitPerUser = ip(2) },
			usages:    &mockUsages{perUser: map[string]int{"promo-PROMO/u1": 2}},
			req:       ValidateRequest{Code: "PROMO", UserID: "u1"},
			wantErr:   ErrUsageLimitExceeded,
			wantScope: ScopeUser,
			wantMsg:   "You have already used this promotion the maximum number of times",
		},
		{
			name:    "minimum purchase message",
			mutate:  func(p *Promotion) { p.MinPurchase = dp("49.99") },
			req:     ValidateRequest{Code: "PROMO", CartTotal: d("10")},
			wantErr: ErrBelowMinimumPurchase,
			wantMsg: "This promotion requires a minimum purchase of 49.99",
		},
		{
			name: "malformed condition",
			mutate: func(p *Promotion) {
				p.Conditions = []ConditionRecord{{Type: ConditionQuantityThreshold, Value: "lots", IsActive: true}}
			},
			req:     ValidateRequest{Code: "PROMO", CartTotal: d("10")},
			wantErr: ErrMalformedCondition,
		},
		{
			name:    "empty code",
			req:     ValidateRequest{},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "negative cart total",
			req:     ValidateRequest{Code: "PROMO", CartTotal: d("-1")},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "zero quantity",
			req:     ValidateRequest{Code: "PROMO", Items: []CartItem{{ProductID: "p1"}}},
			wantErr: ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := basePromotion("PROMO")
			if tt.mutate != nil {
				tt.mutate(p)
			}
			usages := tt.usages
			if usages == nil {
				usages = &mockUsages{}
			}
			v := newTestValidator(newMockRepo(p), usages)

			_, err := v.Validate(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.wantErr)

			var rej *RejectionError
			require.ErrorAs(t, err, &rej)
			assert.Equal(t, tt.wantScope, rej.Scope)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, rej.Message)
			}
		})
	}
}

func TestValidator_EndDateInclusive(t *testing.T) {
	p := basePromotion("EDGE")
	p.StartDate = fixedNow
	p.EndDate = fixedNow
	v := newTestValidator(newMockRepo(p), &mockUsages{})

	dec, err := v.Validate(context.Background(), ValidateRequest{Code: "EDGE", CartTotal: d("50")})
	require.NoError(t, err)
	assert.True(t, d("5").Equal(dec.DiscountAmount))
}

func TestValidator_Idempotent(t *testing.T) {
	p := basePromotion("TWICE")
	p.UsageLimit = ip(3)
	p.MaxDiscount = dp("7.5")
	usages := &mockUsages{total: map[string]int{"promo-TWICE": 2}}
	v := newTestValidator(newMockRepo(p), usages)

	req := ValidateRequest{Code: "TWICE", UserID: "u1", CartTotal: d("120.40")}
	first, err := v.Validate(context.Background(), req)
	require.NoError(t, err)
	second, err := v.Validate(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, first.DiscountAmount.Equal(second.DiscountAmount))
	assert.True(t, first.FinalTotal.Equal(second.FinalTotal))
	assert.True(t, d("7.5").Equal(first.DiscountAmount))
	assert.Empty(t, usages.created)
}

func TestValidator_InfrastructureErrors(t *testing.T) {
	boom := errors.New("connection reset")

	t.Run("lookup", func(t *testing.T) {
		repo := newMockRepo()
		repo.findErr = boom
		_, err := newTestValidator(repo, &mockUsages{}).Validate(context.Background(), ValidateRequest{Code: "X"})
		require.ErrorIs(t, err, boom)
		assert.False(t, IsRejection(err))
		assert.Equal(t, "internal", KindName(err))
	})

	t.Run("usage count", func(t *testing.T) {
		p := basePromotion("X")
		p.UsageLimit = ip(1)
		_, err := newTestValidator(newMockRepo(p), &mockUsages{err: boom}).
			Validate(context.Background(), ValidateRequest{Code: "X"})
		require.ErrorIs(t, err, boom)
		assert.False(t, IsRejection(err))
	})
}

func TestValidator_StepOrder(t *testing.T) {
	// Usage is checked before minimum purchase and conditions.
	p := basePromotion("ORDER")
	p.UsageLimit = ip(1)
	p.MinPurchase = dp("500")
	p.Conditions = []ConditionRecord{{Type: ConditionQuantityThreshold, Value: "99", IsActive: true}}
	usages := &mockUsages{total: map[string]int{"promo-ORDER": 1}}

	_, err := newTestValidator(newMockRepo(p), usages).
		Validate(context.Background(), ValidateRequest{Code: "ORDER", CartTotal: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, ErrUsageLimitExceeded)

	usages.total = nil
	_, err = newTestValidator(newMockRepo(p), usages).
		Validate(context.Background(), ValidateRequest{Code: "ORDER", CartTotal: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, ErrBelowMinimumPurchase)
}

func TestValidator_ProductConditionWithoutIDsRejects(t *testing.T) {
	for name, payload := range map[string]string{
		"empty object": `{}`,
		"empty list":   `{"productIds":[]}`,
		"other key":    `{"categoryIds":["c1"]}`,
	} {
		t.Run(name, func(t *testing.T) {
			p := basePromotion("PROMO")
			p.ProductIDs = []string{"P2"}
			p.Conditions = []ConditionRecord{{
				Type:     ConditionSpecificProducts,
				Payload:  []byte(payload),
				IsActive: true,
			}}
			v := newTestValidator(newMockRepo(p), &mockUsages{})

			_, err := v.Validate(context.Background(), ValidateRequest{
				Code:      "PROMO",
				Items:     []CartItem{{ProductID: "P2", Quantity: 1}},
				CartTotal: d("100"),
			})
			require.ErrorIs(t, err, ErrConditionNotSatisfied)
		})
	}
}

func TestValidator_RefreshesUsageCount(t *testing.T) {
	p := basePromotion("PROMO")
	p.UsageLimit = ip(10)
	usages := &mockUsages{total: map[string]int{"promo-PROMO": 3}}
	v := newTestValidator(newMockRepo(p), usages)

	dec, err := v.Validate(context.Background(), ValidateRequest{Code: "PROMO", CartTotal: d("50")})
	require.NoError(t, err)
	assert.Equal(t, 3, dec.Promotion.UsageCount)
}
