package promotion

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput() Input {
	return Input{
		Code:         "SUMMER",
		Name:         "Summer sale",
		Type:         TypeSeasonalOffer,
		StartDate:    fixedNow,
		EndDate:      fixedNow.Add(30 * 24 * time.Hour),
		Discount:     d("15"),
		DiscountType: DiscountPercentage,
		Conditions: []ConditionInput{
			{Type: ConditionSpecificProducts, Payload: []byte(`{"productIds":["p1"]}`)},
		},
		ProductIDs: []string{"p1", "p1", "p2"},
	}
}

func newTestAdmin(repo *mockRepo, inv Invalidator) *Admin {
	a := NewAdmin(repo, inv)
	a.now = func() time.Time { return fixedNow }
	return a
}

func TestAdmin_Create(t *testing.T) {
	repo := newMockRepo()
	inv := &mockInvalidator{}
	a := newTestAdmin(repo, inv)

	p, err := a.Create(context.Background(), validInput())
	require.NoError(t, err)

	assert.NotEmpty(t, p.ID)
	assert.True(t, p.IsActive)
	assert.Equal(t, fixedNow, p.CreatedAt)
	assert.Equal(t, []string{"p1", "p2"}, p.ProductIDs)
	require.Len(t, p.Conditions, 1)
	assert.True(t, p.Conditions[0].IsActive)
	assert.NotEmpty(t, p.Conditions[0].ID)
	assert.Same(t, p, repo.created)
	assert.Equal(t, []string{"SUMMER"}, inv.codes)
}

func TestAdmin_CreateInvariants(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *Input)
	}{
		{"empty code", func(in *Input) { in.Code = "  " }},
		{"empty name", func(in *Input) { in.Name = "" }},
		{"unknown type", func(in *Input) { in.Type = "mystery" }},
		{"unknown discount type", func(in *Input) { in.DiscountType = "bogo" }},
		{"start after end", func(in *Input) { in.StartDate = in.EndDate.Add(time.Second) }},
		{"zero discount", func(in *Input) { in.Discount = d("0") }},
		{"percentage over 100", func(in *Input) { in.Discount = d("100.01") }},
		{"non positive max discount", func(in *Input) { in.MaxDiscount = dp("0") }},
		{"non positive min purchase", func(in *Input) { in.MinPurchase = dp("-5") }},
		{"zero usage limit", func(in *Input) { in.UsageLimit = ip(0) }},
		{"negative per-user limit", func(in *Input) { in.UsageLimitPerUser = ip(-1) }},
		{"usage limit beyond int32", func(in *Input) { in.UsageLimit = ip(math.MaxInt32 + 2) }},
		{"per-user limit beyond int32", func(in *Input) { in.UsageLimitPerUser = ip(1 << 32) }},
		{"unknown condition", func(in *Input) {
			in.Conditions = []ConditionInput{{Type: "weather", Value: "sunny"}}
		}},
		{"malformed condition payload", func(in *Input) {
			in.Conditions = []ConditionInput{{Type: ConditionSpecificProducts, Payload: []byte(`{"productIds":`)}}
		}},
		{"product payload without ids", func(in *Input) {
			in.Conditions = []ConditionInput{{Type: ConditionSpecificProducts, Payload: []byte(`{"productIds":[]}`)}}
		}},
		{"category payload under wrong key", func(in *Input) {
			in.Conditions = []ConditionInput{{Type: ConditionSpecificCategories, Payload: []byte(`{"productIds":["p1"]}`)}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepo()
			in := validInput()
			tt.mutate(&in)

			_, err := newTestAdmin(repo, nil).Create(context.Background(), in)
			require.ErrorIs(t, err, ErrInvalidInput)
			assert.Nil(t, repo.created)
		})
	}
}

func TestAdmin_CreateFixedAmountOver100(t *testing.T) {
	in := validInput()
	in.DiscountType = DiscountFixedAmount
	in.Discount = d("250")

	_, err := newTestAdmin(newMockRepo(), nil).Create(context.Background(), in)
	require.NoError(t, err)
}

func TestAdmin_CreateDuplicateCode(t *testing.T) {
	repo := newMockRepo()
	repo.createErr = errors.Wrap(ErrCodeExists, "insert promotion")
	inv := &mockInvalidator{}

	_, err := newTestAdmin(repo, inv).Create(context.Background(), validInput())
	require.ErrorIs(t, err, ErrCodeExists)
	assert.True(t, IsRejection(err))
	assert.Empty(t, inv.codes)
}

func TestAdmin_Update(t *testing.T) {
	existing := basePromotion("OLD")
	existing.ProductIDs = []string{"p1"}
	existing.Conditions = []ConditionRecord{{ID: "c1", Type: ConditionFirstTimePurchase, IsActive: true}}
	repo := newMockRepo(existing)
	inv := &mockInvalidator{}
	a := newTestAdmin(repo, inv)

	code := "NEW"
	discount := d("25")
	conds := []ConditionInput{{Type: ConditionQuantityThreshold, Value: "2"}}

	p, err := a.Update(context.Background(), existing.ID, Patch{
		Code:       &code,
		Discount:   &discount,
		Conditions: &conds,
	})
	require.NoError(t, err)

	assert.Equal(t, "NEW", p.Code)
	assert.True(t, d("25").Equal(p.Discount))
	assert.Equal(t, existing.Name, p.Name)
	assert.Equal(t, []string{"p1"}, p.ProductIDs)
	require.Len(t, p.Conditions, 1)
	assert.Equal(t, ConditionQuantityThreshold, p.Conditions[0].Type)
	assert.Equal(t, Replace{Conditions: true}, repo.replaced)
	assert.Equal(t, fixedNow, p.UpdatedAt)
	assert.ElementsMatch(t, []string{"OLD", "NEW"}, inv.codes)
}

func TestAdmin_UpdateChecksMergedResult(t *testing.T) {
	existing := basePromotion("PCT")
	repo := newMockRepo(existing)

	over := d("150")
	_, err := newTestAdmin(repo, nil).Update(context.Background(), existing.ID, Patch{Discount: &over})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Nil(t, repo.updated)

	end := existing.StartDate.Add(-time.Hour)
	_, err = newTestAdmin(repo, nil).Update(context.Background(), existing.ID, Patch{EndDate: &end})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestAdmin_UpdateMissing(t *testing.T) {
	name := "x"
	_, err := newTestAdmin(newMockRepo(), nil).Update(context.Background(), "nope", Patch{Name: &name})
	require.ErrorIs(t, err, ErrPromotionNotFound)
}

func TestAdmin_Delete(t *testing.T) {
	existing := basePromotion("BYE")
	repo := newMockRepo(existing)
	inv := &mockInvalidator{}

	require.NoError(t, newTestAdmin(repo, inv).Delete(context.Background(), existing.ID))
	assert.Equal(t, existing.ID, repo.deleted)
	assert.Equal(t, []string{"BYE"}, inv.codes)

	err := newTestAdmin(repo, inv).Delete(context.Background(), existing.ID)
	require.ErrorIs(t, err, ErrPromotionNotFound)
}

func TestAdmin_InvalidationFailureIsNotFatal(t *testing.T) {
	inv := &mockInvalidator{err: errors.New("redis down")}
	_, err := newTestAdmin(newMockRepo(), inv).Create(context.Background(), validInput())
	require.NoError(t, err)
}

func TestAdmin_List(t *testing.T) {
	tests := []struct {
		name      string
		in        ListFilter
		total     int
		want      ListFilter
		wantPages int
		wantErr   error
	}{
		{
			name:      "defaults",
			total:     25,
			want:      ListFilter{Page: 1, Limit: 10, SortBy: SortCreatedAt, SortOrder: "desc"},
			wantPages: 3,
		},
		{
			name:      "active filter gets clock",
			in:        ListFilter{ActiveOnly: true, Page: 2, Limit: 5, SortBy: SortEndDate, SortOrder: "ASC"},
			total:     10,
			want:      ListFilter{ActiveOnly: true, Now: fixedNow, Page: 2, Limit: 5, SortBy: SortEndDate, SortOrder: "asc"},
			wantPages: 2,
		},
		{
			name:      "limit capped",
			in:        ListFilter{Limit: 1000},
			want:      ListFilter{Page: 1, Limit: 100, SortBy: SortCreatedAt, SortOrder: "desc"},
			wantPages: 0,
		},
		{
			name:    "unknown sort key",
			in:      ListFilter{SortBy: "id; DROP TABLE promotions"},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "unknown sort order",
			in:      ListFilter{SortOrder: "sideways"},
			wantErr: ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepo()
			repo.listTotal = tt.total
			repo.listItems = []Promotion{*basePromotion("A")}

			res, err := newTestAdmin(repo, nil).List(context.Background(), tt.in)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, repo.listFilter)
			assert.Equal(t, Meta{
				Total:      tt.total,
				Page:       tt.want.Page,
				Limit:      tt.want.Limit,
				TotalPages: tt.wantPages,
			}, res.Meta)
			assert.Len(t, res.Items, 1)
		})
	}
}
