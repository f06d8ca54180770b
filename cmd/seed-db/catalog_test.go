package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-promotions/internal/domain/promotion"
)

func TestParseSeed(t *testing.T) {
	data := []byte(`{
		"categories": [{"id": "drinks", "name": "Drinks", "extra": 1}],
		"products": [{"id": "latte", "name": "Latte", "price": 4.25, "categoryId": "drinks"}],
		"users": [{"id": "u1", "role": "vip"}],
		"promotions": [{
			"code": "SAVE10", "name": "Save", "startDate": "2025-01-01T00:00:00Z",
			"endDate": "2026-01-01T00:00:00Z", "discount": 10, "discountType": "percentage"
		}]
	}`)

	s, err := parseSeed(data)
	require.NoError(t, err)

	require.Len(t, s.Categories, 1)
	assert.Equal(t, category{ID: "drinks", Name: "Drinks"}, s.Categories[0])

	require.Len(t, s.Products, 1)
	assert.Equal(t, "drinks", s.Products[0].CategoryID)
	assert.Equal(t, "4.25", s.Products[0].Price.String())

	require.Len(t, s.Users, 1)
	assert.Equal(t, "vip", s.Users[0].Role)

	require.Len(t, s.Promotions, 1)
	assert.Equal(t, "SAVE10", s.Promotions[0].Code)
	assert.Equal(t, promotion.DiscountPercentage, s.Promotions[0].DiscountType)
}

func TestParseSeed_Errors(t *testing.T) {
	for name, data := range map[string]string{
		"syntax":        `{"products": [`,
		"product no id": `{"products": [{"name": "x", "price": 1}]}`,
		"bad price":     `{"products": [{"id": "a", "name": "x", "price": "cheap"}]}`,
		"bad promotion": `{"promotions": [{"code": "X", "discount": "lots"}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := parseSeed([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestParseSeed_BundledCatalog(t *testing.T) {
	data, err := os.ReadFile("../../db/seed/catalog.json")
	require.NoError(t, err)

	s, err := parseSeed(data)
	require.NoError(t, err)
	assert.NotEmpty(t, s.Products)
	assert.NotEmpty(t, s.Promotions)
	for _, in := range s.Promotions {
		assert.NotEmpty(t, in.Code)
		assert.True(t, in.DiscountType.Valid(), in.Code)
	}
}
