package redis

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-promotions/internal/domain/promotion"
	"github.com/xenking/kart-promotions/internal/wire"
)

type fakeClient struct {
	data   map[string][]byte
	getErr error
	setErr error
	delErr error

	sets    int
	deleted []string
	ttl     time.Duration
}

func newFakeClient() *fakeClient {
	return &fakeClient{data: map[string][]byte{}}
}

func (f *fakeClient) Get(_ context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (f *fakeClient) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	f.sets++
	f.ttl = ttl
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	f.data[key] = value.([]byte)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeClient) Del(_ context.Context, keys ...string) *redis.IntCmd {
	if f.delErr != nil {
		return redis.NewIntResult(0, f.delErr)
	}
	f.deleted = append(f.deleted, keys...)
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

type countingRepo struct {
	promotion.Repository

	byCode map[string]*promotion.Promotion
	finds  int
}

func (r *countingRepo) FindActiveByCode(_ context.Context, code string) (*promotion.Promotion, error) {
	r.finds++
	p, ok := r.byCode[code]
	if !ok {
		return nil, &promotion.RejectionError{Kind: promotion.ErrInvalidCode, Message: "Invalid promotion code or promotion is not active"}
	}
	return p, nil
}

func testPromotion(code string) *promotion.Promotion {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return &promotion.Promotion{
		ID:           "id-" + code,
		Code:         code,
		Name:         code,
		Type:         promotion.TypeGeneral,
		StartDate:    start,
		EndDate:      start.AddDate(1, 0, 0),
		Discount:     decimal.NewFromInt(10),
		DiscountType: promotion.DiscountPercentage,
		IsActive:     true,
	}
}

func newTestCache(client *fakeClient, promos ...*promotion.Promotion) (*PromotionCache, *countingRepo) {
	repo := &countingRepo{byCode: map[string]*promotion.Promotion{}}
	for _, p := range promos {
		repo.byCode[p.Code] = p
	}
	return NewPromotionCache(repo, client, time.Minute), repo
}

func TestPromotionCache_MissThenHit(t *testing.T) {
	client := newFakeClient()
	cache, repo := newTestCache(client, testPromotion("SAVE10"))
	ctx := context.Background()

	first, err := cache.FindActiveByCode(ctx, "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.finds)
	assert.Contains(t, client.data, "promo:code:SAVE10")
	assert.Equal(t, time.Minute, client.ttl)

	second, err := cache.FindActiveByCode(ctx, "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.finds)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.Discount.Equal(second.Discount))
}

func TestPromotionCache_UsageCountNotCached(t *testing.T) {
	client := newFakeClient()
	p := testPromotion("SAVE10")
	p.UsageCount = 7
	cache, _ := newTestCache(client, p)
	ctx := context.Background()

	first, err := cache.FindActiveByCode(ctx, "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, 7, first.UsageCount)

	stored, err := wire.UnmarshalPromotion(client.data["promo:code:SAVE10"])
	require.NoError(t, err)
	assert.Zero(t, stored.UsageCount)

	// Entries written before counts were stripped still come back zeroed.
	p.UsageCount = 9
	client.data["promo:code:SAVE10"] = wire.MarshalPromotion(p)
	second, err := cache.FindActiveByCode(ctx, "SAVE10")
	require.NoError(t, err)
	assert.Zero(t, second.UsageCount)
}

func TestPromotionCache_RejectionNotCached(t *testing.T) {
	client := newFakeClient()
	cache, repo := newTestCache(client)

	for range 2 {
		_, err := cache.FindActiveByCode(context.Background(), "NOPE")
		require.ErrorIs(t, err, promotion.ErrInvalidCode)
	}
	assert.Equal(t, 2, repo.finds)
	assert.Zero(t, client.sets)
}

func TestPromotionCache_Invalidate(t *testing.T) {
	client := newFakeClient()
	cache, repo := newTestCache(client, testPromotion("A"))
	ctx := context.Background()

	_, err := cache.FindActiveByCode(ctx, "A")
	require.NoError(t, err)

	require.NoError(t, cache.Invalidate(ctx, "A", "B"))
	assert.Equal(t, []string{"promo:code:A", "promo:code:B"}, client.deleted)

	_, err = cache.FindActiveByCode(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.finds)

	require.NoError(t, cache.Invalidate(ctx))
}

func TestPromotionCache_InvalidateError(t *testing.T) {
	client := newFakeClient()
	client.delErr = errors.New("connection refused")
	cache, _ := newTestCache(client)

	require.Error(t, cache.Invalidate(context.Background(), "A"))
}

func TestPromotionCache_DegradesOnRedisFailure(t *testing.T) {
	client := newFakeClient()
	client.getErr = errors.New("connection refused")
	client.setErr = errors.New("connection refused")
	cache, repo := newTestCache(client, testPromotion("A"))

	p, err := cache.FindActiveByCode(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, "A", p.Code)
	assert.Equal(t, 1, repo.finds)
}

func TestPromotionCache_CorruptEntry(t *testing.T) {
	client := newFakeClient()
	client.data["promo:code:A"] = []byte(`{"discount":`)
	cache, repo := newTestCache(client, testPromotion("A"))

	p, err := cache.FindActiveByCode(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, "A", p.Code)
	assert.Equal(t, 1, repo.finds)
	assert.Contains(t, client.deleted, "promo:code:A")

	cached, err := wire.UnmarshalPromotion(client.data["promo:code:A"])
	require.NoError(t, err)
	assert.Equal(t, "id-A", cached.ID)
}

func TestConfigOptions(t *testing.T) {
	opts, err := Config{URL: "redis://:secret@cache:6380/2"}.options()
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)

	opts, err = Config{Addr: "localhost:6379", DB: 1}.options()
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 1, opts.DB)

	_, err = Config{URL: "http://nope"}.options()
	assert.Error(t, err)
}
