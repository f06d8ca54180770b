// Package redis caches active promotion lookups in Redis.
package redis

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/kart-promotions/internal/domain/promotion"
	"github.com/xenking/kart-promotions/internal/wire"
)

const keyPrefix = "promo:code:"

// Config configures the Redis client. URL, when set, takes precedence over
// the discrete fields.
type Config struct {
	URL      string
	Addr     string
	Password string
	DB       int
	PoolSize int
}

func (c Config) options() (*redis.Options, error) {
	if c.URL != "" {
		opts, err := redis.ParseURL(c.URL)
		if err != nil {
			return nil, errors.Wrap(err, "parse redis url")
		}
		return opts, nil
	}
	return &redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
		PoolSize: c.PoolSize,
	}, nil
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	opts, err := cfg.options()
	if err != nil {
		return nil, err
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = 10
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return client, nil
}

// Client is the subset of the go-redis API used by the cache.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

var _ Client = (*redis.Client)(nil)

var (
	_ promotion.Repository  = (*PromotionCache)(nil)
	_ promotion.Invalidator = (*PromotionCache)(nil)
)

// PromotionCache is a read-through cache in front of a promotion.Repository.
// Only FindActiveByCode is cached; every other call goes to the underlying
// repository. Cache failures degrade to direct reads.
type PromotionCache struct {
	promotion.Repository

	client Client
	ttl    time.Duration
}

// NewPromotionCache wraps repo. Entries expire after ttl.
func NewPromotionCache(repo promotion.Repository, client Client, ttl time.Duration) *PromotionCache {
	return &PromotionCache{Repository: repo, client: client, ttl: ttl}
}

func cacheKey(code string) string {
	return keyPrefix + code
}

// FindActiveByCode serves the promotion from Redis when present, otherwise
// loads it from the repository and stores it. Misses are not cached, and
// promotions served from Redis carry a zero UsageCount.
func (c *PromotionCache) FindActiveByCode(ctx context.Context, code string) (*promotion.Promotion, error) {
	lg := zctx.From(ctx)
	key := cacheKey(code)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		p, decodeErr := wire.UnmarshalPromotion(data)
		if decodeErr == nil {
			p.UsageCount = 0
			return p, nil
		}
		lg.Warn("Drop undecodable cache entry", zap.String("key", key), zap.Error(decodeErr))
		c.drop(ctx, key)
	case errors.Is(err, redis.Nil):
	default:
		lg.Warn("Promotion cache read failed", zap.String("key", key), zap.Error(err))
	}

	p, err := c.Repository.FindActiveByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	// Usage counts change on every checkout and are never cached.
	entry := *p
	entry.UsageCount = 0
	if err := c.client.Set(ctx, key, wire.MarshalPromotion(&entry), c.ttl).Err(); err != nil {
		lg.Warn("Promotion cache write failed", zap.String("key", key), zap.Error(err))
	}
	return p, nil
}

// Invalidate removes the cached entries for codes.
func (c *PromotionCache) Invalidate(ctx context.Context, codes ...string) error {
	if len(codes) == 0 {
		return nil
	}
	keys := make([]string, len(codes))
	for i, code := range codes {
		keys[i] = cacheKey(code)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, "delete cache keys")
	}
	return nil
}

func (c *PromotionCache) drop(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		zctx.From(ctx).Warn("Promotion cache delete failed", zap.String("key", key), zap.Error(err))
	}
}
