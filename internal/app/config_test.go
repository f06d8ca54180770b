package app

import (
	"testing"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLoaderConfig() aconfig.Config {
	return aconfig.Config{
		EnvPrefix:        "PROMO",
		SkipFiles:        true,
		SkipFlags:        true,
		AllowUnknownEnvs: true,
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("PROMO_DATABASE_URL", "postgres://localhost/promo")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("PORT", "")

	cfg, err := loadConfig(testLoaderConfig())
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Addr)
	assert.Equal(t, "postgres://localhost/promo", cfg.DatabaseURL)
	assert.Equal(t, 100, cfg.RateLimit.Max)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 5, cfg.Checkout.MaxRetries)
	assert.Equal(t, 5*time.Minute, cfg.Redis.TTL)
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, 15*time.Second, cfg.Graceful.ShutdownTimeout)
}

func TestLoadConfig_PlatformDefaults(t *testing.T) {
	t.Setenv("PROMO_DATABASE_URL", "")
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("REDIS_URL", "redis://cache:6379/0")
	t.Setenv("PORT", "9000")

	cfg, err := loadConfig(testLoaderConfig())
	require.NoError(t, err)

	assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
	assert.Equal(t, "redis://cache:6379/0", cfg.Redis.URL)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)
}

func TestLoadConfig_ExplicitAddrWinsOverPort(t *testing.T) {
	t.Setenv("PROMO_DATABASE_URL", "postgres://localhost/promo")
	t.Setenv("PROMO_ADDR", "127.0.0.1:7000")
	t.Setenv("PORT", "9000")

	cfg, err := loadConfig(testLoaderConfig())
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PROMO_DATABASE_URL", "")

	_, err := loadConfig(testLoaderConfig())
	require.ErrorContains(t, err, "database URL is required")

	t.Setenv("PROMO_DATABASE_URL", "postgres://localhost/promo")
	t.Setenv("PROMO_CHECKOUT_MAX_RETRIES", "-1")
	_, err = loadConfig(testLoaderConfig())
	require.ErrorContains(t, err, "max retries")
}
