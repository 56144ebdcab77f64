package config

import (
	"testing"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOnly() aconfig.Config {
	return aconfig.Config{EnvPrefix: "POS", SkipFiles: true, SkipFlags: true}
}

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("POS_AUTH_SECRET", "")

	cfg, err := load(envOnly())
	require.NoError(t, err)
	assert.Empty(t, cfg.AuthSecret)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 11.0, cfg.DefaultTaxRate)
	assert.Equal(t, 8*time.Hour, cfg.AccessTokenTTL)
}

func TestLoadReadsPrefixedEnv(t *testing.T) {
	t.Setenv("POS_AUTH_SECRET", "  0123456789abcdef0123456789abcdef  ")
	t.Setenv("POS_MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("POS_DEFAULT_DISCOUNT_RATE", "5")
	t.Setenv("POS_SETTINGS_CACHE_TTL", "30s")

	cfg, err := load(envOnly())
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef0123456789abcdef", cfg.AuthSecret)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoURI)
	assert.Equal(t, 5.0, cfg.DefaultDiscountRate)
	assert.Equal(t, 30*time.Second, cfg.SettingsCacheTTL)
}

func TestLoadPlatformFallbacks(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://platform")

	cfg, err := load(envOnly())
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, ":9090", cfg.Address())
	assert.Equal(t, "postgres://platform", cfg.DatabaseURL)
}

func TestLoadRejectsOutOfRangeRates(t *testing.T) {
	t.Setenv("POS_DEFAULT_TAX_RATE", "120")

	_, err := load(envOnly())
	assert.Error(t, err)
}

func TestLocationFallsBackToWIB(t *testing.T) {
	loc := Config{Timezone: "Nowhere/Invalid"}.Location()
	_, offset := time.Date(2026, 1, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, 7*60*60, offset)
}
