package cache

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kasirpos/backend/internal/domain"
)

func TestNoopSettingsCacheAlwaysMisses(t *testing.T) {
	var c SettingsCache = NoopSettingsCache{}
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, &domain.Settings{MerchantID: "m1", TaxRatePercent: 11}, time.Minute))
	got, ok, err := c.Get(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
	assert.NoError(t, c.Delete(ctx, "m1"))
}

func TestSettingsKeyIsScopedPerMerchant(t *testing.T) {
	assert.Equal(t, "kasirpos:settings:m1", settingsKey("m1"))
	assert.NotEqual(t, settingsKey("m1"), settingsKey("m2"))
}

func TestRedisSettingsCacheIntegration(t *testing.T) {
	addr := os.Getenv("KASIRPOS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("KASIRPOS_TEST_REDIS_ADDR not set")
	}
	db, _ := strconv.Atoi(os.Getenv("KASIRPOS_TEST_REDIS_DB"))

	c := NewRedisSettingsCache(addr, os.Getenv("KASIRPOS_TEST_REDIS_PASSWORD"), db)
	t.Cleanup(func() { _ = c.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Ping(ctx))

	merchantID := "it-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	want := &domain.Settings{MerchantID: merchantID, TaxRatePercent: 11, DiscountRatePercent: 5}
	require.NoError(t, c.Set(ctx, want, time.Minute))

	got, ok, err := c.Get(ctx, merchantID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 11.0, got.TaxRatePercent)
	assert.Equal(t, 5.0, got.DiscountRatePercent)

	require.NoError(t, c.Delete(ctx, merchantID))
	_, ok, err = c.Get(ctx, merchantID)
	require.NoError(t, err)
	assert.False(t, ok)
}
