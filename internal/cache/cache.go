package cache

import (
	"context"
	"time"

	"kasirpos/backend/internal/domain"
)

// SettingsCache keeps merchant pricing settings close to checkout. Misses
// and errors fall through to the store.
type SettingsCache interface {
	Get(ctx context.Context, merchantID string) (*domain.Settings, bool, error)
	Set(ctx context.Context, value *domain.Settings, ttl time.Duration) error
	Delete(ctx context.Context, merchantID string) error
}

type NoopSettingsCache struct{}

func (NoopSettingsCache) Get(_ context.Context, _ string) (*domain.Settings, bool, error) {
	return nil, false, nil
}

func (NoopSettingsCache) Set(_ context.Context, _ *domain.Settings, _ time.Duration) error {
	return nil
}

func (NoopSettingsCache) Delete(_ context.Context, _ string) error {
	return nil
}

func settingsKey(merchantID string) string {
	return "kasirpos:settings:" + merchantID
}
