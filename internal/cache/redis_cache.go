package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	redis "github.com/redis/go-redis/v9"

	"kasirpos/backend/internal/domain"
)

type RedisSettingsCache struct {
	client redis.UniversalClient
}

func NewRedisSettingsCache(addr string, password string, db int) *RedisSettingsCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisSettingsCache{client: client}
}

// NewRedisSettingsCacheWithClient wraps an existing client, e.g. a cluster
// client or one pointed at a test server.
func NewRedisSettingsCacheWithClient(client redis.UniversalClient) *RedisSettingsCache {
	return &RedisSettingsCache{client: client}
}

func (c *RedisSettingsCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisSettingsCache) Close() error {
	return c.client.Close()
}

func (c *RedisSettingsCache) Get(ctx context.Context, merchantID string) (*domain.Settings, bool, error) {
	val, err := c.client.Get(ctx, settingsKey(merchantID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "redis get")
	}

	var settings domain.Settings
	if err := json.Unmarshal(val, &settings); err != nil {
		return nil, false, errors.Wrap(err, "decode settings")
	}
	return &settings, true, nil
}

func (c *RedisSettingsCache) Set(ctx context.Context, value *domain.Settings, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "encode settings")
	}
	return c.client.Set(ctx, settingsKey(value.MerchantID), payload, ttl).Err()
}

func (c *RedisSettingsCache) Delete(ctx context.Context, merchantID string) error {
	return c.client.Del(ctx, settingsKey(merchantID)).Err()
}
