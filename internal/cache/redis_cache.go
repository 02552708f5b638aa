package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"posledger/backend/internal/domain"
)

const settingsKeyPrefix = "posledger:settings:"

type RedisSettingsCache struct {
	client *redis.Client
}

func NewRedisSettingsCache(addr string, password string, db int) *RedisSettingsCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisSettingsCache{client: client}
}

// NewRedisSettingsCacheFromClient shares an existing client, e.g. one also
// used by the audit queue.
func NewRedisSettingsCacheFromClient(client *redis.Client) *RedisSettingsCache {
	return &RedisSettingsCache{client: client}
}

func (c *RedisSettingsCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisSettingsCache) Close() error {
	return c.client.Close()
}

func (c *RedisSettingsCache) Get(ctx context.Context, tenantID string) (*domain.TenantSettings, bool, error) {
	val, err := c.client.Get(ctx, settingsKeyPrefix+tenantID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var settings domain.TenantSettings
	if err := json.Unmarshal([]byte(val), &settings); err != nil {
		return nil, false, err
	}
	return &settings, true, nil
}

func (c *RedisSettingsCache) Set(ctx context.Context, settings domain.TenantSettings, ttl time.Duration) error {
	payload, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, settingsKeyPrefix+settings.TenantID, payload, ttl).Err()
}

func (c *RedisSettingsCache) Invalidate(ctx context.Context, tenantID string) error {
	return c.client.Del(ctx, settingsKeyPrefix+tenantID).Err()
}
