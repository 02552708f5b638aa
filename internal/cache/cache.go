package cache

import (
	"context"
	"time"

	"posledger/backend/internal/domain"
)

type SettingsCache interface {
	Get(ctx context.Context, tenantID string) (*domain.TenantSettings, bool, error)
	Set(ctx context.Context, settings domain.TenantSettings, ttl time.Duration) error
	Invalidate(ctx context.Context, tenantID string) error
}

type NoopSettingsCache struct{}

func (NoopSettingsCache) Get(_ context.Context, _ string) (*domain.TenantSettings, bool, error) {
	return nil, false, nil
}

func (NoopSettingsCache) Set(_ context.Context, _ domain.TenantSettings, _ time.Duration) error {
	return nil
}

func (NoopSettingsCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
