package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posledger/backend/internal/domain"
)

func newTestCache(t *testing.T) (*RedisSettingsCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := NewRedisSettingsCache(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisSettingsCacheRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	_, hit, err := c.Get(ctx, "tenant-a")
	require.NoError(t, err)
	assert.False(t, hit)

	settings := domain.DefaultSettings("tenant-a")
	settings.TaxEnabled = true
	settings.TaxRate = decimal.RequireFromString("14")
	require.NoError(t, c.Set(ctx, settings, time.Minute))

	got, hit, err := c.Get(ctx, "tenant-a")
	require.NoError(t, err)
	require.True(t, hit)
	assert.True(t, got.TaxEnabled)
	assert.True(t, got.TaxRate.Equal(decimal.NewFromInt(14)))
}

func TestRedisSettingsCacheExpiresAndInvalidates(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, domain.DefaultSettings("tenant-b"), 30*time.Second))
	mr.FastForward(31 * time.Second)
	_, hit, err := c.Get(ctx, "tenant-b")
	require.NoError(t, err)
	assert.False(t, hit, "entry should expire with its ttl")

	require.NoError(t, c.Set(ctx, domain.DefaultSettings("tenant-b"), time.Minute))
	require.NoError(t, c.Invalidate(ctx, "tenant-b"))
	_, hit, err = c.Get(ctx, "tenant-b")
	require.NoError(t, err)
	assert.False(t, hit)
}
