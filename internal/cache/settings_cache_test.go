package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jon4hz/csoportal/internal/config"
	"github.com/jon4hz/csoportal/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(ttl time.Duration) *SettingsCache {
	return NewSettingsCache(&config.CacheConfig{Type: config.CacheTypeMemory, TTL: ttl})
}

func TestSettingsCache_ColumnSettings(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(time.Minute)

	calls := 0
	load := func(context.Context) ([]database.ColumnSetting, error) {
		calls++
		return []database.ColumnSetting{{ColumnKey: database.FieldNote, DisplayName: "비고", IsVisible: true}}, nil
	}

	first, err := c.ColumnSettings(ctx, load)
	require.NoError(t, err)
	second, err := c.ColumnSettings(ctx, load)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first[0].DisplayName, second[0].DisplayName)

	c.InvalidateColumns(ctx)
	_, err = c.ColumnSettings(ctx, load)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	stats := c.GetStats()
	require.Len(t, stats, 2)
	assert.Equal(t, "column-settings", stats[0].CacheName)
	assert.Equal(t, 1, stats[0].Hits)
	assert.Equal(t, 2, stats[0].Misses)
}

func TestSettingsCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(20 * time.Millisecond)

	calls := 0
	load := func(context.Context) (map[string]string, error) {
		calls++
		return map[string]string{database.CompanySettingName: "Pharma"}, nil
	}

	_, err := c.CompanySettings(ctx, load)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	values, err := c.CompanySettings(ctx, load)
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	assert.Equal(t, "Pharma", values[database.CompanySettingName])
}

func TestSettingsCache_LoadError(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(time.Minute)
	boom := errors.New("boom")

	_, err := c.CompanySettings(ctx, func(context.Context) (map[string]string, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	// errors are not cached
	values, err := c.CompanySettings(ctx, func(context.Context) (map[string]string, error) {
		return map[string]string{"k": "v"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "v", values["k"])
}

func TestSettingsCache_ClearAll(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(time.Minute)
	calls := 0
	load := func(context.Context) (map[string]string, error) {
		calls++
		return map[string]string{}, nil
	}

	_, _ = c.CompanySettings(ctx, load)
	c.ClearAll(ctx)
	_, _ = c.CompanySettings(ctx, load)
	assert.Equal(t, 2, calls)
}

func TestNewSettingsCache_NilConfig(t *testing.T) {
	c := NewSettingsCache(nil)
	assert.Equal(t, config.CacheTypeMemory, c.Columns.GetType())
}
