package cache

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/eko/gocache/lib/v4/store"
	"github.com/jon4hz/csoportal/internal/config"
	"github.com/jon4hz/csoportal/internal/database"
)

// Cache key prefixes.
const (
	ColumnSettingsCachePrefix  = "column-settings-"
	CompanySettingsCachePrefix = "company-settings-"
)

const allKey = "all"

// SettingsCache caches the rarely changing portal settings that every settlement view reads.
type SettingsCache struct {
	Columns *PrefixedCache[[]database.ColumnSetting]
	Company *PrefixedCache[map[string]string]
	ttl     time.Duration
}

// NewSettingsCache creates the settings caches for the configured backend.
func NewSettingsCache(cfg *config.CacheConfig) *SettingsCache {
	if cfg == nil {
		cfg = &config.CacheConfig{Type: config.CacheTypeMemory, TTL: 10 * time.Minute}
	}
	return &SettingsCache{
		Columns: NewPrefixedCache[[]database.ColumnSetting](
			newCacheInstanceByType(cfg),
			cfg.Type,
			ColumnSettingsCachePrefix,
		),
		Company: NewPrefixedCache[map[string]string](
			newCacheInstanceByType(cfg),
			cfg.Type,
			CompanySettingsCachePrefix,
		),
		ttl: cfg.TTL,
	}
}

// ColumnSettings returns the cached column settings, loading them on a miss.
func (s *SettingsCache) ColumnSettings(ctx context.Context, load func(context.Context) ([]database.ColumnSetting, error)) ([]database.ColumnSetting, error) {
	return getOrLoad(ctx, s.Columns, s.ttl, load)
}

// CompanySettings returns the cached company settings, loading them on a miss.
func (s *SettingsCache) CompanySettings(ctx context.Context, load func(context.Context) (map[string]string, error)) (map[string]string, error) {
	return getOrLoad(ctx, s.Company, s.ttl, load)
}

// InvalidateColumns drops the cached column settings.
func (s *SettingsCache) InvalidateColumns(ctx context.Context) {
	if err := s.Columns.Delete(ctx, allKey); err != nil {
		log.Warn("failed to invalidate column settings cache", "error", err)
	}
}

// InvalidateCompany drops the cached company settings.
func (s *SettingsCache) InvalidateCompany(ctx context.Context) {
	if err := s.Company.Delete(ctx, allKey); err != nil {
		log.Warn("failed to invalidate company settings cache", "error", err)
	}
}

// ClearAll empties every settings cache. With redis this flushes the whole database.
func (s *SettingsCache) ClearAll(ctx context.Context) {
	errs := []error{
		s.Columns.Clear(ctx),
		s.Company.Clear(ctx),
	}
	for _, err := range errs {
		if err != nil {
			log.Errorf("failed to clear cache: %v", err)
		}
	}
}

// Stats describes the hit and miss counters of one cache.
type Stats struct {
	CacheName string `json:"cacheName"`
	Hits      int    `json:"hits"`
	Misses    int    `json:"misses"`
}

// GetStats returns the statistics of every settings cache.
func (s *SettingsCache) GetStats() []Stats {
	columns, company := s.Columns.GetStats(), s.Company.GetStats()
	return []Stats{
		{CacheName: "column-settings", Hits: columns.Hits, Misses: columns.Miss},
		{CacheName: "company-settings", Hits: company.Hits, Misses: company.Miss},
	}
}

func getOrLoad[T any](ctx context.Context, c *PrefixedCache[T], ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	if v, err := c.Get(ctx, allKey); err == nil {
		return v, nil
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	if err := c.Set(ctx, allKey, v, store.WithExpiration(ttl)); err != nil {
		log.Warn("failed to cache settings", "prefix", c.prefix, "error", err)
	}
	return v, nil
}
