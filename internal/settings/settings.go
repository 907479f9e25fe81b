// Package settings manages column display settings and company settings behind a cache.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jon4hz/csoportal/internal/cache"
	"github.com/jon4hz/csoportal/internal/database"
	"github.com/samber/lo"
)

var (
	// ErrUnknownSetting is returned for company setting keys that are not supported.
	ErrUnknownSetting = errors.New("unknown company setting")
	// ErrInvalidDisplayName is returned for blank column names.
	ErrInvalidDisplayName = errors.New("display name must not be empty")
	// ErrInvalidColumnOrder is returned for orders with unknown or repeated columns.
	ErrInvalidColumnOrder = errors.New("invalid column order")
)

// Service reads and updates portal settings.
type Service struct {
	db    database.DB
	cache *cache.SettingsCache
}

// New creates a settings service.
func New(db database.DB, c *cache.SettingsCache) *Service {
	return &Service{db: db, cache: c}
}

// Columns returns all column settings in display order.
func (s *Service) Columns(ctx context.Context) ([]database.ColumnSetting, error) {
	return s.cache.ColumnSettings(ctx, s.db.ListColumnSettings)
}

// VisibleColumns returns the columns shown to CSO accounts in display order.
func (s *Service) VisibleColumns(ctx context.Context) ([]database.ColumnSetting, error) {
	columns, err := s.Columns(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Filter(columns, func(c database.ColumnSetting, _ int) bool {
		return c.IsVisible
	}), nil
}

// UpdateColumn changes the display name or visibility of a column.
func (s *Service) UpdateColumn(ctx context.Context, key string, update database.ColumnSettingUpdate) (*database.ColumnSetting, error) {
	if update.DisplayName != nil {
		name := strings.TrimSpace(*update.DisplayName)
		if name == "" {
			return nil, ErrInvalidDisplayName
		}
		update.DisplayName = &name
	}
	setting, err := s.db.UpdateColumnSetting(ctx, key, update)
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateColumns(ctx)
	return setting, nil
}

// ReorderColumns sets the display order to the order of keys.
func (s *Service) ReorderColumns(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return fmt.Errorf("%w: no columns given", ErrInvalidColumnOrder)
	}
	for i, k := range keys {
		if !database.IsSettlementField(k) {
			return fmt.Errorf("%w: unknown column %q", ErrInvalidColumnOrder, k)
		}
		if lo.Contains(keys[:i], k) {
			return fmt.Errorf("%w: column %q listed twice", ErrInvalidColumnOrder, k)
		}
	}
	if err := s.db.ReorderColumnSettings(ctx, keys); err != nil {
		return err
	}
	s.cache.InvalidateColumns(ctx)
	return nil
}

// Company returns every known company setting, unset keys are empty.
func (s *Service) Company(ctx context.Context) (map[string]string, error) {
	stored, err := s.cache.CompanySettings(ctx, s.db.GetCompanySettings)
	if err != nil {
		return nil, err
	}
	values := make(map[string]string, len(database.CompanySettingKeys))
	for _, k := range database.CompanySettingKeys {
		values[k] = stored[k]
	}
	return values, nil
}

// UpdateCompany stores the given company settings. Unknown keys are rejected.
func (s *Service) UpdateCompany(ctx context.Context, values map[string]string) (map[string]string, error) {
	for k := range values {
		if !lo.Contains(database.CompanySettingKeys, k) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSetting, k)
		}
	}
	trimmed := lo.MapValues(values, func(v string, _ string) string {
		return strings.TrimSpace(v)
	})
	if err := s.db.SetCompanySettings(ctx, trimmed); err != nil {
		return nil, err
	}
	s.cache.InvalidateCompany(ctx)
	return s.Company(ctx)
}
