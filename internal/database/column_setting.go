package database

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
)

// ColumnSetting controls how a settlement column is shown to CSO accounts.
type ColumnSetting struct {
	gorm.Model
	ColumnKey    string `gorm:"uniqueIndex;not null"`
	DisplayName  string `gorm:"not null"`
	IsVisible    bool
	DisplayOrder int
}

// ColumnSettingUpdate holds the optional fields of a column update.
type ColumnSettingUpdate struct {
	DisplayName *string
	IsVisible   *bool
}

// DefaultColumnNames are the display names seeded for each settlement column.
var DefaultColumnNames = map[string]string{
	FieldBusinessNumber:     "사업자번호",
	FieldCSOName:            "CSO명",
	FieldCustomerCode:       "거래처코드",
	FieldCustomerName:       "거래처명",
	FieldProductCode:        "제품코드",
	FieldProductName:        "제품명",
	FieldQuantity:           "수량",
	FieldUnitPrice:          "단가",
	FieldPrescriptionAmount: "처방금액",
	FieldCommissionRate:     "수수료율",
	FieldCommissionAmount:   "수수료",
	FieldNote:               "비고",
}

// hidden by default, mostly internal codes
var defaultHiddenColumns = map[string]bool{
	FieldCustomerCode: true,
	FieldProductCode:  true,
}

// EnsureDefaultColumnSettings creates a setting for every settlement column that has none yet.
// Existing settings are left untouched.
func (c *Client) EnsureDefaultColumnSettings(ctx context.Context) error {
	var existing []ColumnSetting
	if err := c.db.WithContext(ctx).Find(&existing).Error; err != nil {
		return err
	}
	have := make(map[string]bool, len(existing))
	for _, s := range existing {
		have[s.ColumnKey] = true
	}

	var missing []ColumnSetting
	for i, key := range SettlementFields {
		if have[key] {
			continue
		}
		missing = append(missing, ColumnSetting{
			ColumnKey:    key,
			DisplayName:  DefaultColumnNames[key],
			IsVisible:    !defaultHiddenColumns[key],
			DisplayOrder: len(existing) + i,
		})
	}
	if len(missing) == 0 {
		return nil
	}
	if err := c.db.WithContext(ctx).Create(&missing).Error; err != nil {
		log.Error("failed to seed column settings", "error", err)
		return err
	}
	log.Debug("seeded column settings", "count", len(missing))
	return nil
}

func (c *Client) ListColumnSettings(ctx context.Context) ([]ColumnSetting, error) {
	var settings []ColumnSetting
	if err := c.db.WithContext(ctx).Order("display_order ASC, id ASC").Find(&settings).Error; err != nil {
		log.Error("failed to list column settings", "error", err)
		return nil, err
	}
	return settings, nil
}

func (c *Client) UpdateColumnSetting(ctx context.Context, key string, update ColumnSettingUpdate) (*ColumnSetting, error) {
	var setting ColumnSetting
	if err := c.db.WithContext(ctx).Where("column_key = ?", key).First(&setting).Error; err != nil {
		return nil, err
	}

	values := map[string]any{}
	if update.DisplayName != nil {
		values["display_name"] = *update.DisplayName
	}
	if update.IsVisible != nil {
		values["is_visible"] = *update.IsVisible
	}
	if len(values) == 0 {
		return &setting, nil
	}

	if err := c.db.WithContext(ctx).Model(&setting).Updates(values).Error; err != nil {
		log.Error("failed to update column setting", "key", key, "error", err)
		return nil, err
	}
	return &setting, nil
}

// ReorderColumnSettings assigns display orders following keys. Every key must exist,
// columns missing from keys keep their relative order after the listed ones.
func (c *Client) ReorderColumnSettings(ctx context.Context, keys []string) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var settings []ColumnSetting
		if err := tx.Order("display_order ASC, id ASC").Find(&settings).Error; err != nil {
			return err
		}
		byKey := make(map[string]*ColumnSetting, len(settings))
		for i := range settings {
			byKey[settings[i].ColumnKey] = &settings[i]
		}

		seen := make(map[string]bool, len(keys))
		order := 0
		for _, key := range keys {
			s, ok := byKey[key]
			if !ok {
				return fmt.Errorf("unknown column %q: %w", key, ErrNotFound)
			}
			if seen[key] {
				return fmt.Errorf("column %q listed twice", key)
			}
			seen[key] = true
			if err := tx.Model(s).Update("display_order", order).Error; err != nil {
				return err
			}
			order++
		}
		for i := range settings {
			if seen[settings[i].ColumnKey] {
				continue
			}
			if err := tx.Model(&settings[i]).Update("display_order", order).Error; err != nil {
				return err
			}
			order++
		}
		return nil
	})
}
