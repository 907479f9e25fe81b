package database

import (
	"context"

	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm/clause"
)

// Company setting keys.
const (
	CompanySettingName                = "company_name"
	CompanySettingContactEmail        = "contact_email"
	CompanySettingContactPhone        = "contact_phone"
	CompanySettingNotificationSubject = "notification_subject"
	CompanySettingNotificationBody    = "notification_body"
	CompanySettingFooterText          = "footer_text"
)

// CompanySettingKeys lists the keys admins can change.
var CompanySettingKeys = []string{
	CompanySettingName,
	CompanySettingContactEmail,
	CompanySettingContactPhone,
	CompanySettingNotificationSubject,
	CompanySettingNotificationBody,
	CompanySettingFooterText,
}

// CompanySetting persists a single installation-wide value.
type CompanySetting struct {
	Key       string `gorm:"primaryKey"`
	Value     string `gorm:"not null"`
	UpdatedAt time.Time
}

func (c *Client) GetCompanySettings(ctx context.Context) (map[string]string, error) {
	var settings []CompanySetting
	if err := c.db.WithContext(ctx).Find(&settings).Error; err != nil {
		log.Error("failed to get company settings", "error", err)
		return nil, err
	}
	values := make(map[string]string, len(settings))
	for _, s := range settings {
		values[s.Key] = s.Value
	}
	return values, nil
}

// SetCompanySettings upserts the given values.
func (c *Client) SetCompanySettings(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	settings := make([]CompanySetting, 0, len(values))
	for k, v := range values {
		settings = append(settings, CompanySetting{Key: k, Value: v, UpdatedAt: time.Now()})
	}
	err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&settings).Error
	if err != nil {
		log.Error("failed to save company settings", "error", err)
		return err
	}
	return nil
}
