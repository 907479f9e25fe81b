package database

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
)

// Email kinds.
const (
	EmailKindNotification  = "notification"
	EmailKindMailMerge     = "mail_merge"
	EmailKindPasswordReset = "password_reset"
	EmailKindRegistration  = "registration"
)

// Email delivery states.
const (
	EmailStatusSent    = "sent"
	EmailStatusFailed  = "failed"
	EmailStatusSkipped = "skipped"
)

// EmailLog records a single delivery attempt.
type EmailLog struct {
	ID              uint      `gorm:"primarykey"`
	CreatedAt       time.Time `gorm:"index"`
	Kind            string    `gorm:"index;not null"`
	Recipient       string
	BusinessNumber  string `gorm:"index"`
	Subject         string
	Status          string `gorm:"index;not null"`
	ErrorMessage    string
	SettlementMonth string
}

// EmailLogFilter narrows down ListEmailLogs.
type EmailLogFilter struct {
	Kind   string
	Status string
	Limit  int
	Offset int
}

func (c *Client) CreateEmailLog(ctx context.Context, entry *EmailLog) error {
	if err := c.db.WithContext(ctx).Create(entry).Error; err != nil {
		log.Error("failed to write email log", "recipient", entry.Recipient, "error", err)
		return err
	}
	return nil
}

// ListEmailLogs returns a page of logs, newest first, and the total count matching the filter.
func (c *Client) ListEmailLogs(ctx context.Context, filter EmailLogFilter) ([]EmailLog, int64, error) {
	query := c.db.WithContext(ctx).Model(&EmailLog{})
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var logs []EmailLog
	err := query.Order("created_at DESC, id DESC").Limit(limit).Offset(max(filter.Offset, 0)).Find(&logs).Error
	if err != nil {
		log.Error("failed to list email logs", "error", err)
		return nil, 0, err
	}
	return logs, total, nil
}

// PurgeEmailLogs deletes logs created before the given time.
func (c *Client) PurgeEmailLogs(ctx context.Context, before time.Time) (int64, error) {
	result := c.db.WithContext(ctx).Where("created_at < ?", before).Delete(&EmailLog{})
	if result.Error != nil {
		log.Error("failed to purge email logs", "error", result.Error)
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
