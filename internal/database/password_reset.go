package database

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
)

// ErrTokenUsed is returned when a reset token was already redeemed.
var ErrTokenUsed = errors.New("reset token already used")

// PasswordResetToken is a single use token sent by email to reset a password.
type PasswordResetToken struct {
	ID        uint   `gorm:"primarykey"`
	Token     string `gorm:"uniqueIndex;not null"`
	UserID    uint   `gorm:"index;not null"`
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Valid reports whether the token can still be redeemed at now.
func (t *PasswordResetToken) Valid(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}

func (c *Client) CreatePasswordResetToken(ctx context.Context, token *PasswordResetToken) error {
	if err := c.db.WithContext(ctx).Create(token).Error; err != nil {
		log.Error("failed to create reset token", "error", err)
		return err
	}
	return nil
}

func (c *Client) GetPasswordResetToken(ctx context.Context, token string) (*PasswordResetToken, error) {
	var t PasswordResetToken
	if err := c.db.WithContext(ctx).Where("token = ?", token).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// RedeemPasswordResetToken consumes the token and sets the password of its user in a
// single transaction. It fails with ErrTokenUsed when the token was already used, so two
// concurrent redemptions cannot both succeed, and with ErrNotFound when the user is gone.
// On failure the token stays redeemable.
func (c *Client) RedeemPasswordResetToken(ctx context.Context, token *PasswordResetToken, passwordHash string, at time.Time) error {
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&PasswordResetToken{}).
			Where("id = ? AND used_at IS NULL", token.ID).
			Update("used_at", at)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrTokenUsed
		}

		result = tx.Model(&User{}).Where("id = ?", token.UserID).Update("password_hash", passwordHash)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil && !errors.Is(err, ErrTokenUsed) && !errors.Is(err, ErrNotFound) {
		log.Error("failed to redeem reset token", "user_id", token.UserID, "error", err)
	}
	return err
}

// PurgePasswordResetTokens deletes expired or used tokens.
func (c *Client) PurgePasswordResetTokens(ctx context.Context, now time.Time) (int64, error) {
	result := c.db.WithContext(ctx).
		Where("expires_at < ? OR used_at IS NOT NULL", now).
		Delete(&PasswordResetToken{})
	if result.Error != nil {
		log.Error("failed to purge reset tokens", "error", result.Error)
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
