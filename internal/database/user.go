package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is a business account. CSO accounts are identified by their business number
// and can only log in after an admin approved them.
type User struct {
	gorm.Model
	BusinessNumber string `gorm:"uniqueIndex;not null"`
	PasswordHash   string `gorm:"not null"`
	CompanyName    string `gorm:"not null"`
	CEOName        string
	Email          string `gorm:"index"`
	Phone          string
	Role           Role `gorm:"not null;default:user"`
	IsApproved     bool `gorm:"default:false"`
	EmailOptIn     bool
	LastLoginAt    *time.Time
}

// IsAdmin reports whether the user has the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserFilter narrows down ListUsers.
type UserFilter struct {
	// Approved filters by approval state when set.
	Approved *bool
	// Role filters by role when set.
	Role Role
	// Search matches business number, company name or email.
	Search string
	// OnlyOptedIn limits the result to users that accept notification emails.
	OnlyOptedIn bool
}

// UserCounts summarizes the user table.
type UserCounts struct {
	Total    int64
	Approved int64
	Pending  int64
	Admins   int64
}

func (c *Client) CreateUser(ctx context.Context, user *User) error {
	if err := c.db.WithContext(ctx).Create(user).Error; err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			log.Error("failed to create user", "error", err)
		}
		return err
	}
	return nil
}

func (c *Client) GetUserByID(ctx context.Context, id uint) (*User, error) {
	var user User
	if err := c.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Error("failed to get user by ID", "error", err)
		}
		return nil, err
	}
	return &user, nil
}

func (c *Client) GetUserByBusinessNumber(ctx context.Context, businessNumber string) (*User, error) {
	var user User
	if err := c.db.WithContext(ctx).Where("business_number = ?", businessNumber).First(&user).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Error("failed to get user by business number", "error", err)
		}
		return nil, err
	}
	return &user, nil
}

func (c *Client) ListUsers(ctx context.Context, filter UserFilter) ([]User, error) {
	query := c.db.WithContext(ctx).Model(&User{})
	if filter.Approved != nil {
		query = query.Where("is_approved = ?", *filter.Approved)
	}
	if filter.Role != "" {
		query = query.Where("role = ?", filter.Role)
	}
	if filter.OnlyOptedIn {
		query = query.Where("email_opt_in = ?", true)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		like := "%" + s + "%"
		query = query.Where("business_number LIKE ? OR company_name LIKE ? OR email LIKE ?", like, like, like)
	}

	var users []User
	if err := query.Order("created_at DESC").Find(&users).Error; err != nil {
		log.Error("failed to list users", "error", err)
		return nil, err
	}
	return users, nil
}

func (c *Client) UpdateUser(ctx context.Context, user *User) error {
	result := c.db.WithContext(ctx).Model(user).Select(
		"company_name", "ceo_name", "email", "phone", "role", "is_approved", "email_opt_in",
	).Updates(user)
	if result.Error != nil {
		log.Error("failed to update user", "error", result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (c *Client) SetUserApproval(ctx context.Context, id uint, approved bool) error {
	return c.updateUserColumn(ctx, id, "is_approved", approved)
}

func (c *Client) UpdateUserPassword(ctx context.Context, id uint, passwordHash string) error {
	return c.updateUserColumn(ctx, id, "password_hash", passwordHash)
}

func (c *Client) TouchLastLogin(ctx context.Context, id uint, at time.Time) error {
	return c.updateUserColumn(ctx, id, "last_login_at", at)
}

func (c *Client) updateUserColumn(ctx context.Context, id uint, column string, value any) error {
	result := c.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Update(column, value)
	if result.Error != nil {
		log.Error("failed to update user", "column", column, "error", result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteUser removes a user together with its pending reset tokens.
// Settlement rows are kept, they belong to the business number and not the account.
func (c *Client) DeleteUser(ctx context.Context, id uint) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&PasswordResetToken{}).Error; err != nil {
			log.Error("failed to delete reset tokens", "error", err)
			return err
		}
		// Unscoped so the business number can register again.
		result := tx.Unscoped().Delete(&User{}, id)
		if result.Error != nil {
			log.Error("failed to delete user", "error", result.Error)
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (c *Client) CountUsers(ctx context.Context) (*UserCounts, error) {
	var counts UserCounts
	db := c.db.WithContext(ctx).Model(&User{})
	if err := db.Count(&counts.Total).Error; err != nil {
		return nil, err
	}
	if err := c.db.WithContext(ctx).Model(&User{}).Where("is_approved = ?", true).Count(&counts.Approved).Error; err != nil {
		return nil, err
	}
	if err := c.db.WithContext(ctx).Model(&User{}).Where("role = ?", RoleAdmin).Count(&counts.Admins).Error; err != nil {
		return nil, err
	}
	counts.Pending = counts.Total - counts.Approved
	return &counts, nil
}
