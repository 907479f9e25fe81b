package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate is returned when a unique constraint is violated.
var ErrDuplicate = gorm.ErrDuplicatedKey

var _ DB = (*Client)(nil) // Ensure Client implements DB

// DB is the storage interface used by the services and handlers.
type DB interface {
	// Users
	CreateUser(ctx context.Context, user *User) error
	GetUserByID(ctx context.Context, id uint) (*User, error)
	GetUserByBusinessNumber(ctx context.Context, businessNumber string) (*User, error)
	ListUsers(ctx context.Context, filter UserFilter) ([]User, error)
	UpdateUser(ctx context.Context, user *User) error
	SetUserApproval(ctx context.Context, id uint, approved bool) error
	UpdateUserPassword(ctx context.Context, id uint, passwordHash string) error
	TouchLastLogin(ctx context.Context, id uint, at time.Time) error
	DeleteUser(ctx context.Context, id uint) error
	CountUsers(ctx context.Context) (*UserCounts, error)

	// Settlements
	ReplaceSettlementMonth(ctx context.Context, month string, rows []Settlement) (int64, error)
	ListSettlements(ctx context.Context, filter SettlementFilter) ([]Settlement, error)
	ListSettlementMonths(ctx context.Context, businessNumber string) ([]MonthSummary, error)
	DeleteSettlementMonth(ctx context.Context, month string) (int64, error)
	CountSettlements(ctx context.Context) (int64, error)
	CommissionTotals(ctx context.Context, month string) (map[string]float64, error)

	// Column settings
	EnsureDefaultColumnSettings(ctx context.Context) error
	ListColumnSettings(ctx context.Context) ([]ColumnSetting, error)
	UpdateColumnSetting(ctx context.Context, key string, update ColumnSettingUpdate) (*ColumnSetting, error)
	ReorderColumnSettings(ctx context.Context, keys []string) error

	// Company settings
	GetCompanySettings(ctx context.Context) (map[string]string, error)
	SetCompanySettings(ctx context.Context, values map[string]string) error

	// Email logs
	CreateEmailLog(ctx context.Context, entry *EmailLog) error
	ListEmailLogs(ctx context.Context, filter EmailLogFilter) ([]EmailLog, int64, error)
	PurgeEmailLogs(ctx context.Context, before time.Time) (int64, error)

	// Password reset tokens
	CreatePasswordResetToken(ctx context.Context, token *PasswordResetToken) error
	GetPasswordResetToken(ctx context.Context, token string) (*PasswordResetToken, error)
	RedeemPasswordResetToken(ctx context.Context, token *PasswordResetToken, passwordHash string, at time.Time) error
	PurgePasswordResetTokens(ctx context.Context, now time.Time) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// Client wraps the gorm.DB instance.
type Client struct {
	db *gorm.DB
}

// New creates a new database connection and performs migrations.
// Use ":memory:" for a throwaway in-memory database.
func New(dbpath string) (*Client, error) {
	if dbpath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbpath), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbpath), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	// sqlite allows a single writer, and every in-memory connection is a new database.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&User{},
		&Settlement{},
		&ColumnSetting{},
		&CompanySetting{},
		&EmailLog{},
		&PasswordResetToken{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	c := &Client{db: db}
	if err := c.EnsureDefaultColumnSettings(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to seed column settings: %w", err)
	}

	return c, nil
}

// Ping checks that the database is reachable.
func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
