package database

import (
	"context"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type DatabaseTestSuite struct {
	suite.Suite
	db  *Client
	ctx context.Context
}

func (s *DatabaseTestSuite) SetupTest() {
	db, err := New(":memory:")
	s.Require().NoError(err)
	s.db = db
	s.ctx = context.Background()
}

func (s *DatabaseTestSuite) TearDownTest() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *DatabaseTestSuite) createUser(bn string, approved bool) *User {
	u := &User{
		BusinessNumber: bn,
		PasswordHash:   "hash",
		CompanyName:    "Company " + bn,
		Email:          bn + "@example.com",
		IsApproved:     approved,
		EmailOptIn:     true,
		Role:           RoleUser,
	}
	s.Require().NoError(s.db.CreateUser(s.ctx, u))
	return u
}

func (s *DatabaseTestSuite) TestCreateUser_Duplicate() {
	s.createUser("1234567890", false)
	err := s.db.CreateUser(s.ctx, &User{BusinessNumber: "1234567890", PasswordHash: "x", CompanyName: "dup"})
	s.ErrorIs(err, ErrDuplicate)
}

func (s *DatabaseTestSuite) TestGetUser_NotFound() {
	_, err := s.db.GetUserByBusinessNumber(s.ctx, "0000000000")
	s.ErrorIs(err, ErrNotFound)

	_, err = s.db.GetUserByID(s.ctx, 42)
	s.ErrorIs(err, ErrNotFound)
}

func (s *DatabaseTestSuite) TestListUsers_Filters() {
	s.createUser("1111111111", true)
	s.createUser("2222222222", false)
	admin := s.createUser("3333333333", true)
	admin.Role = RoleAdmin
	s.Require().NoError(s.db.UpdateUser(s.ctx, admin))

	all, err := s.db.ListUsers(s.ctx, UserFilter{})
	s.Require().NoError(err)
	s.Len(all, 3)

	pending, err := s.db.ListUsers(s.ctx, UserFilter{Approved: lo.ToPtr(false)})
	s.Require().NoError(err)
	s.Len(pending, 1)
	s.Equal("2222222222", pending[0].BusinessNumber)

	admins, err := s.db.ListUsers(s.ctx, UserFilter{Role: RoleAdmin})
	s.Require().NoError(err)
	s.Len(admins, 1)

	found, err := s.db.ListUsers(s.ctx, UserFilter{Search: "2222"})
	s.Require().NoError(err)
	s.Len(found, 1)

	counts, err := s.db.CountUsers(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(3), counts.Total)
	s.Equal(int64(2), counts.Approved)
	s.Equal(int64(1), counts.Pending)
	s.Equal(int64(1), counts.Admins)
}

func (s *DatabaseTestSuite) TestUpdateUser_OptOut() {
	u := s.createUser("1111111111", true)
	u.EmailOptIn = false
	s.Require().NoError(s.db.UpdateUser(s.ctx, u))

	opted, err := s.db.ListUsers(s.ctx, UserFilter{OnlyOptedIn: true})
	s.Require().NoError(err)
	s.Empty(opted)
}

func (s *DatabaseTestSuite) TestApprovalAndPassword() {
	u := s.createUser("1111111111", false)
	s.Require().NoError(s.db.SetUserApproval(s.ctx, u.ID, true))
	s.Require().NoError(s.db.UpdateUserPassword(s.ctx, u.ID, "newhash"))
	now := time.Now().Truncate(time.Second)
	s.Require().NoError(s.db.TouchLastLogin(s.ctx, u.ID, now))

	got, err := s.db.GetUserByID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.True(got.IsApproved)
	s.Equal("newhash", got.PasswordHash)
	s.Require().NotNil(got.LastLoginAt)
	s.True(got.LastLoginAt.Equal(now))

	s.ErrorIs(s.db.SetUserApproval(s.ctx, 999, true), ErrNotFound)
}

func (s *DatabaseTestSuite) TestDeleteUser_AllowsReRegistration() {
	u := s.createUser("1111111111", true)
	s.Require().NoError(s.db.CreatePasswordResetToken(s.ctx, &PasswordResetToken{
		Token: "tok", UserID: u.ID, ExpiresAt: time.Now().Add(time.Hour),
	}))

	s.Require().NoError(s.db.DeleteUser(s.ctx, u.ID))
	_, err := s.db.GetPasswordResetToken(s.ctx, "tok")
	s.ErrorIs(err, ErrNotFound)

	s.createUser("1111111111", false)
	s.ErrorIs(s.db.DeleteUser(s.ctx, 999), ErrNotFound)
}

func settlementRows() []Settlement {
	return []Settlement{
		{BusinessNumber: "1111111111", CSOName: "A", CustomerName: "병원1", CommissionAmount: 100, SourceRow: 2},
		{BusinessNumber: "1111111111", CSOName: "A", CustomerName: "병원2", CommissionAmount: 50, SourceRow: 3},
		{BusinessNumber: "2222222222", CSOName: "B", CustomerName: "약국", CommissionAmount: 25.5, SourceRow: 4},
	}
}

func (s *DatabaseTestSuite) TestReplaceSettlementMonth_Idempotent() {
	removed, err := s.db.ReplaceSettlementMonth(s.ctx, "2025-01", settlementRows())
	s.Require().NoError(err)
	s.Zero(removed)

	removed, err = s.db.ReplaceSettlementMonth(s.ctx, "2025-01", settlementRows())
	s.Require().NoError(err)
	s.Equal(int64(3), removed)

	count, err := s.db.CountSettlements(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(3), count)
}

func (s *DatabaseTestSuite) TestReplaceSettlementMonth_OtherMonthsUntouched() {
	_, err := s.db.ReplaceSettlementMonth(s.ctx, "2025-01", settlementRows())
	s.Require().NoError(err)
	_, err = s.db.ReplaceSettlementMonth(s.ctx, "2025-02", settlementRows()[:1])
	s.Require().NoError(err)

	months, err := s.db.ListSettlementMonths(s.ctx, "")
	s.Require().NoError(err)
	s.Require().Len(months, 2)
	s.Equal("2025-02", months[0].Month)
	s.Equal(int64(1), months[0].Rows)
	s.Equal("2025-01", months[1].Month)
	s.Equal(int64(3), months[1].Rows)
	s.InDelta(175.5, months[1].CommissionAmount, 0.001)

	own, err := s.db.ListSettlementMonths(s.ctx, "2222222222")
	s.Require().NoError(err)
	s.Require().Len(own, 1)
	s.Equal("2025-01", own[0].Month)
}

func (s *DatabaseTestSuite) TestListSettlements_Filter() {
	_, err := s.db.ReplaceSettlementMonth(s.ctx, "2025-01", settlementRows())
	s.Require().NoError(err)

	rows, err := s.db.ListSettlements(s.ctx, SettlementFilter{Month: "2025-01", BusinessNumber: "1111111111"})
	s.Require().NoError(err)
	s.Require().Len(rows, 2)
	s.Equal("병원1", rows[0].CustomerName)
	s.Equal("병원2", rows[1].CustomerName)

	rows, err = s.db.ListSettlements(s.ctx, SettlementFilter{Search: "약국"})
	s.Require().NoError(err)
	s.Len(rows, 1)

	totals, err := s.db.CommissionTotals(s.ctx, "2025-01")
	s.Require().NoError(err)
	s.InDelta(150, totals["1111111111"], 0.001)
	s.InDelta(25.5, totals["2222222222"], 0.001)

	deleted, err := s.db.DeleteSettlementMonth(s.ctx, "2025-01")
	s.Require().NoError(err)
	s.Equal(int64(3), deleted)
}

func (s *DatabaseTestSuite) TestColumnSettings() {
	settings, err := s.db.ListColumnSettings(s.ctx)
	s.Require().NoError(err)
	s.Len(settings, len(SettlementFields))
	s.Equal(FieldBusinessNumber, settings[0].ColumnKey)
	s.Equal("사업자번호", settings[0].DisplayName)

	// seeding twice does not duplicate
	s.Require().NoError(s.db.EnsureDefaultColumnSettings(s.ctx))
	settings, err = s.db.ListColumnSettings(s.ctx)
	s.Require().NoError(err)
	s.Len(settings, len(SettlementFields))

	updated, err := s.db.UpdateColumnSetting(s.ctx, FieldNote, ColumnSettingUpdate{
		DisplayName: lo.ToPtr("메모"),
		IsVisible:   lo.ToPtr(false),
	})
	s.Require().NoError(err)
	s.Equal("메모", updated.DisplayName)
	s.False(updated.IsVisible)

	_, err = s.db.UpdateColumnSetting(s.ctx, "nope", ColumnSettingUpdate{})
	s.ErrorIs(err, ErrNotFound)
}

func (s *DatabaseTestSuite) TestReorderColumnSettings() {
	s.Require().NoError(s.db.ReorderColumnSettings(s.ctx, []string{FieldNote, FieldCommissionAmount}))

	settings, err := s.db.ListColumnSettings(s.ctx)
	s.Require().NoError(err)
	s.Equal(FieldNote, settings[0].ColumnKey)
	s.Equal(FieldCommissionAmount, settings[1].ColumnKey)
	s.Equal(FieldBusinessNumber, settings[2].ColumnKey)

	s.ErrorIs(s.db.ReorderColumnSettings(s.ctx, []string{"unknown"}), ErrNotFound)
	s.Error(s.db.ReorderColumnSettings(s.ctx, []string{FieldNote, FieldNote}))
}

func (s *DatabaseTestSuite) TestCompanySettings() {
	s.Require().NoError(s.db.SetCompanySettings(s.ctx, map[string]string{
		CompanySettingName:   "Pharma",
		CompanySettingFooterText: "footer",
	}))
	s.Require().NoError(s.db.SetCompanySettings(s.ctx, map[string]string{
		CompanySettingName: "Pharma Inc.",
	}))

	values, err := s.db.GetCompanySettings(s.ctx)
	s.Require().NoError(err)
	s.Equal("Pharma Inc.", values[CompanySettingName])
	s.Equal("footer", values[CompanySettingFooterText])
}

func (s *DatabaseTestSuite) TestEmailLogs() {
	old := &EmailLog{Kind: EmailKindMailMerge, Recipient: "a@example.com", Status: EmailStatusSent, CreatedAt: time.Now().AddDate(0, 0, -400)}
	s.Require().NoError(s.db.CreateEmailLog(s.ctx, old))
	s.Require().NoError(s.db.CreateEmailLog(s.ctx, &EmailLog{Kind: EmailKindMailMerge, Recipient: "b@example.com", Status: EmailStatusFailed, ErrorMessage: "boom"}))
	s.Require().NoError(s.db.CreateEmailLog(s.ctx, &EmailLog{Kind: EmailKindNotification, Recipient: "c@example.com", Status: EmailStatusSent}))

	logs, total, err := s.db.ListEmailLogs(s.ctx, EmailLogFilter{Kind: EmailKindMailMerge})
	s.Require().NoError(err)
	s.Equal(int64(2), total)
	s.Len(logs, 2)
	s.Equal("b@example.com", logs[0].Recipient)

	logs, total, err = s.db.ListEmailLogs(s.ctx, EmailLogFilter{Limit: 1, Offset: 1})
	s.Require().NoError(err)
	s.Equal(int64(3), total)
	s.Len(logs, 1)

	purged, err := s.db.PurgeEmailLogs(s.ctx, time.Now().AddDate(0, 0, -365))
	s.Require().NoError(err)
	s.Equal(int64(1), purged)
}

func (s *DatabaseTestSuite) TestPasswordResetTokens() {
	u := s.createUser("1111111111", true)
	now := time.Now()
	valid := &PasswordResetToken{Token: "valid", UserID: u.ID, ExpiresAt: now.Add(time.Hour)}
	expired := &PasswordResetToken{Token: "expired", UserID: u.ID, ExpiresAt: now.Add(-time.Minute)}
	s.Require().NoError(s.db.CreatePasswordResetToken(s.ctx, valid))
	s.Require().NoError(s.db.CreatePasswordResetToken(s.ctx, expired))

	got, err := s.db.GetPasswordResetToken(s.ctx, "valid")
	s.Require().NoError(err)
	s.True(got.Valid(now))

	s.Require().NoError(s.db.RedeemPasswordResetToken(s.ctx, got, "new-hash", now))
	s.ErrorIs(s.db.RedeemPasswordResetToken(s.ctx, got, "other-hash", now), ErrTokenUsed)

	user, err := s.db.GetUserByID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal("new-hash", user.PasswordHash)

	got, err = s.db.GetPasswordResetToken(s.ctx, "valid")
	s.Require().NoError(err)
	s.False(got.Valid(now))

	purged, err := s.db.PurgePasswordResetTokens(s.ctx, now)
	s.Require().NoError(err)
	s.Equal(int64(2), purged)
}

func (s *DatabaseTestSuite) TestRedeemPasswordResetToken_RollsBack() {
	now := time.Now()
	orphan := &PasswordResetToken{Token: "orphan", UserID: 4242, ExpiresAt: now.Add(time.Hour)}
	s.Require().NoError(s.db.CreatePasswordResetToken(s.ctx, orphan))

	s.ErrorIs(s.db.RedeemPasswordResetToken(s.ctx, orphan, "new-hash", now), ErrNotFound)

	got, err := s.db.GetPasswordResetToken(s.ctx, "orphan")
	s.Require().NoError(err)
	s.True(got.Valid(now))
}

func TestDatabaseTestSuite(t *testing.T) {
	suite.Run(t, new(DatabaseTestSuite))
}
