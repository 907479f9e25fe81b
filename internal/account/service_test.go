package account

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jon4hz/csoportal/internal/config"
	"github.com/jon4hz/csoportal/internal/database"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
)

type fakeMailer struct {
	resets    []string
	approvals []string
}

func (m *fakeMailer) SendPasswordReset(_ context.Context, user *database.User, link string, _ time.Duration) error {
	m.resets = append(m.resets, link)
	return nil
}

func (m *fakeMailer) SendApproval(_ context.Context, user *database.User) error {
	m.approvals = append(m.approvals, user.BusinessNumber)
	return nil
}

type fakeNotifier struct {
	registrations []string
}

func (n *fakeNotifier) SendRegistration(_ context.Context, _, businessNumber, _ string) error {
	n.registrations = append(n.registrations, businessNumber)
	return nil
}

type ServiceTestSuite struct {
	suite.Suite
	db       *database.Client
	service  *Service
	mailer   *fakeMailer
	notifier *fakeNotifier
	ctx      context.Context
}

func (s *ServiceTestSuite) SetupTest() {
	db, err := database.New(":memory:")
	s.Require().NoError(err)
	s.db = db
	s.mailer = &fakeMailer{}
	s.notifier = &fakeNotifier{}
	s.ctx = context.Background()
	s.service = NewService(db, NewTokens(&config.JWTConfig{Secret: "0123456789abcdef0123"}), Options{
		ResetTTL:  time.Hour,
		PortalURL: "https://portal.example.com/",
		Mailer:    s.mailer,
		Notifier:  s.notifier,
	})
}

func (s *ServiceTestSuite) TearDownTest() {
	s.Require().NoError(s.db.Close())
}

func TestServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}

func (s *ServiceTestSuite) register(businessNumber string) *database.User {
	user, err := s.service.Register(s.ctx, RegisterInput{
		BusinessNumber: businessNumber,
		Password:       "secret1",
		CompanyName:    "메디팜",
		Email:          "cso@example.com",
	})
	s.Require().NoError(err)
	return user
}

func (s *ServiceTestSuite) approve(user *database.User) {
	_, err := s.service.SetApproval(s.ctx, user.ID, true)
	s.Require().NoError(err)
}

func (s *ServiceTestSuite) TestRegister() {
	user := s.register("123-45-67890")

	s.Equal("1234567890", user.BusinessNumber)
	s.False(user.IsApproved)
	s.True(user.EmailOptIn)
	s.Equal(database.RoleUser, user.Role)
	s.NotEqual("secret1", user.PasswordHash)
	s.Equal([]string{"123-45-67890"}, s.notifier.registrations)
}

func (s *ServiceTestSuite) TestRegister_Duplicate() {
	s.register("1234567890")

	_, err := s.service.Register(s.ctx, RegisterInput{
		BusinessNumber: "123-45-67890",
		Password:       "secret1",
		CompanyName:    "다른회사",
		Email:          "other@example.com",
	})
	s.ErrorIs(err, ErrDuplicateBusinessNumber)
}

func (s *ServiceTestSuite) TestRegister_Validation() {
	tests := []struct {
		name  string
		input RegisterInput
	}{
		{"short password", RegisterInput{BusinessNumber: "1234567890", Password: "12345", CompanyName: "a", Email: "a@example.com"}},
		{"bad business number", RegisterInput{BusinessNumber: "12345", Password: "secret1", CompanyName: "a", Email: "a@example.com"}},
		{"missing company", RegisterInput{BusinessNumber: "1234567890", Password: "secret1", CompanyName: "  ", Email: "a@example.com"}},
		{"bad email", RegisterInput{BusinessNumber: "1234567890", Password: "secret1", CompanyName: "a", Email: "nope"}},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.service.Register(s.ctx, tt.input)
			s.ErrorIs(err, ErrValidation)
		})
	}
}

func (s *ServiceTestSuite) TestLogin() {
	user := s.register("1234567890")

	_, err := s.service.Login(s.ctx, LoginInput{BusinessNumber: "1234567890", Password: "secret1"})
	s.ErrorIs(err, ErrNotApproved)

	s.approve(user)

	result, err := s.service.Login(s.ctx, LoginInput{BusinessNumber: "123-45-67890", Password: "secret1"})
	s.Require().NoError(err)
	s.NotEmpty(result.Token)
	s.NotNil(result.User.LastLoginAt)

	authed, err := s.service.Authenticate(s.ctx, result.Token)
	s.Require().NoError(err)
	s.Equal(user.ID, authed.ID)

	stored, err := s.db.GetUserByID(s.ctx, user.ID)
	s.Require().NoError(err)
	s.NotNil(stored.LastLoginAt)
}

func (s *ServiceTestSuite) TestLogin_GenericFailure() {
	user := s.register("1234567890")
	s.approve(user)

	_, err := s.service.Login(s.ctx, LoginInput{BusinessNumber: "1234567890", Password: "wrong-password"})
	s.ErrorIs(err, ErrInvalidCredentials)

	_, err = s.service.Login(s.ctx, LoginInput{BusinessNumber: "9999999999", Password: "secret1"})
	s.ErrorIs(err, ErrInvalidCredentials)
}

func (s *ServiceTestSuite) TestLogin_UnknownAccountComparesHash() {
	var hashes []string
	s.service.compare = func(hash, password string) bool {
		hashes = append(hashes, hash)
		return CheckPassword(hash, password)
	}

	_, err := s.service.Login(s.ctx, LoginInput{BusinessNumber: "9999999999", Password: "secret1"})
	s.ErrorIs(err, ErrInvalidCredentials)
	s.Require().Len(hashes, 1)
	s.Equal(dummyHash(), hashes[0])

	cost, err := bcrypt.Cost([]byte(hashes[0]))
	s.Require().NoError(err)
	s.Equal(bcrypt.DefaultCost, cost)
}

func (s *ServiceTestSuite) TestAuthenticate_RevokedUser() {
	user := s.register("1234567890")
	s.approve(user)

	result, err := s.service.Login(s.ctx, LoginInput{BusinessNumber: "1234567890", Password: "secret1"})
	s.Require().NoError(err)

	_, err = s.service.SetApproval(s.ctx, user.ID, false)
	s.Require().NoError(err)

	_, err = s.service.Authenticate(s.ctx, result.Token)
	s.ErrorIs(err, ErrNotApproved)
}

func (s *ServiceTestSuite) TestSetApproval_SendsMailOnce() {
	user := s.register("1234567890")

	s.approve(user)
	s.approve(user)

	s.Equal([]string{"1234567890"}, s.mailer.approvals)
}

func (s *ServiceTestSuite) TestChangePassword() {
	user := s.register("1234567890")
	s.approve(user)

	err := s.service.ChangePassword(s.ctx, user.ID, ChangePasswordInput{CurrentPassword: "wrong", NewPassword: "newsecret"})
	s.ErrorIs(err, ErrInvalidCredentials)

	err = s.service.ChangePassword(s.ctx, user.ID, ChangePasswordInput{CurrentPassword: "secret1", NewPassword: "short"})
	s.ErrorIs(err, ErrValidation)

	err = s.service.ChangePassword(s.ctx, user.ID, ChangePasswordInput{CurrentPassword: "secret1", NewPassword: "newsecret"})
	s.Require().NoError(err)

	_, err = s.service.Login(s.ctx, LoginInput{BusinessNumber: "1234567890", Password: "newsecret"})
	s.NoError(err)
}

func (s *ServiceTestSuite) resetToken() string {
	s.Require().Len(s.mailer.resets, 1)
	link, err := url.Parse(s.mailer.resets[0])
	s.Require().NoError(err)
	s.True(strings.HasPrefix(s.mailer.resets[0], "https://portal.example.com/reset-password?"))
	return link.Query().Get("token")
}

func (s *ServiceTestSuite) TestPasswordReset() {
	user := s.register("1234567890")
	s.approve(user)

	err := s.service.RequestPasswordReset(s.ctx, ResetRequestInput{BusinessNumber: "1234567890", Email: "CSO@example.com"})
	s.Require().NoError(err)
	token := s.resetToken()

	err = s.service.ConfirmPasswordReset(s.ctx, ResetConfirmInput{Token: token, NewPassword: "brandnew"})
	s.Require().NoError(err)

	_, err = s.service.Login(s.ctx, LoginInput{BusinessNumber: "1234567890", Password: "brandnew"})
	s.NoError(err)

	// single use
	err = s.service.ConfirmPasswordReset(s.ctx, ResetConfirmInput{Token: token, NewPassword: "another1"})
	s.ErrorIs(err, ErrTokenInvalid)
}

func (s *ServiceTestSuite) TestPasswordReset_Expired() {
	s.register("1234567890")

	s.Require().NoError(s.service.RequestPasswordReset(s.ctx, ResetRequestInput{BusinessNumber: "1234567890", Email: "cso@example.com"}))
	token := s.resetToken()

	s.service.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	err := s.service.ConfirmPasswordReset(s.ctx, ResetConfirmInput{Token: token, NewPassword: "brandnew"})
	s.ErrorIs(err, ErrTokenExpired)
}

func (s *ServiceTestSuite) TestPasswordReset_DoesNotLeakAccounts() {
	s.register("1234567890")

	err := s.service.RequestPasswordReset(s.ctx, ResetRequestInput{BusinessNumber: "9999999999", Email: "cso@example.com"})
	s.NoError(err)
	err = s.service.RequestPasswordReset(s.ctx, ResetRequestInput{BusinessNumber: "1234567890", Email: "other@example.com"})
	s.NoError(err)

	s.Empty(s.mailer.resets)
}

func (s *ServiceTestSuite) TestPasswordReset_KeepsTokenOnFailure() {
	now := time.Now()
	orphan := &database.PasswordResetToken{Token: "orphan", UserID: 4242, ExpiresAt: now.Add(time.Hour)}
	s.Require().NoError(s.db.CreatePasswordResetToken(s.ctx, orphan))

	err := s.service.ConfirmPasswordReset(s.ctx, ResetConfirmInput{Token: "orphan", NewPassword: "brandnew"})
	s.ErrorIs(err, ErrUserNotFound)

	stored, err := s.db.GetPasswordResetToken(s.ctx, "orphan")
	s.Require().NoError(err)
	s.Nil(stored.UsedAt)
}

func (s *ServiceTestSuite) TestPasswordReset_UnknownToken() {
	err := s.service.ConfirmPasswordReset(s.ctx, ResetConfirmInput{Token: "does-not-exist", NewPassword: "brandnew"})
	s.ErrorIs(err, ErrTokenInvalid)
}

func (s *ServiceTestSuite) TestEnsureAdmin() {
	admin, created, err := s.service.EnsureAdmin(s.ctx, "000-00-00001", "adminpass", "", "admin@example.com")
	s.Require().NoError(err)
	s.True(created)
	s.True(admin.IsAdmin())
	s.True(admin.IsApproved)
	s.Equal("관리자", admin.CompanyName)

	_, err = s.service.Login(s.ctx, LoginInput{BusinessNumber: "0000000001", Password: "adminpass"})
	s.NoError(err)
}

func (s *ServiceTestSuite) TestEnsureAdmin_PromotesExisting() {
	user := s.register("1234567890")

	admin, created, err := s.service.EnsureAdmin(s.ctx, "1234567890", "adminpass", "", "")
	s.Require().NoError(err)
	s.False(created)
	s.Equal(user.ID, admin.ID)
	s.Equal("메디팜", admin.CompanyName)

	stored, err := s.db.GetUserByID(s.ctx, user.ID)
	s.Require().NoError(err)
	s.True(stored.IsAdmin())
	s.True(stored.IsApproved)
	s.True(CheckPassword(stored.PasswordHash, "adminpass"))
}

func (s *ServiceTestSuite) TestEnsureAdmin_InvalidBusinessNumber() {
	_, _, err := s.service.EnsureAdmin(s.ctx, "123", "adminpass", "", "")
	s.ErrorIs(err, ErrInvalidBusinessNumber)
}

func (s *ServiceTestSuite) TestUpdateProfile() {
	user := s.register("1234567890")

	updated, err := s.service.UpdateProfile(s.ctx, user.ID, ProfileInput{
		CompanyName: " 메디팜 주식회사 ",
		Email:       "new@example.com",
		EmailOptIn:  false,
	})
	s.Require().NoError(err)
	s.Equal("메디팜 주식회사", updated.CompanyName)

	stored, err := s.db.GetUserByID(s.ctx, user.ID)
	s.Require().NoError(err)
	s.Equal("new@example.com", stored.Email)
	s.False(stored.EmailOptIn)
	s.Equal(database.RoleUser, stored.Role)

	_, err = s.service.UpdateProfile(s.ctx, user.ID, ProfileInput{CompanyName: "x", Email: "broken"})
	s.ErrorIs(err, ErrValidation)
}

func (s *ServiceTestSuite) TestUpdateUser_Role() {
	user := s.register("1234567890")

	_, err := s.service.UpdateUser(s.ctx, user.ID, AdminUpdateInput{
		ProfileInput: ProfileInput{CompanyName: "메디팜", Email: "cso@example.com", EmailOptIn: true},
		Role:         "superuser",
	})
	s.ErrorIs(err, ErrValidation)

	updated, err := s.service.UpdateUser(s.ctx, user.ID, AdminUpdateInput{
		ProfileInput: ProfileInput{CompanyName: "메디팜", Email: "cso@example.com", EmailOptIn: true},
		Role:         "admin",
	})
	s.Require().NoError(err)
	s.True(updated.IsAdmin())
}

func (s *ServiceTestSuite) TestDeleteUser() {
	user := s.register("1234567890")
	s.Require().NoError(s.service.DeleteUser(s.ctx, user.ID))
	s.ErrorIs(s.service.DeleteUser(s.ctx, user.ID), ErrUserNotFound)

	// the business number can register again
	s.register("1234567890")
}
