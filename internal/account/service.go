// Package account handles registration, login and passwords of portal accounts.
package account

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/jon4hz/csoportal/internal/bizno"
	"github.com/jon4hz/csoportal/internal/database"
)

var (
	ErrDuplicateBusinessNumber = errors.New("business number is already registered")
	ErrInvalidCredentials      = errors.New("invalid business number or password")
	ErrNotApproved             = errors.New("account is not approved yet")
	ErrTokenExpired            = errors.New("reset token expired")
	ErrTokenInvalid            = errors.New("reset token is invalid or already used")
	ErrInvalidBusinessNumber   = errors.New("business number must have 10 digits")
	ErrUserNotFound            = errors.New("user not found")
)

// Mailer sends the account emails.
type Mailer interface {
	SendPasswordReset(ctx context.Context, user *database.User, link string, ttl time.Duration) error
	SendApproval(ctx context.Context, user *database.User) error
}

// RegistrationNotifier tells the admins about new registrations.
type RegistrationNotifier interface {
	SendRegistration(ctx context.Context, companyName, businessNumber, adminURL string) error
}

// Options configure the auth service.
type Options struct {
	ResetTTL  time.Duration
	PortalURL string
	Mailer    Mailer
	Notifier  RegistrationNotifier
}

// Service implements registration, login and password management.
type Service struct {
	db        database.DB
	tokens    *Tokens
	mailer    Mailer
	notifier  RegistrationNotifier
	resetTTL  time.Duration
	portalURL string
	now       func() time.Time
	compare   func(hash, password string) bool
}

func NewService(db database.DB, tokens *Tokens, opts Options) *Service {
	ttl := opts.ResetTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Service{
		db:        db,
		tokens:    tokens,
		mailer:    opts.Mailer,
		notifier:  opts.Notifier,
		resetTTL:  ttl,
		portalURL: strings.TrimRight(opts.PortalURL, "/"),
		now:       time.Now,
		compare:   CheckPassword,
	}
}

// Register creates an unapproved account. Admins are notified if a notifier is set.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*database.User, error) {
	in.BusinessNumber = bizno.Normalize(in.BusinessNumber)
	if err := in.Validate(); err != nil {
		return nil, err
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	if _, err := s.db.GetUserByBusinessNumber(ctx, in.BusinessNumber); err == nil {
		return nil, ErrDuplicateBusinessNumber
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	user := &database.User{
		BusinessNumber: in.BusinessNumber,
		PasswordHash:   hash,
		CompanyName:    in.CompanyName,
		CEOName:        in.CEOName,
		Email:          in.Email,
		Phone:          in.Phone,
		Role:           database.RoleUser,
		IsApproved:     false,
		EmailOptIn:     true,
	}
	if err := s.db.CreateUser(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrDuplicateBusinessNumber
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	log.Info("new registration", "business_number", user.BusinessNumber, "company", user.CompanyName)

	if s.notifier != nil {
		err := s.notifier.SendRegistration(context.WithoutCancel(ctx), user.CompanyName, bizno.Format(user.BusinessNumber), s.portalURL+"/admin/users")
		if err != nil {
			log.Warn("failed to notify admins about registration", "error", err)
		}
	}
	return user, nil
}

// LoginResult is a successful login.
type LoginResult struct {
	User      *database.User
	Token     string
	ExpiresAt time.Time
}

// Login checks the credentials and issues an access token. Unknown accounts and wrong
// passwords both yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	user, err := s.db.GetUserByBusinessNumber(ctx, bizno.Normalize(in.BusinessNumber))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			// same bcrypt work as for a known account
			s.compare(dummyHash(), in.Password)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !s.compare(user.PasswordHash, in.Password) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsApproved {
		return nil, ErrNotApproved
	}

	now := s.now()
	if err := s.db.TouchLastLogin(ctx, user.ID, now); err != nil {
		log.Warn("failed to update last login", "user_id", user.ID, "error", err)
	} else {
		user.LastLoginAt = &now
	}

	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// Authenticate resolves a bearer token to an approved user.
func (s *Service) Authenticate(ctx context.Context, token string) (*database.User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	user, err := s.db.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !user.IsApproved {
		return nil, ErrNotApproved
	}
	return user, nil
}

// ChangePassword sets a new password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID uint, in ChangePasswordInput) error {
	if err := in.Validate(); err != nil {
		return err
	}
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if !s.compare(user.PasswordHash, in.CurrentPassword) {
		return ErrInvalidCredentials
	}
	return s.setPassword(ctx, user.ID, in.NewPassword)
}

// SetPassword overwrites the password of a user. Used by admins.
func (s *Service) SetPassword(ctx context.Context, userID uint, password string) error {
	if _, err := s.getUser(ctx, userID); err != nil {
		return err
	}
	return s.setPassword(ctx, userID, password)
}

func (s *Service) setPassword(ctx context.Context, userID uint, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	return s.db.UpdateUserPassword(ctx, userID, hash)
}

// RequestPasswordReset emails a reset link if business number and email belong to the
// same account. It returns nil otherwise so the caller cannot enumerate accounts.
func (s *Service) RequestPasswordReset(ctx context.Context, in ResetRequestInput) error {
	in.BusinessNumber = bizno.Normalize(in.BusinessNumber)
	if err := in.Validate(); err != nil {
		return err
	}

	user, err := s.db.GetUserByBusinessNumber(ctx, in.BusinessNumber)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			log.Debug("password reset for unknown business number", "business_number", in.BusinessNumber)
			return nil
		}
		return err
	}
	if !strings.EqualFold(strings.TrimSpace(user.Email), in.Email) {
		log.Debug("password reset with mismatching email", "user_id", user.ID)
		return nil
	}

	token := &database.PasswordResetToken{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: s.now().Add(s.resetTTL),
	}
	if err := s.db.CreatePasswordResetToken(ctx, token); err != nil {
		return fmt.Errorf("failed to create reset token: %w", err)
	}

	if s.mailer == nil {
		log.Warn("no mailer configured, password reset link not sent", "user_id", user.ID)
		return nil
	}
	if err := s.mailer.SendPasswordReset(ctx, user, s.resetLink(token.Token), s.resetTTL); err != nil {
		log.Error("failed to send password reset email", "user_id", user.ID, "error", err)
	}
	return nil
}

func (s *Service) resetLink(token string) string {
	return s.portalURL + "/reset-password?token=" + url.QueryEscape(token)
}

// ConfirmPasswordReset redeems a reset token and sets the new password.
func (s *Service) ConfirmPasswordReset(ctx context.Context, in ResetConfirmInput) error {
	if err := in.Validate(); err != nil {
		return err
	}

	token, err := s.db.GetPasswordResetToken(ctx, in.Token)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrTokenInvalid
		}
		return err
	}
	now := s.now()
	if token.UsedAt != nil {
		return ErrTokenInvalid
	}
	if !token.Valid(now) {
		return ErrTokenExpired
	}

	hash, err := HashPassword(in.NewPassword)
	if err != nil {
		return err
	}
	if err := s.db.RedeemPasswordResetToken(ctx, token, hash, now); err != nil {
		switch {
		case errors.Is(err, database.ErrTokenUsed):
			return ErrTokenInvalid
		case errors.Is(err, database.ErrNotFound):
			return ErrUserNotFound
		}
		return err
	}
	log.Info("password reset completed", "user_id", token.UserID)
	return nil
}

// UpdateProfile changes the contact details of the account itself.
func (s *Service) UpdateProfile(ctx context.Context, userID uint, in ProfileInput) (*database.User, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	applyProfile(user, in)
	if err := s.db.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateUser is an admin edit of an account including its role.
func (s *Service) UpdateUser(ctx context.Context, userID uint, in AdminUpdateInput) (*database.User, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	applyProfile(user, in.ProfileInput)
	user.Role = database.Role(in.Role)
	if err := s.db.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func applyProfile(user *database.User, in ProfileInput) {
	user.CompanyName = in.CompanyName
	user.CEOName = in.CEOName
	user.Email = in.Email
	user.Phone = in.Phone
	user.EmailOptIn = in.EmailOptIn
}

// DeleteUser removes an account.
func (s *Service) DeleteUser(ctx context.Context, userID uint) error {
	if err := s.db.DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	log.Info("deleted user", "user_id", userID)
	return nil
}

// SetApproval approves or revokes an account. Newly approved users get an email.
func (s *Service) SetApproval(ctx context.Context, userID uint, approved bool) (*database.User, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	wasApproved := user.IsApproved
	if err := s.db.SetUserApproval(ctx, userID, approved); err != nil {
		return nil, err
	}
	user.IsApproved = approved

	if approved && !wasApproved && s.mailer != nil {
		if err := s.mailer.SendApproval(ctx, user); err != nil {
			log.Error("failed to send approval email", "user_id", user.ID, "error", err)
		}
	}
	return user, nil
}

// EnsureAdmin creates an approved admin account or promotes an existing one.
// It reports whether a new account was created.
func (s *Service) EnsureAdmin(ctx context.Context, businessNumber, password, companyName, email string) (*database.User, bool, error) {
	businessNumber = bizno.Normalize(businessNumber)
	if !bizno.Valid(businessNumber) {
		return nil, false, ErrInvalidBusinessNumber
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, false, err
	}

	user, err := s.db.GetUserByBusinessNumber(ctx, businessNumber)
	switch {
	case errors.Is(err, database.ErrNotFound):
		user = &database.User{
			BusinessNumber: businessNumber,
			PasswordHash:   hash,
			CompanyName:    strings.TrimSpace(companyName),
			Email:          strings.TrimSpace(email),
			Role:           database.RoleAdmin,
			IsApproved:     true,
		}
		if user.CompanyName == "" {
			user.CompanyName = "관리자"
		}
		if err := s.db.CreateUser(ctx, user); err != nil {
			return nil, false, fmt.Errorf("failed to create admin: %w", err)
		}
		return user, true, nil
	case err != nil:
		return nil, false, err
	}

	user.Role = database.RoleAdmin
	user.IsApproved = true
	if name := strings.TrimSpace(companyName); name != "" {
		user.CompanyName = name
	}
	if e := strings.TrimSpace(email); e != "" {
		user.Email = e
	}
	if err := s.db.UpdateUser(ctx, user); err != nil {
		return nil, false, fmt.Errorf("failed to promote admin: %w", err)
	}
	if err := s.db.UpdateUserPassword(ctx, user.ID, hash); err != nil {
		return nil, false, err
	}
	user.PasswordHash = hash
	return user, false, nil
}

func (s *Service) getUser(ctx context.Context, id uint) (*database.User, error) {
	user, err := s.db.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
