package account

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jon4hz/csoportal/internal/bizno"
)

// ErrValidation wraps all input validation failures.
var ErrValidation = errors.New("validation failed")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("bizno", func(fl validator.FieldLevel) bool {
		return bizno.Valid(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("failed to register bizno validator: %v", err))
	}
	// bcrypt limits the byte length, max counts runes
	if err := v.RegisterValidation("pwbytes", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= MaxPasswordBytes
	}); err != nil {
		panic(fmt.Sprintf("failed to register pwbytes validator: %v", err))
	}
	return v
}

// fieldMessages are the user facing messages per field and tag.
var fieldMessages = map[string]string{
	"BusinessNumber.required": "사업자번호를 입력해 주세요.",
	"BusinessNumber.bizno":    "사업자번호는 숫자 10자리여야 합니다.",
	"Password.required":       "비밀번호를 입력해 주세요.",
	"Password.min":            "비밀번호는 6자 이상이어야 합니다.",
	"Password.pwbytes":        "비밀번호가 너무 깁니다.",
	"NewPassword.required":    "새 비밀번호를 입력해 주세요.",
	"NewPassword.min":         "비밀번호는 6자 이상이어야 합니다.",
	"NewPassword.pwbytes":     "비밀번호가 너무 깁니다.",
	"CompanyName.required":    "업체명을 입력해 주세요.",
	"Email.required":          "이메일을 입력해 주세요.",
	"Email.email":             "올바른 이메일 주소를 입력해 주세요.",
	"Token.required":          "재설정 토큰이 없습니다.",
	"Role.oneof":              "역할은 user 또는 admin 이어야 합니다.",
}

// validateStruct validates s and joins the failures into one ErrValidation.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("validation error: %w", err)
	}
	messages := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		key := fieldErr.StructField() + "." + fieldErr.Tag()
		if msg, ok := fieldMessages[key]; ok {
			messages = append(messages, msg)
			continue
		}
		messages = append(messages, fmt.Sprintf("Field: %s, Tag: %s", fieldErr.Field(), fieldErr.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(messages, " "))
}

// RegisterInput is a self registration of a CSO account.
type RegisterInput struct {
	BusinessNumber string `json:"businessNumber" validate:"required,bizno"`
	Password       string `json:"password" validate:"required,min=6,pwbytes"`
	CompanyName    string `json:"companyName" validate:"required,max=200"`
	CEOName        string `json:"ceoName" validate:"max=100"`
	Email          string `json:"email" validate:"required,email"`
	Phone          string `json:"phone" validate:"max=50"`
}

// Validate trims the input and checks it.
func (in *RegisterInput) Validate() error {
	in.BusinessNumber = strings.TrimSpace(in.BusinessNumber)
	in.CompanyName = strings.TrimSpace(in.CompanyName)
	in.CEOName = strings.TrimSpace(in.CEOName)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	return validateStruct(in)
}

// LoginInput are the credentials of a password login.
type LoginInput struct {
	BusinessNumber string `json:"businessNumber" validate:"required"`
	Password       string `json:"password" validate:"required"`
}

func (in *LoginInput) Validate() error {
	in.BusinessNumber = strings.TrimSpace(in.BusinessNumber)
	return validateStruct(in)
}

// ChangePasswordInput changes the password of the logged in user.
type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6,pwbytes"`
}

func (in *ChangePasswordInput) Validate() error {
	return validateStruct(in)
}

// ResetRequestInput asks for a password reset email.
type ResetRequestInput struct {
	BusinessNumber string `json:"businessNumber" validate:"required,bizno"`
	Email          string `json:"email" validate:"required,email"`
}

func (in *ResetRequestInput) Validate() error {
	in.BusinessNumber = strings.TrimSpace(in.BusinessNumber)
	in.Email = strings.TrimSpace(in.Email)
	return validateStruct(in)
}

// ResetConfirmInput sets a new password with a reset token.
type ResetConfirmInput struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6,pwbytes"`
}

func (in *ResetConfirmInput) Validate() error {
	in.Token = strings.TrimSpace(in.Token)
	return validateStruct(in)
}

// ProfileInput updates the contact details of an account.
type ProfileInput struct {
	CompanyName string `json:"companyName" validate:"required,max=200"`
	CEOName     string `json:"ceoName" validate:"max=100"`
	Email       string `json:"email" validate:"required,email"`
	Phone       string `json:"phone" validate:"max=50"`
	EmailOptIn  bool   `json:"emailOptIn"`
}

func (in *ProfileInput) Validate() error {
	in.CompanyName = strings.TrimSpace(in.CompanyName)
	in.CEOName = strings.TrimSpace(in.CEOName)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	return validateStruct(in)
}

// AdminUpdateInput is an admin edit of an account.
type AdminUpdateInput struct {
	ProfileInput
	Role string `json:"role" validate:"required,oneof=user admin"`
}

func (in *AdminUpdateInput) Validate() error {
	in.CompanyName = strings.TrimSpace(in.CompanyName)
	in.CEOName = strings.TrimSpace(in.CEOName)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	return validateStruct(in)
}
