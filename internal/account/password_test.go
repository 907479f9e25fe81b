package account

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("secret1")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", hash)
	assert.True(t, CheckPassword(hash, "secret1"))
	assert.False(t, CheckPassword(hash, "secret2"))
}

func TestHashPassword_TooShort(t *testing.T) {
	_, err := HashPassword("12345")
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	// six runes, more than six bytes
	_, err = HashPassword("비밀번호입력")
	assert.NoError(t, err)
}

func TestHashPassword_TooLong(t *testing.T) {
	_, err := HashPassword(strings.Repeat("a", 100))
	assert.ErrorIs(t, err, ErrPasswordTooLong)

	// thirty runes, ninety bytes
	_, err = HashPassword(strings.Repeat("가", 30))
	assert.ErrorIs(t, err, ErrPasswordTooLong)

	_, err = HashPassword(strings.Repeat("a", MaxPasswordBytes))
	assert.NoError(t, err)
}

func TestValidate_PasswordBytes(t *testing.T) {
	long := strings.Repeat("가", 30)

	change := ChangePasswordInput{CurrentPassword: "secret1", NewPassword: long}
	assert.ErrorIs(t, change.Validate(), ErrValidation)

	reset := ResetConfirmInput{Token: "token", NewPassword: long}
	assert.ErrorIs(t, reset.Validate(), ErrValidation)

	register := RegisterInput{
		BusinessNumber: "1234567890",
		Password:       long,
		CompanyName:    "메디팜",
		Email:          "cso@example.com",
	}
	err := register.Validate()
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "비밀번호가 너무 깁니다.")

	// twenty four runes, seventy two bytes
	change.NewPassword = strings.Repeat("가", 24)
	assert.NoError(t, change.Validate())
}

func TestCheckPassword_InvalidHash(t *testing.T) {
	assert.False(t, CheckPassword("not-a-hash", "secret1"))
}
