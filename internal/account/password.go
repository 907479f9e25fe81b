package account

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the minimum number of characters of a password.
const MinPasswordLength = 6

// MaxPasswordBytes is the longest password bcrypt accepts, counted in bytes.
const MaxPasswordBytes = 72

var (
	// ErrPasswordTooShort is returned for passwords below MinPasswordLength.
	ErrPasswordTooShort = errors.New("password must be at least 6 characters")
	// ErrPasswordTooLong is returned for passwords above MaxPasswordBytes.
	ErrPasswordTooLong = errors.New("password must not exceed 72 bytes")
)

// HashPassword validates and hashes a password with bcrypt.
func HashPassword(password string) (string, error) {
	if len([]rune(password)) < MinPasswordLength {
		return "", ErrPasswordTooShort
	}
	if len(password) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// dummyHash is compared against when no account matches a login.
var dummyHash = sync.OnceValue(func() string {
	hash, err := bcrypt.GenerateFromPassword([]byte("csoportal-no-such-account"), bcrypt.DefaultCost)
	if err != nil {
		panic(fmt.Sprintf("failed to hash dummy password: %v", err))
	}
	return string(hash)
})

// CheckPassword reports whether password matches the bcrypt hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
