package account

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jon4hz/csoportal/internal/config"
	"github.com/jon4hz/csoportal/internal/database"
)

// ErrInvalidToken is returned for malformed, expired or wrongly signed tokens.
var ErrInvalidToken = errors.New("invalid token")

// Claims are the claims of an access token.
type Claims struct {
	UserID         uint   `json:"uid"`
	BusinessNumber string `json:"bno"`
	Role           string `json:"role"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 access tokens.
type Tokens struct {
	secret []byte
	issuer string
	expiry time.Duration
	now    func() time.Time
}

// NewTokens creates a token issuer from the JWT configuration.
func NewTokens(cfg *config.JWTConfig) *Tokens {
	expiry := cfg.Expiry
	if expiry <= 0 {
		expiry = 12 * time.Hour
	}
	return &Tokens{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		expiry: expiry,
		now:    time.Now,
	}
}

// Issue returns a signed token for the user and its expiry time.
func (t *Tokens) Issue(user *database.User) (string, time.Time, error) {
	now := t.now()
	expiresAt := now.Add(t.expiry)
	claims := Claims{
		UserID:         user.ID,
		BusinessNumber: user.BusinessNumber,
		Role:           string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse verifies a token and returns its claims.
func (t *Tokens) Parse(token string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
