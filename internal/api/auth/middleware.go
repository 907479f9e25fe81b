package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/csoportal/internal/api/models"
	"github.com/jon4hz/csoportal/internal/config"
	"github.com/jon4hz/csoportal/internal/database"
	"github.com/jon4hz/csoportal/internal/gravatar"
)

var errUnauthenticated = errors.New("unauthenticated")

// TokenAuthenticator resolves bearer tokens.
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*database.User, error)
}

// Middleware authenticates requests by session cookie or bearer token.
type Middleware struct {
	db          database.DB
	tokens      TokenAuthenticator
	gravatarCfg *config.GravatarConfig
}

func NewMiddleware(db database.DB, tokens TokenAuthenticator, gravatarCfg *config.GravatarConfig) *Middleware {
	return &Middleware{db: db, tokens: tokens, gravatarCfg: gravatarCfg}
}

// RequireAuth returns middleware that requires an approved account or an admin SSO session.
func (m *Middleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := m.resolve(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "로그인이 필요합니다.",
			})
			return
		}
		c.Set(contextUserKey, user)
		c.Next()
	}
}

// RequireAdmin returns middleware that checks for admin privileges.
func (m *Middleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := c.MustGet(contextUserKey).(*models.User)
		if !ok || !user.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "forbidden",
			})
			return
		}
		c.Next()
	}
}

func (m *Middleware) resolve(c *gin.Context) (*models.User, error) {
	ctx := c.Request.Context()

	if header := c.GetHeader("Authorization"); header != "" {
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || m.tokens == nil {
			return nil, errUnauthenticated
		}
		user, err := m.tokens.Authenticate(ctx, strings.TrimSpace(token))
		if err != nil {
			log.Debug("rejected bearer token", "error", err)
			return nil, errUnauthenticated
		}
		return models.ToUser(user, models.AuthToken, m.gravatarCfg), nil
	}

	session := sessions.Default(c)
	switch getSessionString(session, sessionAuthMethod) {
	case models.AuthOIDC:
		if !getSessionBool(session, sessionIsAdmin) {
			return nil, errUnauthenticated
		}
		email := getSessionString(session, sessionEmail)
		return &models.User{
			CompanyName: getSessionString(session, sessionName),
			Email:       email,
			IsAdmin:     true,
			AuthMethod:  models.AuthOIDC,
			GravatarURL: gravatar.URL(email, m.gravatarCfg),
		}, nil

	case models.AuthPassword:
		id := getSessionUint(session, sessionUserID)
		if id == 0 {
			return nil, errUnauthenticated
		}
		user, err := m.db.GetUserByID(ctx, id)
		if err != nil {
			return nil, errUnauthenticated
		}
		// approval may have been revoked after login
		if !user.IsApproved {
			_ = Logout(c)
			return nil, errUnauthenticated
		}
		return models.ToUser(user, models.AuthPassword, m.gravatarCfg), nil
	}
	return nil, errUnauthenticated
}
