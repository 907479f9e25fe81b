package auth

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/csoportal/internal/api/models"
	"github.com/jon4hz/csoportal/internal/database"
)

// Session keys.
const (
	sessionUserID     = "user_id"
	sessionAuthMethod = "auth_method"
	sessionEmail      = "user_email"
	sessionName       = "user_name"
	sessionIsAdmin    = "user_is_admin"
	sessionOIDCState  = "oidc_state"
)

// contextUserKey is the gin context key of the authenticated user.
const contextUserKey = "user"

// Login stores a password login in the session.
func Login(c *gin.Context, user *database.User) error {
	session := sessions.Default(c)
	session.Clear()
	session.Set(sessionUserID, user.ID)
	session.Set(sessionAuthMethod, models.AuthPassword)
	return session.Save()
}

// Logout clears the session.
func Logout(c *gin.Context) error {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	return session.Save()
}

// CurrentUser returns the user set by RequireAuth.
func CurrentUser(c *gin.Context) *models.User {
	user, _ := c.MustGet(contextUserKey).(*models.User)
	return user
}

// Helper functions to safely get session values.
func getSessionString(session sessions.Session, key string) string {
	if val := session.Get(key); val != nil {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

func getSessionBool(session sessions.Session, key string) bool {
	if val := session.Get(key); val != nil {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return false
}

func getSessionUint(session sessions.Session, key string) uint {
	if val := session.Get(key); val != nil {
		if id, ok := val.(uint); ok {
			return id
		}
	}
	return 0
}
