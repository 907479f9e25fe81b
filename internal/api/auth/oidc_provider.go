package auth

import (
	"context"
	"net/http"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jon4hz/csoportal/internal/api/models"
	"github.com/jon4hz/csoportal/internal/config"
	"golang.org/x/oauth2"
)

// OIDCProvider signs in admins through an OpenID Connect provider. Only members of the
// configured admin group get a session.
type OIDCProvider struct {
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
	config   *oauth2.Config
	cfg      *config.OIDCConfig
}

func NewOIDCProvider(ctx context.Context, cfg *config.OIDCConfig) (*OIDCProvider, error) {
	p := OIDCProvider{cfg: cfg}
	var err error
	p.provider, err = oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, err
	}

	p.config = &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     p.provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email", "groups"},
	}

	p.verifier = p.provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})
	return &p, nil
}

func (p *OIDCProvider) Login(c *gin.Context) {
	state := uuid.NewString()
	session := sessions.Default(c)
	session.Set(sessionOIDCState, state)
	if err := session.Save(); err != nil {
		c.AbortWithError(http.StatusInternalServerError, err) //nolint:errcheck
		return
	}
	c.Redirect(http.StatusFound, p.config.AuthCodeURL(state))
}

func (p *OIDCProvider) Callback(c *gin.Context) {
	ctx := c.Request.Context()
	session := sessions.Default(c)

	state := getSessionString(session, sessionOIDCState)
	if state == "" || c.Query("state") != state {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid state"})
		return
	}
	session.Delete(sessionOIDCState)

	oauth2Token, err := p.config.Exchange(ctx, c.Query("code"))
	if err != nil {
		c.AbortWithError(http.StatusUnauthorized, err) //nolint:errcheck
		return
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": "missing id token"})
		return
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		c.AbortWithError(http.StatusUnauthorized, err) //nolint:errcheck
		return
	}

	var claims struct {
		Email             string   `json:"email"`
		Name              string   `json:"name"`
		PreferredUsername string   `json:"preferred_username"`
		Sub               string   `json:"sub"`
		Groups            []string `json:"groups"`
	}
	if err := idToken.Claims(&claims); err != nil {
		c.AbortWithError(http.StatusInternalServerError, err) //nolint:errcheck
		return
	}

	if !slices.Contains(claims.Groups, p.cfg.AdminGroup) {
		log.Warn("sso login without admin group", "sub", claims.Sub, "email", claims.Email)
		_ = session.Save()
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "forbidden"})
		return
	}

	name := claims.Name
	if name == "" {
		name = claims.PreferredUsername
	}
	session.Clear()
	session.Set(sessionAuthMethod, models.AuthOIDC)
	session.Set(sessionEmail, claims.Email)
	session.Set(sessionName, name)
	session.Set(sessionIsAdmin, true)
	if err := session.Save(); err != nil {
		c.AbortWithError(http.StatusInternalServerError, err) //nolint:errcheck
		return
	}
	log.Info("admin signed in via sso", "sub", claims.Sub, "email", claims.Email)
	c.Redirect(http.StatusFound, "/admin")
}
