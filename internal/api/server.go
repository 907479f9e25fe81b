// Package api wires the HTTP server of the portal.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/csoportal/internal/api/auth"
	"github.com/jon4hz/csoportal/internal/api/handler"
	"github.com/jon4hz/csoportal/internal/config"
)

const (
	sessionName     = "csoportal_session"
	shutdownTimeout = 10 * time.Second

	// sign in attempts per client: a burst of authBurst, then one per authInterval
	authInterval = 6 * time.Second
	authBurst    = 10
)

type Server struct {
	cfg        *config.Config
	ginEngine  *gin.Engine
	handler    *handler.Handler
	middleware *auth.Middleware
	oidc       *auth.OIDCProvider
}

// New creates the server. SSO is only set up when enabled in the config.
func New(ctx context.Context, deps handler.Deps, debug bool) (*Server, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:        deps.Config,
		ginEngine:  gin.New(),
		handler:    handler.New(deps),
		middleware: auth.NewMiddleware(deps.DB, deps.Accounts, deps.Config.Gravatar),
	}

	if err := s.ginEngine.SetTrustedProxies(deps.Config.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	if oidc := deps.Config.OIDC; oidc != nil && oidc.Enabled {
		provider, err := auth.NewOIDCProvider(ctx, oidc)
		if err != nil {
			return nil, fmt.Errorf("failed to create oidc provider: %w", err)
		}
		s.oidc = provider
	}

	s.ginEngine.Use(gin.Recovery(), requestLogger())
	s.setupSession()
	s.setupRoutes()
	return s, nil
}

// Handler returns the router, mostly useful in tests.
func (s *Server) Handler() http.Handler {
	return s.ginEngine
}

func (s *Server) setupSession() {
	store := cookie.NewStore([]byte(s.cfg.SessionKey))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   s.cfg.SessionMaxAge,
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	s.ginEngine.Use(sessions.Sessions(sessionName, store))
}

func (s *Server) setupRoutes() {
	h := s.handler

	s.ginEngine.GET("/healthz", h.Health)

	api := s.ginEngine.Group("/api")
	api.Use(gzip.Gzip(gzip.DefaultCompression))

	limited := rateLimit(newClientLimiter(authInterval, authBurst))
	public := api.Group("/auth")
	public.GET("/config", h.AuthConfig)
	public.POST("/register", limited, h.Register)
	public.POST("/login", limited, h.Login)
	public.POST("/logout", h.Logout)
	public.POST("/password-reset/request", limited, h.RequestPasswordReset)
	public.POST("/password-reset/confirm", limited, h.ConfirmPasswordReset)
	if s.oidc != nil {
		public.GET("/oidc/login", s.oidc.Login)
		public.GET("/oidc/callback", s.oidc.Callback)
	}

	protected := api.Group("")
	protected.Use(s.middleware.RequireAuth())
	protected.GET("/auth/me", h.Me)
	protected.PUT("/auth/profile", h.UpdateProfile)
	protected.POST("/auth/password", h.ChangePassword)
	protected.GET("/settlements/months", h.Months)
	protected.GET("/settlements", h.Settlements)
	protected.GET("/settlements/pivot", h.Pivot)
	protected.GET("/settlements/export", h.Export)
	protected.GET("/columns", h.Columns)
	protected.GET("/company", h.Company)

	s.setupAdminRoutes(protected.Group("/admin"))
}

func (s *Server) setupAdminRoutes(admin *gin.RouterGroup) {
	h := s.handler
	admin.Use(s.middleware.RequireAdmin())

	admin.GET("/stats", h.Stats)

	admin.GET("/users", h.ListUsers)
	admin.PUT("/users/:id", h.UpdateUser)
	admin.POST("/users/:id/approve", h.ApproveUser)
	admin.POST("/users/:id/revoke", h.RevokeUser)
	admin.POST("/users/:id/password", h.ResetUserPassword)
	admin.DELETE("/users/:id", h.DeleteUser)

	admin.POST("/settlements/preview", h.PreviewUpload)
	admin.POST("/settlements/upload", h.UploadSettlements)
	admin.GET("/settlements/months", h.Months)
	admin.DELETE("/settlements/months/:month", h.DeleteMonth)

	admin.GET("/columns", h.Columns)
	admin.PUT("/columns/order", h.ReorderColumns)
	admin.PUT("/columns/:key", h.UpdateColumn)

	admin.GET("/company", h.AdminCompany)
	admin.PUT("/company", h.UpdateCompany)

	admin.GET("/cache", h.CacheStats)
	admin.DELETE("/cache", h.ClearCache)

	admin.GET("/email/placeholders", h.Placeholders)
	admin.POST("/email/notify", h.SendNotifications)
	admin.POST("/email/preview", h.PreviewMailMerge)
	admin.POST("/email/mail-merge", h.SendMailMerge)
	admin.GET("/email/status", h.EmailStatus)
	admin.POST("/email/cancel", h.CancelEmail)
	admin.GET("/email/logs", h.EmailLogs)

	admin.GET("/jobs", h.Jobs)
	admin.GET("/jobs/:id", h.Job)
	admin.POST("/jobs/:id/run", h.RunJob)
}

// Run serves until ctx is cancelled and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.ginEngine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting API server", "listen", s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

func requestLogger() gin.HandlerFunc {
	logger := log.Default().WithPrefix("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
