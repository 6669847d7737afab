// Package api serves the NutriCheck dashboard and questionnaire API over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/nutricheck-server/internal/domain"
	"github.com/nutricheck-server/internal/events"
	"github.com/nutricheck-server/internal/middleware"
	"github.com/nutricheck-server/internal/service"
)

// HealthCheck reports on one backend for /health.
type HealthCheck func(ctx context.Context) error

// Options holds the collaborators of the HTTP server.
type Options struct {
	Config  domain.ServerConfig
	Service *service.ScreeningService
	Auth    middleware.Authenticator
	Hub     *events.Hub
	Checks  map[string]HealthCheck
	Logger  *logrus.Logger
	Version string
	Debug   bool
}

// Server represents the HTTP server
type Server struct {
	cfg     domain.ServerConfig
	svc     *service.ScreeningService
	auth    middleware.Authenticator
	hub     *events.Hub
	checks  map[string]HealthCheck
	logger  *logrus.Logger
	version string
	router  *gin.Engine
	server  *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(opts Options) *Server {
	if opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	registerValidators()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(opts.Config.AllowedOrigins))

	s := &Server{
		cfg:     opts.Config,
		svc:     opts.Service,
		auth:    opts.Auth,
		hub:     opts.Hub,
		checks:  opts.Checks,
		logger:  opts.Logger,
		version: opts.Version,
		router:  router,
	}
	s.setupRoutes()

	return s
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled and then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithFields(logrus.Fields{
			"addr": addr,
			"tls":  s.cfg.TLSEnabled,
		}).Info("HTTP server listening")

		var err error
		if s.cfg.TLSEnabled {
			err = s.server.ListenAndServeTLS(s.cfg.CertFile, s.cfg.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	limiter := middleware.NewRateLimiter(s.cfg.RateLimit, s.cfg.RateBurst)

	v1 := s.router.Group("/api/v1")
	v1.GET("/health", s.handleHealth)

	authed := v1.Group("", limiter.Middleware(), middleware.Auth(s.auth, s.logger))

	// The live feed is long-lived and must not inherit the request timeout.
	authed.GET("/ws/screenings", s.handleLiveFeed)

	secured := authed.Group("", middleware.RequestTimeout(s.cfg.RequestTimeout))
	{
		secured.POST("/patient-code", s.handlePatientCode)
		secured.POST("/score", s.handleScore)

		secured.POST("/wizard", s.handleStartDraft)
		secured.GET("/wizard/:id", s.handleGetDraft)
		secured.PUT("/wizard/:id/answers", s.handleAnswerDraft)
		secured.POST("/wizard/:id/next", s.handleNextStep)
		secured.POST("/wizard/:id/back", s.handlePreviousStep)
		secured.POST("/wizard/:id/complete", s.handleCompleteDraft)
		secured.DELETE("/wizard/:id", s.handleAbandonDraft)

		secured.POST("/screenings", s.handleSubmit)
		secured.GET("/screenings", s.handleListScreenings)
		secured.GET("/screenings/:id", s.handleGetScreening)
		secured.GET("/screenings/:id/report", s.handleReport)
		secured.PATCH("/screenings/:id/counseling", s.handleCounseling)
		secured.POST("/screenings/:id/resend", s.handleResend)
		secured.DELETE("/screenings/:id", s.handleDeleteScreening)

		secured.GET("/practice", s.handleOwnPractice)
		secured.PUT("/practice", s.handleUpdateOwnPractice)
	}

	admin := secured.Group("/admin", middleware.RequireAdmin())
	{
		admin.GET("/practices", s.handleListPractices)
		admin.PUT("/practices/:id", s.handleUpdatePractice)
		admin.DELETE("/practices/:id", s.handleDeletePractice)
		admin.GET("/practices/:id/screenings", s.handlePracticeScreenings)
		admin.GET("/practices/:id/export", s.handleExport)
		admin.GET("/settings/cc-email", s.handleGetCCEmail)
		admin.PUT("/settings/cc-email", s.handleSetCCEmail)
	}
}

// handleHealth reports liveness and the state of each backend.
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	checks := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = "unhealthy"
			code = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	c.JSON(code, gin.H{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().UTC(),
		"version":   s.version,
	})
}
