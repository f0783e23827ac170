// Package api exposes message generation and override session management over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/hl7-synth-server/internal/domain"
	"github.com/hl7-synth-server/internal/fieldpath"
	"github.com/hl7-synth-server/internal/message"
	"github.com/hl7-synth-server/internal/middleware"
	"github.com/hl7-synth-server/internal/resolver"
	"github.com/hl7-synth-server/internal/scenario"
	"github.com/hl7-synth-server/internal/session"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// TableCatalog serves HL7 standards tables
type TableCatalog interface {
	domain.TableProvider
	ListTableIDs(ctx context.Context) ([]string, error)
}

// HealthCheck reports whether one dependency is usable
type HealthCheck func(ctx context.Context) error

// Services are the collaborators behind the API. Generator is required; a nil
// collaborator disables its routes.
type Services struct {
	Generator *message.Generator
	Resolver  *resolver.Orchestrator
	Sessions  *session.Service
	Tables    TableCatalog
	Paths     *fieldpath.Resolver
	Scenarios *scenario.Coordinator
	Checks    map[string]HealthCheck
}

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	services      Services
	logger        *logrus.Logger
	router        *gin.Engine
	server        *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, services Services, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RateLimit(cfg.Server.RateLimit, cfg.Server.RateLimit*2))
	router.Use(middleware.RequestTimeout(cfg.Server.WriteTimeout))

	server := &Server{
		configManager: configManager,
		services:      services,
		logger:        logger,
		router:        router,
	}

	server.setupRoutes()

	return server
}

// Handler returns the HTTP handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/messages", s.handleGenerate)
		v1.POST("/messages/batch", s.handleGenerateBatch)
		v1.GET("/messages/stream", s.handleStream)
		v1.GET("/message-types", s.handleMessageTypes)
		v1.GET("/message-types/:type/paths", s.handlePaths)
		v1.GET("/stats", s.handleStats)
		v1.POST("/stats/reset", s.handleResetStats)

		if s.services.Tables != nil {
			v1.GET("/tables", s.handleListTables)
			v1.GET("/tables/:id", s.handleGetTable)
		}
		if s.services.Scenarios != nil {
			v1.GET("/scenarios", s.handleListScenarios)
			v1.GET("/scenarios/:id", s.handleGetScenario)
		}
		if s.services.Sessions != nil {
			sessions := v1.Group("/sessions")
			sessions.GET("", s.handleListSessions)
			sessions.POST("", s.handleCreateSession)
			sessions.GET("/:name", s.handleGetSession)
			sessions.DELETE("/:name", s.handleDeleteSession)
			sessions.PUT("/:name/values/:key", s.handleLockValue)
			sessions.DELETE("/:name/values/:key", s.handleUnlockValue)

			v1.GET("/session-archive", s.handleExportSessions)
			v1.POST("/session-archive", s.handleImportSessions)
		}
	}
}

// handleHealth runs every dependency check
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	components := make(map[string]string, len(s.services.Checks))
	for name, check := range s.services.Checks {
		if err := check(ctx); err != nil {
			components[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{
		"status":     state,
		"timestamp":  time.Now().UTC(),
		"version":    Version,
		"components": components,
	})
}
