package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"donation_match_backend/internal/auth"
	"donation_match_backend/internal/config"
	"donation_match_backend/internal/jobs"
	"donation_match_backend/internal/middleware"
	"donation_match_backend/internal/session"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server struct holds the dependencies for the HTTP server.
type Server struct {
	httpServer *http.Server
	router     *gin.Engine
	cfg        *config.Config
	logger     *zap.Logger
	registry   *session.Registry
	scheduler  *jobs.Scheduler
}

// NewServer creates a new instance of our application server.
func NewServer(
	cfg *config.Config,
	logger *zap.Logger,
	registry *session.Registry,
	authHandler *auth.Handler,
	scheduler *jobs.Scheduler,
) (*Server, error) {
	gin.SetMode(cfg.GinMode)
	router := gin.New()

	// --- Global Middleware ---
	router.Use(middleware.ZapLogger(logger, cfg))
	router.Use(middleware.ErrorHandler(logger))
	router.Use(gin.Recovery())

	// Credentialed requests need an explicit origin.
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.AppBaseURL}
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", middleware.RequestIDHeader}
	corsConfig.AllowCredentials = true
	corsConfig.ExposeHeaders = []string{"Content-Length", middleware.RequestIDHeader}
	router.Use(cors.New(corsConfig))

	// --- Setup Routes ---
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "UP",
			"message": "Donation Match API is healthy!",
			"clients": registry.Len(),
		})
	})

	v1 := router.Group("/api/v1")
	v1.Use(middleware.ClientSession(registry, cfg, logger.Named("ClientSession")))
	authHandler.RegisterRoutes(v1)

	addr := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		cfg:        cfg,
		logger:     logger,
		registry:   registry,
		scheduler:  scheduler,
	}, nil
}

func (s *Server) Start() error {
	if s.scheduler != nil {
		if err := s.scheduler.SetupAndStart(); err != nil {
			s.logger.Error("Failed to setup and start job scheduler", zap.Error(err))
		}
	} else {
		s.logger.Info("Job scheduler is not configured, skipping start.")
	}

	s.logger.Info("HTTP Server starting",
		zap.String("address", s.httpServer.Addr),
		zap.String("gin_mode", s.cfg.GinMode),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("Failed to start HTTP server", zap.Error(err))
		return err
	}
	s.logger.Info("HTTP Server stopped gracefully or an error occurred")
	return nil
}

// Shutdown stops the jobs, drains HTTP traffic and then closes every client
// session so no event loop outlives the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Attempting graceful server shutdown...")
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	err := s.httpServer.Shutdown(ctx)
	s.registry.Close()
	return err
}
