// Package http provides HTTP server adapter for the application layer.
// This is a thin adapter layer that translates HTTP requests to application service calls.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/open-audit/internal/application/service"
	"github.com/garyjia/open-audit/internal/domain/entity"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// TokenValidator turns a bearer token into the caller identity
type TokenValidator interface {
	Validate(token string) (entity.Identity, error)
}

// RequestObserver records one served request
type RequestObserver interface {
	ObserveRequest(method string, code int)
}

// HealthFunc reports overall health and per-component details
type HealthFunc func(ctx context.Context) (healthy bool, details interface{})

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address        string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxUploadBytes int64
	AllowedOrigins []string
	BlobDir        string
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:        "0.0.0.0:8080",
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   60 * time.Second,
		MaxUploadBytes: 10 << 20,
		AllowedOrigins: []string{"*"},
	}
}

// Dependencies are the collaborators the server routes to
type Dependencies struct {
	Documents      service.DocumentService
	Tax            service.TaxService
	Tokens         TokenValidator
	Requests       RequestObserver
	MetricsHandler http.Handler
	Health         HealthFunc
	Logger         Logger
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	deps       Dependencies
	httpServer *http.Server
	router     *gin.Engine
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, deps Dependencies) *Server {
	// Set gin mode based on environment
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.MaxMultipartMemory = config.MaxUploadBytes

	server := &Server{
		config: config,
		deps:   deps,
		router: router,
		logger: deps.Logger,
	}

	// Setup middleware
	server.setupMiddleware()

	// Setup routes
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.router.Use(gin.Recovery())

	// Logging middleware
	s.router.Use(s.loggingMiddleware())

	s.router.Use(corsMiddleware(s.config.AllowedOrigins))
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	handlers := NewHandlers(s.deps.Documents, s.deps.Tax, s.config.MaxUploadBytes, s.logger)

	// Health check
	s.router.GET("/health", s.healthCheck)

	if s.deps.MetricsHandler != nil {
		s.router.GET("/metrics", gin.WrapH(s.deps.MetricsHandler))
	}

	// Local blob store; both the transformed and raw URL forms map to the same files.
	if s.config.BlobDir != "" {
		s.router.Static("/blobs/image/upload", s.config.BlobDir)
		s.router.Static("/blobs/raw/upload", s.config.BlobDir)
	}

	// API routes
	api := s.router.Group("/api", authMiddleware(s.deps.Tokens))
	{
		api.POST("/tax/calculate", handlers.CalculateTax)
		api.GET("/tax/history", handlers.TaxHistory)

		docs := api.Group("/documents")
		docs.POST("/upload", handlers.UploadDocument)
		docs.GET("", handlers.ListDocuments)
		docs.GET("/stats", handlers.DocumentStats)
		docs.GET("/export.csv", handlers.ExportCSV)
		docs.GET("/export.xlsx", handlers.ExportXLSX)
		docs.GET("/:id", handlers.GetDocument)
		docs.PUT("/:id", handlers.EditDocument)
		docs.DELETE("/:id", handlers.DeleteDocument)
		docs.POST("/:id/retry", handlers.RetryDocument)
		docs.GET("/:id/download", handlers.DownloadDocument)
	}
}

// healthCheck handles GET /health
func (s *Server) healthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   Version,
	}

	code := http.StatusOK
	if s.deps.Health != nil {
		healthy, details := s.deps.Health(c.Request.Context())
		response.Components = details
		if !healthy {
			response.Status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}

	c.JSON(code, Response{
		Success: code == http.StatusOK,
		Data:    response,
	})
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.config.Address,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", s.config.Address)

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return s.config.Address
}
