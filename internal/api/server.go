package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/llmrelay/llmrelay/internal/config"
	"github.com/llmrelay/llmrelay/internal/dispatch"
	"github.com/llmrelay/llmrelay/internal/errors"
	"github.com/llmrelay/llmrelay/internal/logging"
	"github.com/llmrelay/llmrelay/internal/metrics"
	"github.com/llmrelay/llmrelay/internal/models"
	"github.com/llmrelay/llmrelay/internal/notify"
	"github.com/llmrelay/llmrelay/internal/oauth"
	"github.com/llmrelay/llmrelay/internal/pool"
	"github.com/llmrelay/llmrelay/internal/store"
)

// Dispatcher is the slice of the relay orchestrator the server needs.
type Dispatcher interface {
	Handle(ctx context.Context, req models.ChatRequest) (*dispatch.Result, error)
}

// Server represents the HTTP API server
type Server struct {
	router      *gin.Engine
	config      config.ServerConfig
	apiConfig   config.APIConfig
	oauthConfig config.OAuthConfig
	store       store.Store
	pool        *pool.Pool
	tokens      *oauth.Lifecycle
	dispatcher  Dispatcher
	metrics     *metrics.Metrics
	logger      *logging.Logger
	notifier    *notify.Notifier
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
}

// Router returns the gin router for testing purposes
func (s *Server) Router() *gin.Engine {
	return s.router
}

// ServerOption configures optional server collaborators.
type ServerOption func(*Server)

// WithMetrics overrides the metrics instance.
func WithMetrics(m *metrics.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger overrides the logger.
func WithLogger(l *logging.Logger) ServerOption {
	return func(s *Server) {
		s.logger = l
	}
}

// WithNotifier enables operator alerts for pool exhaustion.
func WithNotifier(n *notify.Notifier) ServerOption {
	return func(s *Server) {
		s.notifier = n
	}
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, st store.Store, p *pool.Pool, tokens *oauth.Lifecycle, d Dispatcher, opts ...ServerOption) *Server {
	gin.SetMode(gin.ReleaseMode)

	// Initialize rate limiter from config with sane defaults
	requestsPerMinute := cfg.API.RateLimit.RequestsPerMinute
	if requestsPerMinute <= 0 {
		requestsPerMinute = 600
	}
	burst := cfg.API.RateLimit.Burst
	if burst <= 0 {
		burst = 60
	}
	rateLimiter := newIPRateLimiter(time.Minute/time.Duration(requestsPerMinute), burst)

	server := &Server{
		router:      gin.New(),
		config:      cfg.Server,
		apiConfig:   cfg.API,
		oauthConfig: cfg.OAuth,
		store:       st,
		pool:        p,
		tokens:      tokens,
		dispatcher:  d,
		metrics:     metrics.NewMetrics("llmrelay"),
		logger:      logging.NewLogger(),
		rateLimiter: rateLimiter,
	}
	for _, opt := range opts {
		opt(server)
	}
	server.router.HandleMethodNotAllowed = true

	// Add recovery middleware with logging
	server.router.Use(gin.Recovery())

	// Add rate limiting middleware
	server.router.Use(rateLimitMiddleware(rateLimiter))

	// Add body size limit (1MB)
	server.router.Use(bodyLimitMiddleware(1 << 20))

	// Add CORS middleware when enabled
	if cfg.API.CORS.Enabled {
		server.router.Use(corsMiddleware(cfg.API.CORS))
	}

	// Add metrics and logging middleware
	server.router.Use(metrics.Middleware(server.metrics, server.logger))
	server.router.Use(loggingMiddleware(server.logger))

	server.setupRoutes()
	return server
}

// loggingMiddleware provides structured logging for all requests
func loggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// Get or generate correlation ID
		correlationID := c.GetHeader("X-Correlation-ID")
		if correlationID == "" {
			correlationID = logging.GenerateCorrelationID()
		}

		ctx := logging.WithCorrelationID(c.Request.Context(), correlationID)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Correlation-ID", correlationID)

		c.Next()

		duration := time.Since(start).Seconds()
		logger.InfoWithContext(ctx, "request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_seconds", duration,
		)
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	// Prometheus metrics endpoint - NO authentication required
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	// Health check - NO authentication required
	s.router.GET("/health", s.handleHealth)

	authMiddleware := APIKeyAuth(s.apiConfig.Auth, s.logger)

	// Relay endpoint - requires authentication
	relayGroup := s.router.Group("")
	relayGroup.Use(authMiddleware)
	{
		relayGroup.POST("/v1/messages", s.handleRelay)
	}

	// Account pool endpoints - require authentication
	accountGroup := s.router.Group("")
	accountGroup.Use(authMiddleware)
	{
		accountGroup.GET("/accounts", s.handleListAccounts)
		accountGroup.POST("/accounts", s.handleCreateAccount)
		accountGroup.DELETE("/accounts/:id", s.handleDeleteAccount)
		accountGroup.GET("/accounts/stats", s.handlePoolStats)
	}

	// OAuth token endpoints - require authentication
	tokenGroup := s.router.Group("")
	tokenGroup.Use(authMiddleware)
	{
		tokenGroup.GET("/token/status", s.handleTokenStatus)
		tokenGroup.GET("/token/auth-url", s.handleAuthURL)
		tokenGroup.POST("/token/exchange", s.handleExchange)
		tokenGroup.POST("/token/refresh", s.handleRefresh)
	}
}

// Run starts the HTTP server
func (s *Server) Run() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.HTTPPort)

	if s.httpServer == nil {
		s.httpServer = NewHTTPServer(addr, s.router)
	}

	s.logger.Info("starting HTTP server", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return &errors.ErrServerStart{Addr: addr, Err: err}
	}
	return nil
}

// StartWithServer starts the server with a pre-configured http.Server
func (s *Server) StartWithServer(srv *http.Server) error {
	s.httpServer = srv
	s.logger.Info("starting HTTP server", "addr", srv.Addr)
	return srv.ListenAndServe()
}

// Shutdown gracefully shuts down the server and closes the store.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("initiating graceful shutdown")

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", "error", err.Error())
			return err
		}
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			return fmt.Errorf("store close: %w", err)
		}
	}

	s.logger.Info("graceful shutdown completed")
	return nil
}

// handleHealth returns health status
func (s *Server) handleHealth(c *gin.Context) {
	status := "healthy"
	httpStatus := http.StatusOK

	if _, _, err := s.store.Get(c.Request.Context(), store.KeySessionAccounts); err != nil {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
	})
}
