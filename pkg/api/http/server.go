package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aescanero/emud/internal/application/orchestrator"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// defaultLifecycleTimeout bounds how long a request waits for a lifecycle
// operation when Config.LifecycleTimeout is zero.
const defaultLifecycleTimeout = time.Minute

// Server represents the HTTP API server
type Server struct {
	router           *gin.Engine
	server           *http.Server
	orchestrator     *orchestrator.Orchestrator
	gatherer         prometheus.Gatherer
	lifecycleTimeout time.Duration
	maxProgramBytes  int64
	logger           *zap.Logger
}

// Config holds HTTP server configuration
type Config struct {
	Port         int
	Orchestrator *orchestrator.Orchestrator

	// Gatherer serves /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer

	// LifecycleTimeout bounds how long a lifecycle request waits for its
	// result. The operation itself keeps running past it.
	LifecycleTimeout time.Duration

	// MaxProgramBytes caps program uploads; zero uses 64 MiB.
	MaxProgramBytes int64

	Logger *zap.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	timeout := cfg.LifecycleTimeout
	if timeout <= 0 {
		timeout = defaultLifecycleTimeout
	}
	maxProgram := cfg.MaxProgramBytes
	if maxProgram <= 0 {
		maxProgram = maxProgramBytes
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(corsMiddleware())

	s := &Server{
		router:           router,
		orchestrator:     cfg.Orchestrator,
		gatherer:         gatherer,
		lifecycleTimeout: timeout,
		maxProgramBytes:  maxProgram,
		logger:           logger,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// setupRoutes configures API routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", s.handleHealth)

	// Metrics
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	// API v1
	v1 := s.router.Group("/api/v1")
	{
		device := v1.Group("/device")
		device.GET("", s.handleGetDevice)

		// Lifecycle
		device.POST("/initialize", s.handleInitialize)
		device.POST("/start", s.handleStart)
		device.POST("/stop", s.handleStop)
		device.POST("/cleanup", s.handleCleanup)

		// Data plane
		device.POST("/program", maxBody(s.maxProgramBytes), s.handleLoadProgram)
		device.GET("/framebuffer", s.handleGetFrameBuffer)
		device.POST("/audio", maxBody(maxAudioBytes), s.handleQueueAudio)
		device.POST("/network/:conn", maxBody(maxNetworkBytes), s.handleSendNetwork)
	}
}

// WebSocketHandler streams device events
type WebSocketHandler interface {
	HandleDeviceStream(*gin.Context)
}

// SetupWebSocket adds the device event stream to the server
func (s *Server) SetupWebSocket(handler WebSocketHandler) {
	s.router.GET("/api/v1/device/ws", handler.HandleDeviceStream)
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Info("HTTP server shut down complete")
	return nil
}
