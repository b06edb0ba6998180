package grpc

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/aescanero/emud/pkg/domain"
	"github.com/aescanero/emud/pkg/ports"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name that mirrors the device run state.
const ServiceName = "emud.Device"

// StateSource reports the current device state
type StateSource interface {
	State() domain.State
}

// Server represents the gRPC API server
type Server struct {
	server   *grpc.Server
	listener net.Listener
	health   *health.Server
	device   StateSource
	logger   *zap.Logger

	// statusMu orders state reads with status writes so the last update
	// always reflects the latest state.
	statusMu sync.Mutex
}

// Config holds gRPC server configuration
type Config struct {
	Port   int
	Device StateSource

	// Listener overrides Port when set.
	Listener net.Listener

	Logger *zap.Logger
}

// NewServer creates a new gRPC server exposing the standard health service
func NewServer(cfg *Config) (*Server, error) {
	listener := cfg.Listener
	if listener == nil {
		var err error
		listener, err = net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
		if err != nil {
			return nil, fmt.Errorf("failed to create listener: %w", err)
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	s := &Server{
		server:   grpcServer,
		listener: listener,
		health:   healthServer,
		device:   cfg.Device,
		logger:   logger,
	}
	s.syncDeviceState()

	return s, nil
}

// Watch keeps the device health status in step with lifecycle events until
// ctx is cancelled
func (s *Server) Watch(ctx context.Context, bus ports.EventBus) error {
	return bus.Subscribe(ctx, domain.EventTopic, func(ctx context.Context, event domain.Event) error {
		s.syncDeviceState()
		return nil
	})
}

// syncDeviceState reads the device state and reports SERVING while it is
// running
func (s *Server) syncDeviceState() {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()

	state := s.device.State()
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if state == domain.StateRunning {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ServiceName, status)
	s.logger.Debug("device health updated",
		zap.Stringer("state", state),
		zap.String("status", status.String()))
}

// Addr returns the listening address
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Start starts the gRPC server
func (s *Server) Start() error {
	s.logger.Info("starting gRPC server", zap.String("addr", s.listener.Addr().String()))

	if err := s.server.Serve(s.listener); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("failed to serve gRPC: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server, forcing a stop if ctx expires
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down gRPC server")
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.server.Stop()
	}

	s.logger.Info("gRPC server shut down complete")
	return nil
}
