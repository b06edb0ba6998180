package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aescanero/emud/internal/application/orchestrator"
	"github.com/aescanero/emud/internal/application/workers"
	"github.com/aescanero/emud/internal/config"
	"github.com/aescanero/emud/pkg/adapters/engines/sim"
	eventsmemory "github.com/aescanero/emud/pkg/adapters/events/memory"
	eventsredis "github.com/aescanero/emud/pkg/adapters/events/redis"
	"github.com/aescanero/emud/pkg/adapters/metrics/prometheus"
	storagememory "github.com/aescanero/emud/pkg/adapters/storage/memory"
	storageredis "github.com/aescanero/emud/pkg/adapters/storage/redis"
	"github.com/aescanero/emud/pkg/api/grpc"
	"github.com/aescanero/emud/pkg/api/http"
	"github.com/aescanero/emud/pkg/api/websocket"
	"github.com/aescanero/emud/pkg/domain"
	"github.com/aescanero/emud/pkg/ports"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting emulator daemon",
		zap.String("version", Version),
		zap.String("build_time", BuildTime))

	// Local bus feeds the WebSocket and gRPC surfaces; Redis, when enabled,
	// receives a copy of every event.
	localBus := eventsmemory.NewInMemoryEventBus()
	var eventBus ports.EventBus = localBus
	var stateStorage ports.StateStorage = storagememory.NewInMemoryStateStorage()

	var redisClient *goredis.Client
	if cfg.Redis.Enabled {
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})

		// Test Redis connection
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Fatal("failed to connect to Redis", zap.Error(err))
		}
		logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))

		streams, err := eventsredis.NewStreamsEventBus(
			redisClient,
			cfg.Redis.ConsumerGroup,
			cfg.Redis.ConsumerName,
			cfg.Redis.StreamMaxLen,
			logger,
		)
		if err != nil {
			logger.Fatal("failed to create event bus", zap.Error(err))
		}
		eventBus = &teeBus{EventBus: localBus, remote: streams, logger: logger}
		stateStorage = storageredis.NewStateStorage(redisClient, cfg.Redis.SnapshotTTL, logger)
	}

	metricsCollector := prometheus.NewCollector(nil)

	workerPool := workers.NewPool(
		cfg.Workers.PoolSize,
		metricsCollector,
		logger,
		cfg.Workers.HealthCheckInterval,
	)

	// Initialize application components
	emulator, err := orchestrator.New(
		orchestrator.Config{
			Device:      cfg.DomainDevice(),
			StepTimeout: cfg.Timeouts.StepTimeout,
		},
		sim.Factories(sim.Options{
			FailInit:   cfg.FailInitKinds(),
			AutoAccept: true,
			Logger:     logger,
		}),
		orchestrator.Deps{
			Pool:     workerPool,
			EventBus: eventBus,
			Storage:  stateStorage,
			Metrics:  metricsCollector,
			Logger:   logger,
		},
	)
	if err != nil {
		logger.Fatal("failed to create orchestrator", zap.Error(err))
	}

	// Initialize API servers
	httpServer := http.NewServer(&http.Config{
		Port:             cfg.HTTPPort,
		Orchestrator:     emulator,
		LifecycleTimeout: cfg.Timeouts.LifecycleTimeout,
		Logger:           logger,
	})

	// Add WebSocket handler to HTTP server
	wsHandler := websocket.NewHandler(localBus, emulator, logger)
	httpServer.SetupWebSocket(wsHandler)

	grpcServer, err := grpc.NewServer(&grpc.Config{
		Port:   cfg.GRPCPort,
		Device: emulator,
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("failed to create gRPC server", zap.Error(err))
	}

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	if err := grpcServer.Watch(watchCtx, localBus); err != nil {
		logger.Fatal("failed to watch device events", zap.Error(err))
	}

	// Start servers
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	go func() {
		if err := grpcServer.Start(); err != nil {
			logger.Fatal("gRPC server failed", zap.Error(err))
		}
	}()

	logger.Info("emulator daemon started",
		zap.String("device_id", emulator.DeviceID()),
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.Int("worker_pool_size", cfg.Workers.PoolSize))

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := grpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("gRPC server shutdown error", zap.Error(err))
	}

	if _, err := emulator.Cleanup().Await(shutdownCtx); err != nil {
		logger.Error("emulator cleanup error", zap.Error(err))
	}

	if err := workerPool.Shutdown(shutdownCtx); err != nil {
		logger.Error("worker pool shutdown error", zap.Error(err))
	}

	stopWatch()
	if err := eventBus.Close(); err != nil {
		logger.Error("event bus close error", zap.Error(err))
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("Redis close error", zap.Error(err))
		}
	}

	logger.Info("emulator daemon shut down complete")
}

// teeBus delivers events locally and forwards a copy to a remote bus
type teeBus struct {
	ports.EventBus
	remote ports.EventBus
	logger *zap.Logger
}

func (b *teeBus) Publish(ctx context.Context, topic string, event domain.Event) error {
	if err := b.remote.Publish(ctx, topic, event); err != nil {
		b.logger.Error("failed to forward event", zap.String("event_id", event.ID), zap.Error(err))
	}
	return b.EventBus.Publish(ctx, topic, event)
}

func (b *teeBus) Close() error {
	return multierr.Append(b.remote.Close(), b.EventBus.Close())
}

// initLogger initializes the logger based on log level
func initLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	return logger
}
