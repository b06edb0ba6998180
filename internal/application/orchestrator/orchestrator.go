package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aescanero/emud/internal/application/workers"
	"github.com/aescanero/emud/pkg/domain"
	"github.com/aescanero/emud/pkg/ports"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// lifecycleLane is the pool lane every lifecycle task is submitted on.
const lifecycleLane = "lifecycle"

// Config holds orchestrator configuration
type Config struct {
	Device domain.DeviceConfig

	// StepTimeout bounds every individual subsystem call.
	StepTimeout time.Duration

	// Used only when Deps.Pool is nil.
	PoolSize            int
	HealthCheckInterval time.Duration
}

// DefaultConfig returns the stock orchestrator configuration
func DefaultConfig() Config {
	return Config{
		Device:      domain.DefaultDeviceConfig(),
		StepTimeout: 10 * time.Second,
		PoolSize:    2,
	}
}

// Deps are the collaborators injected into the orchestrator. All fields are
// optional.
type Deps struct {
	Pool     *workers.Pool
	EventBus ports.EventBus
	Storage  ports.StateStorage
	Metrics  ports.MetricsCollector
	Logger   *zap.Logger
}

// Orchestrator owns the four engine handles of one emulated device and
// sequences their lifecycle.
type Orchestrator struct {
	cfg       Config
	factories ports.EngineFactories
	pool      *workers.Pool
	events    ports.EventBus
	storage   ports.StateStorage
	metrics   ports.MetricsCollector
	logger    *zap.Logger

	deviceID  string
	createdAt time.Time

	state   atomic.Int32
	running atomic.Bool

	// gate excludes data-plane calls while engines are being released.
	gate dataGate

	cpu     ports.CPUEngine
	gpu     ports.GPUEngine
	audio   ports.AudioEngine
	network ports.NetworkEngine
	stages  []stage

	mu        sync.RWMutex
	lastError string
	updatedAt time.Time
}

// New builds an orchestrator for one device. No engine is constructed until
// Initialize runs.
func New(cfg Config, factories ports.EngineFactories, deps Deps) (*Orchestrator, error) {
	if err := NewValidator().Validate(cfg, factories); err != nil {
		return nil, fmt.Errorf("invalid orchestrator config: %w", err)
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}

	pool := deps.Pool
	if pool == nil {
		pool = workers.NewPool(cfg.PoolSize, metrics, logger, cfg.HealthCheckInterval)
	}
	if err := pool.Start(); err != nil {
		return nil, fmt.Errorf("failed to start task pool: %w", err)
	}

	deviceID := uuid.New().String()
	now := time.Now()
	o := &Orchestrator{
		cfg:       cfg,
		factories: factories,
		pool:      pool,
		events:    deps.EventBus,
		storage:   deps.Storage,
		metrics:   metrics,
		logger:    logger.With(zap.String("device_id", deviceID)),
		deviceID:  deviceID,
		createdAt: now,
		updatedAt: now,
	}
	o.stages = o.buildStages()
	o.metrics.SetDeviceState(domain.StateUninitialized)

	return o, nil
}

// DeviceID returns the identifier of the emulated device
func (o *Orchestrator) DeviceID() string { return o.deviceID }

// Config returns the construction-time configuration
func (o *Orchestrator) Config() Config { return o.cfg }

// State returns the current lifecycle state
func (o *Orchestrator) State() domain.State { return domain.State(o.state.Load()) }

// IsRunning returns the run-state flag. It is true from a successful
// Initialize until Cleanup completes.
func (o *Orchestrator) IsRunning() bool { return o.running.Load() }

// Pool returns the task pool lifecycle operations run on
func (o *Orchestrator) Pool() *workers.Pool { return o.pool }

// Snapshot returns the externally visible device state
func (o *Orchestrator) Snapshot() *domain.DeviceSnapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return &domain.DeviceSnapshot{
		DeviceID:  o.deviceID,
		State:     o.State(),
		Running:   o.IsRunning(),
		Config:    o.cfg.Device,
		LastError: o.lastError,
		CreatedAt: o.createdAt,
		UpdatedAt: o.updatedAt,
	}
}

// Initialize brings up CPU, GPU, audio and network in that order. The future
// resolves to false on any failure, after every engine constructed so far has
// been released; it never resolves with an error.
func (o *Orchestrator) Initialize() *workers.Future[bool] {
	return submitLifecycle(o, "initialize", o.initialize)
}

// Start activates CPU execution, issues the initial GPU draw and starts audio
// playback. An activation failure tears the device down before the future
// fails.
func (o *Orchestrator) Start() *workers.Future[struct{}] {
	return submitLifecycle(o, "start", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, o.start(ctx)
	})
}

// Stop deactivates audio and then CPU. It is a no-op while the run-state flag
// is false and never changes the flag.
func (o *Orchestrator) Stop() *workers.Future[struct{}] {
	return submitLifecycle(o, "stop", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, o.stop(ctx)
	})
}

// Cleanup stops the device, releases network, audio, GPU and CPU, closes the
// task pool and clears the run-state flag. Every release is attempted even
// when an earlier one fails.
func (o *Orchestrator) Cleanup() *workers.Future[struct{}] {
	if o.State() == domain.StateReleased {
		return workers.Completed("cleanup", struct{}{}, nil)
	}
	return submitLifecycle(o, "cleanup", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, o.cleanup(ctx)
	})
}

// submitLifecycle queues fn on the lifecycle lane. The pool only closes once
// the device is released, so a rejected task is resolved inline against the
// released state.
func submitLifecycle[T any](o *Orchestrator, name string, fn func(ctx context.Context) (T, error)) *workers.Future[T] {
	f := workers.Submit(o.pool, lifecycleLane, name, fn)
	if f.Ready() {
		if _, err := f.Await(context.Background()); errors.Is(err, domain.ErrPoolClosed) {
			o.logger.Debug("task pool closed, resolving lifecycle call inline",
				zap.String("operation", name))
			v, err := fn(context.Background())
			return workers.Completed(name, v, err)
		}
	}
	return f
}

func (o *Orchestrator) initialize(ctx context.Context) (bool, error) {
	started := time.Now()

	switch st := o.State(); st {
	case domain.StateUninitialized:
	case domain.StateReleased:
		o.logger.Error("failed to initialize emulator", zap.Error(domain.ErrReleased))
		o.metrics.RecordTransition("initialize", false, time.Since(started))
		return false, nil
	default:
		o.logger.Error("failed to initialize emulator",
			zap.Stringer("state", st),
			zap.Error(domain.ErrAlreadyInitialized))
		o.metrics.RecordTransition("initialize", false, time.Since(started))
		return false, nil
	}

	for _, s := range o.stages {
		if err := o.bringUp(ctx, s); err != nil {
			o.logger.Error("failed to initialize emulator",
				zap.String("subsystem", string(s.kind)),
				zap.Error(err))

			if cerr := o.cleanup(ctx); cerr != nil {
				o.logger.Error("rollback after failed initialization did not complete cleanly",
					zap.Error(cerr))
				err = multierr.Append(err, cerr)
			}

			o.recordFailure(ctx, domain.EventTypeInitFailed, err)
			o.metrics.RecordTransition("initialize", false, time.Since(started))
			return false, nil
		}
	}

	o.running.Store(true)
	o.setState(domain.StateInitialized)
	o.logger.Info("emulator initialized",
		zap.Int("memory_size", o.cfg.Device.MemorySize),
		zap.Int("screen_width", o.cfg.Device.ScreenWidth),
		zap.Int("screen_height", o.cfg.Device.ScreenHeight),
		zap.Int("network_port", o.cfg.Device.NetworkPort),
		zap.Duration("duration", time.Since(started)))
	o.recordTransition(ctx, domain.EventTypeInitialized, nil)
	o.metrics.RecordTransition("initialize", true, time.Since(started))

	return true, nil
}

// bringUp constructs one engine handle and initializes it.
func (o *Orchestrator) bringUp(ctx context.Context, s stage) error {
	if err := construct(s); err != nil {
		o.logger.Error("failed to construct engine",
			zap.String("subsystem", string(s.kind)),
			zap.Error(err))
		return &domain.StepError{Subsystem: s.kind, Phase: domain.PhaseInit, Err: err}
	}
	return o.runStep(ctx, s.kind, domain.PhaseInit, func(ctx context.Context) error {
		if status := s.init(ctx); !status.OK() {
			return fmt.Errorf("%w: %d", domain.ErrInitStatus, status)
		}
		return nil
	})
}

func (o *Orchestrator) start(ctx context.Context) error {
	started := time.Now()

	if !o.running.Load() {
		o.logger.Error("failed to start emulator", zap.Error(domain.ErrNotInitialized))
		o.metrics.RecordTransition("start", false, time.Since(started))
		return domain.ErrNotInitialized
	}
	// With the run-state flag set the device is initialized, running or
	// stopped.
	if st := o.State(); !st.CanStart() {
		o.logger.Error("failed to start emulator",
			zap.Stringer("state", st),
			zap.Error(domain.ErrAlreadyRunning))
		o.metrics.RecordTransition("start", false, time.Since(started))
		return domain.ErrAlreadyRunning
	}

	for _, s := range o.stages {
		if s.activate == nil {
			continue
		}
		if err := o.runStep(ctx, s.kind, domain.PhaseActivate, s.activate); err != nil {
			o.logger.Error("failed to start emulator",
				zap.String("subsystem", string(s.kind)),
				zap.Error(err))

			err = fmt.Errorf("start emulator: %w", err)
			if cerr := o.cleanup(ctx); cerr != nil {
				err = multierr.Append(err, cerr)
			}

			o.recordFailure(ctx, domain.EventTypeStartFailed, err)
			o.metrics.RecordTransition("start", false, time.Since(started))
			return err
		}
	}

	o.setState(domain.StateRunning)
	o.logger.Info("emulator started", zap.Duration("duration", time.Since(started)))
	o.recordTransition(ctx, domain.EventTypeStarted, nil)
	o.metrics.RecordTransition("start", true, time.Since(started))
	return nil
}

func (o *Orchestrator) stop(ctx context.Context) error {
	return o.deactivate(ctx, true)
}

// deactivate stops audio and then CPU. With failFast the first failing step
// ends the sequence; otherwise every step is attempted and failures are
// joined.
func (o *Orchestrator) deactivate(ctx context.Context, failFast bool) error {
	if !o.running.Load() {
		return nil
	}
	started := time.Now()

	var errs error
	for i := len(o.stages) - 1; i >= 0; i-- {
		s := o.stages[i]
		if s.deactivate == nil {
			continue
		}
		errs = multierr.Append(errs, o.runStep(ctx, s.kind, domain.PhaseDeactivate, s.deactivate))
		if errs != nil && failFast {
			break
		}
	}

	if errs != nil {
		o.logger.Error("error stopping emulator", zap.Error(errs))
		o.recordFailure(ctx, domain.EventTypeStopFailed, errs)
		o.metrics.RecordTransition("stop", false, time.Since(started))
		return fmt.Errorf("stop emulator: %w", errs)
	}

	o.setState(domain.StateStopped)
	o.logger.Info("emulator stopped", zap.Duration("duration", time.Since(started)))
	o.recordTransition(ctx, domain.EventTypeStopped, nil)
	o.metrics.RecordTransition("stop", true, time.Since(started))
	return nil
}

// drainDataPlane closes the data-plane gate and waits up to StepTimeout for
// calls already inside an engine. Release proceeds either way.
func (o *Orchestrator) drainDataPlane(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, o.cfg.StepTimeout)
	defer cancel()

	inflight, err := o.gate.close(waitCtx)
	if err == nil {
		return nil
	}
	o.logger.Error("data-plane calls still in flight at release",
		zap.Int("inflight", inflight),
		zap.Duration("timeout", o.cfg.StepTimeout))
	return fmt.Errorf("%w waiting for %d data-plane calls after %s",
		domain.ErrStepTimeout, inflight, o.cfg.StepTimeout)
}

func (o *Orchestrator) cleanup(ctx context.Context) error {
	if o.State() == domain.StateReleased {
		return nil
	}
	started := time.Now()

	var errs error
	if err := o.deactivate(ctx, false); err != nil {
		errs = multierr.Append(errs, err)
	}

	errs = multierr.Append(errs, o.drainDataPlane(ctx))
	for i := len(o.stages) - 1; i >= 0; i-- {
		s := o.stages[i]
		if !s.created() {
			continue
		}
		errs = multierr.Append(errs, o.runStep(ctx, s.kind, domain.PhaseRelease, s.release))
	}

	o.pool.Close()
	o.running.Store(false)
	o.setState(domain.StateReleased)

	if errs != nil {
		err := fmt.Errorf("%w: %w", domain.ErrCleanup, errs)
		o.logger.Error("error during cleanup", zap.Error(errs))
		o.recordFailure(ctx, domain.EventTypeCleanupFailed, err)
		o.metrics.RecordTransition("cleanup", false, time.Since(started))
		return err
	}

	o.logger.Info("emulator cleanup completed", zap.Duration("duration", time.Since(started)))
	o.recordTransition(ctx, domain.EventTypeReleased, nil)
	o.metrics.RecordTransition("cleanup", true, time.Since(started))
	return nil
}

func (o *Orchestrator) setState(st domain.State) {
	o.state.Store(int32(st))
	o.mu.Lock()
	o.updatedAt = time.Now()
	o.mu.Unlock()
	o.metrics.SetDeviceState(st)
}
