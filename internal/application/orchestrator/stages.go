package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aescanero/emud/pkg/domain"
	"go.uber.org/zap"
)

// placeholderTriangle is the smoke-test geometry drawn on start.
var placeholderTriangle = []float32{
	-1.0, -1.0, 0.0,
	1.0, -1.0, 0.0,
	0.0, 1.0, 0.0,
}

// stage adapts one engine to the uniform lifecycle the orchestrator drives.
// A nil activate or deactivate means the engine takes no part in that phase.
type stage struct {
	kind       domain.SubsystemKind
	construct  func() error
	created    func() bool
	init       func(ctx context.Context) domain.Status
	activate   func(ctx context.Context) error
	deactivate func(ctx context.Context) error
	release    func(ctx context.Context) error
}

// buildStages returns the stages in initialization order.
func (o *Orchestrator) buildStages() []stage {
	dev := o.cfg.Device
	return []stage{
		{
			kind: domain.SubsystemCPU,
			construct: func() error {
				e, err := o.factories.CPU()
				if err != nil || e == nil {
					return constructErr(err)
				}
				o.cpu = e
				return nil
			},
			created: func() bool { return o.cpu != nil },
			init: func(ctx context.Context) domain.Status {
				return o.cpu.Init(ctx, dev.MemorySize)
			},
			activate:   func(ctx context.Context) error { return o.cpu.Start(ctx) },
			deactivate: func(ctx context.Context) error { return o.cpu.Stop(ctx) },
			release:    func(ctx context.Context) error { return o.cpu.Cleanup(ctx) },
		},
		{
			kind: domain.SubsystemGPU,
			construct: func() error {
				e, err := o.factories.GPU()
				if err != nil || e == nil {
					return constructErr(err)
				}
				o.gpu = e
				return nil
			},
			created: func() bool { return o.gpu != nil },
			init: func(ctx context.Context) domain.Status {
				return o.gpu.Init(ctx, dev.ScreenWidth, dev.ScreenHeight)
			},
			activate: func(ctx context.Context) error {
				return o.gpu.Render(ctx, placeholderTriangle, len(placeholderTriangle)/3)
			},
			release: func(ctx context.Context) error { return o.gpu.Cleanup(ctx) },
		},
		{
			kind: domain.SubsystemAudio,
			construct: func() error {
				e, err := o.factories.Audio()
				if err != nil || e == nil {
					return constructErr(err)
				}
				o.audio = e
				return nil
			},
			created:    func() bool { return o.audio != nil },
			init:       func(ctx context.Context) domain.Status { return o.audio.Init(ctx) },
			activate:   func(ctx context.Context) error { return o.audio.Play(ctx) },
			deactivate: func(ctx context.Context) error { return o.audio.Stop(ctx) },
			release:    func(ctx context.Context) error { return o.audio.Cleanup(ctx) },
		},
		{
			kind: domain.SubsystemNetwork,
			construct: func() error {
				e, err := o.factories.Network()
				if err != nil || e == nil {
					return constructErr(err)
				}
				o.network = e
				return nil
			},
			created: func() bool { return o.network != nil },
			init: func(ctx context.Context) domain.Status {
				return o.network.Init(ctx, dev.NetworkPort)
			},
			release: func(ctx context.Context) error { return o.network.Cleanup(ctx) },
		},
	}
}

// construct runs the stage's engine factory, converting a panic into an error.
func construct(s stage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", domain.ErrStepPanicked, r)
		}
	}()
	return s.construct()
}

var errNilEngine = errors.New("engine factory returned nil")

func constructErr(err error) error {
	if err != nil {
		return fmt.Errorf("construct engine: %w", err)
	}
	return errNilEngine
}

// runStep runs one subsystem call bounded by the step timeout. Panics are
// converted into errors. A call that outlives its timeout keeps running in
// the background; its result is discarded.
func (o *Orchestrator) runStep(ctx context.Context, kind domain.SubsystemKind, phase domain.Phase, fn func(ctx context.Context) error) error {
	stepCtx, cancel := context.WithTimeout(ctx, o.cfg.StepTimeout)
	defer cancel()

	started := time.Now()
	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				errCh <- fmt.Errorf("%w: %v", domain.ErrStepPanicked, r)
			}
		}()
		errCh <- fn(stepCtx)
	}()

	var err error
	select {
	case err = <-errCh:
	case <-stepCtx.Done():
		if errors.Is(stepCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("%w after %s", domain.ErrStepTimeout, o.cfg.StepTimeout)
		} else {
			err = ctx.Err()
		}
	}
	duration := time.Since(started)
	o.metrics.ObserveStep(kind, phase, err == nil, duration)

	if err != nil {
		o.logger.Error("subsystem step failed",
			zap.String("subsystem", string(kind)),
			zap.String("phase", string(phase)),
			zap.Duration("duration", duration),
			zap.Error(err))
		return &domain.StepError{Subsystem: kind, Phase: phase, Err: err}
	}

	o.logger.Debug("subsystem step completed",
		zap.String("subsystem", string(kind)),
		zap.String("phase", string(phase)),
		zap.Duration("duration", duration))
	return nil
}
