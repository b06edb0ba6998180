// Package sim provides in-process CPU, GPU, audio and network engines. They
// honor the engine contracts (status codes, bounds, data-plane results)
// without emulating any instruction set, pixel pipeline, audio device or
// wire protocol.
package sim

import (
	"github.com/aescanero/emud/pkg/domain"
	"github.com/aescanero/emud/pkg/ports"
	"go.uber.org/zap"
)

// statusFailed is returned by Init when the engine refuses to start.
const statusFailed domain.Status = -1

// Options configure the simulated engines
type Options struct {
	// FailInit makes Init of the listed subsystems return a failure status.
	FailInit []domain.SubsystemKind

	// AutoAccept lets Send open a connection on first use instead of
	// requiring Connect.
	AutoAccept bool

	// AudioQueueDepth bounds the number of queued audio buffers.
	AudioQueueDepth int

	Logger *zap.Logger
}

func (o Options) failsInit(kind domain.SubsystemKind) bool {
	for _, k := range o.FailInit {
		if k == kind {
			return true
		}
	}
	return false
}

func (o Options) logger(kind domain.SubsystemKind) *zap.Logger {
	l := o.Logger
	if l == nil {
		l = zap.NewNop()
	}
	return l.With(zap.String("engine", "sim"), zap.String("subsystem", string(kind)))
}

// Factories returns engine factories producing a fresh simulated engine per
// call.
func Factories(opts Options) ports.EngineFactories {
	return ports.EngineFactories{
		CPU:     func() (ports.CPUEngine, error) { return NewCPU(opts), nil },
		GPU:     func() (ports.GPUEngine, error) { return NewGPU(opts), nil },
		Audio:   func() (ports.AudioEngine, error) { return NewAudio(opts), nil },
		Network: func() (ports.NetworkEngine, error) { return NewNetwork(opts), nil },
	}
}
