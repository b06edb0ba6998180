package ports

import (
	"context"

	"github.com/aescanero/emud/pkg/domain"
)

// ProgramLoader copies a program image into emulated memory.
type ProgramLoader interface {
	LoadProgram(program []byte) bool
}

// FrameSource exposes the current rendered frame.
type FrameSource interface {
	GetFrameBuffer() []byte
}

// AudioSink accepts PCM samples for playback.
type AudioSink interface {
	QueueAudio(samples []int16) bool
}

// PacketSender writes a payload to an open connection.
type PacketSender interface {
	Send(connectionID int, data []byte) bool
}

// CPUEngine is the instruction execution engine.
type CPUEngine interface {
	Init(ctx context.Context, memorySize int) domain.Status
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Cleanup(ctx context.Context) error
	ProgramLoader
}

// GPUEngine is the rasterizer.
type GPUEngine interface {
	Init(ctx context.Context, width, height int) domain.Status
	Render(ctx context.Context, vertices []float32, count int) error
	Cleanup(ctx context.Context) error
	FrameSource
}

// AudioEngine is the mixing and playback pipeline.
type AudioEngine interface {
	Init(ctx context.Context) domain.Status
	Play(ctx context.Context) error
	Stop(ctx context.Context) error
	Cleanup(ctx context.Context) error
	AudioSink
}

// NetworkEngine is the packet stack.
type NetworkEngine interface {
	Init(ctx context.Context, port int) domain.Status
	Cleanup(ctx context.Context) error
	PacketSender
}

// EngineFactories construct fresh engine handles. They are injected into the
// orchestrator so engine linkage is an explicit construction step.
type EngineFactories struct {
	CPU     func() (CPUEngine, error)
	GPU     func() (GPUEngine, error)
	Audio   func() (AudioEngine, error)
	Network func() (NetworkEngine, error)
}
