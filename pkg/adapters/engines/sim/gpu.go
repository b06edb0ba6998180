package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aescanero/emud/pkg/domain"
	"go.uber.org/zap"
)

// bytesPerPixel of the RGBA frame buffer.
const bytesPerPixel = 4

var errGPUNotInitialized = errors.New("gpu not initialized")

// GPU is a simulated graphics processor with an RGBA frame buffer
type GPU struct {
	opts   Options
	logger *zap.Logger

	mu     sync.RWMutex
	width  int
	height int
	frame  []byte
	frames uint64
}

// NewGPU creates an uninitialized GPU
func NewGPU(opts Options) *GPU {
	return &GPU{opts: opts, logger: opts.logger(domain.SubsystemGPU)}
}

// Init allocates a width*height frame buffer
func (g *GPU) Init(ctx context.Context, width, height int) domain.Status {
	if g.opts.failsInit(domain.SubsystemGPU) || width <= 0 || height <= 0 {
		g.logger.Error("gpu init refused", zap.Int("width", width), zap.Int("height", height))
		return statusFailed
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.width, g.height = width, height
	g.frame = make([]byte, width*height*bytesPerPixel)
	g.frames = 0
	g.logger.Info("gpu initialized", zap.Int("width", width), zap.Int("height", height))
	return domain.StatusOK
}

// Render draws count vertices of three components each
func (g *GPU) Render(ctx context.Context, vertices []float32, count int) error {
	if count < 0 || count*3 > len(vertices) {
		return fmt.Errorf("vertex count %d exceeds %d components", count, len(vertices))
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.frame == nil {
		return errGPUNotInitialized
	}
	g.frames++
	g.logger.Debug("frame rendered", zap.Int("vertices", count), zap.Uint64("frame", g.frames))
	return nil
}

// Cleanup releases the frame buffer
func (g *GPU) Cleanup(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.frame = nil
	g.logger.Info("gpu cleanup complete", zap.Uint64("frames", g.frames))
	return nil
}

// GetFrameBuffer returns a copy of the current frame, or nil before Init
func (g *GPU) GetFrameBuffer() []byte {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.frame == nil {
		return nil
	}
	out := make([]byte, len(g.frame))
	copy(out, g.frame)
	return out
}

// Frames returns the number of frames rendered
func (g *GPU) Frames() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.frames
}
