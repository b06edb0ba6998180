package sim

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aescanero/emud/pkg/domain"
	"go.uber.org/zap"
)

// cycleInterval is how often a running CPU advances its cycle counter.
const cycleInterval = time.Millisecond

var errCPUNotInitialized = errors.New("cpu not initialized")

// CPU is a simulated processor holding a program image
type CPU struct {
	opts   Options
	logger *zap.Logger

	mu          sync.Mutex
	initialized bool
	memorySize  int
	image       []byte
	pc          uint64

	cycles atomic.Uint64
	stop   chan struct{}
	done   chan struct{}
}

// NewCPU creates an uninitialized CPU
func NewCPU(opts Options) *CPU {
	return &CPU{opts: opts, logger: opts.logger(domain.SubsystemCPU)}
}

// Init sizes the CPU memory. Memory is not allocated until a program loads.
func (c *CPU) Init(ctx context.Context, memorySize int) domain.Status {
	if c.opts.failsInit(domain.SubsystemCPU) || memorySize <= 0 {
		c.logger.Error("cpu init refused", zap.Int("memory_size", memorySize))
		return statusFailed
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.initialized = true
	c.memorySize = memorySize
	c.image = nil
	c.pc = 0
	c.logger.Info("cpu initialized", zap.Int("memory_size", memorySize))
	return domain.StatusOK
}

// Start begins advancing the cycle counter. Starting a running CPU is a no-op.
func (c *CPU) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return errCPUNotInitialized
	}
	if c.stop != nil {
		return nil
	}

	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.execute(c.stop, c.done)
	c.logger.Info("cpu started")
	return nil
}

func (c *CPU) execute(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(cycleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.cycles.Add(1)
		}
	}
}

// Stop halts execution and waits for it to wind down, bounded by ctx.
func (c *CPU) Stop(ctx context.Context) error {
	c.mu.Lock()
	stop, done := c.stop, c.done
	c.stop, c.done = nil, nil
	c.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)

	select {
	case <-done:
		c.logger.Info("cpu stopped", zap.Uint64("cycles", c.cycles.Load()))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cleanup stops the CPU and drops its memory image
func (c *CPU) Cleanup(ctx context.Context) error {
	if err := c.Stop(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.initialized = false
	c.image = nil
	c.logger.Info("cpu cleanup complete")
	return nil
}

// LoadProgram copies program into memory and resets the program counter.
// Programs larger than memory are rejected.
func (c *CPU) LoadProgram(program []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return false
	}
	if len(program) > c.memorySize {
		c.logger.Error("program exceeds memory",
			zap.Int("size", len(program)),
			zap.Int("memory_size", c.memorySize))
		return false
	}

	c.image = append(c.image[:0], program...)
	c.pc = 0
	c.logger.Info("program loaded", zap.Int("size", len(program)))
	return true
}

// ProgramSize returns the size of the loaded program image
func (c *CPU) ProgramSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.image)
}

// Cycles returns the number of cycles executed so far
func (c *CPU) Cycles() uint64 { return c.cycles.Load() }

// Running reports whether the CPU is executing
func (c *CPU) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stop != nil
}
