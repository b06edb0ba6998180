package sim

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aescanero/emud/pkg/domain"
	"go.uber.org/zap"
)

const (
	// BufferSize is the number of samples per queued buffer.
	BufferSize = 4096
	SampleRate = 44100
	Channels   = 2

	defaultQueueDepth = 64
)

// bufferPeriod is the playback time of one full buffer.
var bufferPeriod = time.Duration(BufferSize/Channels) * time.Second / SampleRate

var errAudioNotInitialized = errors.New("audio not initialized")

// Audio is a simulated audio output draining a bounded buffer queue
type Audio struct {
	opts   Options
	logger *zap.Logger
	depth  int

	mu          sync.Mutex
	initialized bool
	queue       [][]int16
	played      uint64

	stop chan struct{}
	done chan struct{}
}

// NewAudio creates an uninitialized audio engine
func NewAudio(opts Options) *Audio {
	depth := opts.AudioQueueDepth
	if depth <= 0 {
		depth = defaultQueueDepth
	}
	return &Audio{opts: opts, logger: opts.logger(domain.SubsystemAudio), depth: depth}
}

// Init prepares the output queue
func (a *Audio) Init(ctx context.Context) domain.Status {
	if a.opts.failsInit(domain.SubsystemAudio) {
		a.logger.Error("audio init refused")
		return statusFailed
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.initialized = true
	a.queue = nil
	a.logger.Info("audio initialized",
		zap.Int("sample_rate", SampleRate),
		zap.Int("channels", Channels),
		zap.Int("buffer_size", BufferSize))
	return domain.StatusOK
}

// Play starts draining the queue at the playback rate
func (a *Audio) Play(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.initialized {
		return errAudioNotInitialized
	}
	if a.stop != nil {
		return nil
	}

	a.stop = make(chan struct{})
	a.done = make(chan struct{})
	go a.drain(a.stop, a.done)
	a.logger.Info("audio playback started")
	return nil
}

func (a *Audio) drain(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(bufferPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			a.mu.Lock()
			if len(a.queue) > 0 {
				a.queue = a.queue[1:]
				a.played++
			}
			a.mu.Unlock()
		}
	}
}

// Stop halts playback and clears queued buffers
func (a *Audio) Stop(ctx context.Context) error {
	a.mu.Lock()
	stop, done := a.stop, a.done
	a.stop, a.done = nil, nil
	a.queue = nil
	a.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)

	select {
	case <-done:
		a.logger.Info("audio playback stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cleanup stops playback and releases the engine
func (a *Audio) Cleanup(ctx context.Context) error {
	if err := a.Stop(ctx); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.initialized = false
	a.logger.Info("audio cleanup complete", zap.Uint64("buffers_played", a.played))
	return nil
}

// QueueAudio splits samples into buffers and queues them. It returns false
// when the engine is not initialized, samples is empty or the queue cannot
// hold all resulting buffers.
func (a *Audio) QueueAudio(samples []int16) bool {
	if len(samples) == 0 {
		return false
	}
	needed := (len(samples) + BufferSize - 1) / BufferSize

	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.initialized {
		return false
	}
	if len(a.queue)+needed > a.depth {
		a.logger.Warn("audio queue full", zap.Int("queued", len(a.queue)), zap.Int("depth", a.depth))
		return false
	}

	for start := 0; start < len(samples); start += BufferSize {
		end := start + BufferSize
		if end > len(samples) {
			end = len(samples)
		}
		buf := make([]int16, end-start)
		copy(buf, samples[start:end])
		a.queue = append(a.queue, buf)
	}
	return true
}

// Queued returns the number of buffers waiting for playback
func (a *Audio) Queued() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.queue)
}

// Playing reports whether playback is active
func (a *Audio) Playing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stop != nil
}
