package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aescanero/emud/pkg/domain"
	"github.com/aescanero/emud/pkg/ports"
	"go.uber.org/zap"
)

// ErrTaskPanicked wraps a panic raised by a task.
var ErrTaskPanicked = errors.New("task panicked")

// Pool manages a pool of worker goroutines
type Pool struct {
	size    int
	metrics ports.MetricsCollector
	logger  *zap.Logger
	health  *HealthMonitor

	workers []*worker
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []*task
	lanes   map[string]chan struct{}
	started bool
	closed  bool
}

// task is one queued unit of work
type task struct {
	id    string
	name  string
	lane  string
	after <-chan struct{}
	done  chan struct{}
	run   func(ctx context.Context)
	fail  func(err error)
}

// worker represents a single worker goroutine
type worker struct {
	id      string
	pool    *Pool
	status  WorkerStatus
	mu      sync.RWMutex
	lastJob time.Time
}

// WorkerStatus represents worker status
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusBusy    WorkerStatus = "busy"
	WorkerStatusStopped WorkerStatus = "stopped"
)

// NewPool creates a new worker pool
func NewPool(
	size int,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	healthCheckInterval time.Duration,
) *Pool {
	if size < 1 {
		size = 1
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	pool := &Pool{
		size:    size,
		metrics: metrics,
		logger:  logger,
		workers: make([]*worker, size),
		ctx:     ctx,
		cancel:  cancel,
		lanes:   make(map[string]chan struct{}),
	}
	pool.cond = sync.NewCond(&pool.mu)
	pool.health = NewHealthMonitor(pool, healthCheckInterval, logger)

	return pool
}

// Start starts the worker pool
func (p *Pool) Start() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return domain.ErrPoolClosed
	}
	if p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = true
	p.mu.Unlock()

	p.logger.Info("starting worker pool", zap.Int("size", p.size))

	for i := 0; i < p.size; i++ {
		w := &worker{
			id:      fmt.Sprintf("worker-%d", i),
			pool:    p,
			status:  WorkerStatusIdle,
			lastJob: time.Now(),
		}
		p.workers[i] = w

		p.wg.Add(1)
		go w.run()
	}

	p.health.Start()

	p.logger.Info("worker pool started", zap.Int("workers", p.size))
	return nil
}

// Submit queues fn on the pool and returns its future. Tasks sharing a
// non-empty lane run one at a time in submission order. A task must not
// await another task queued behind it on its own lane.
func Submit[T any](p *Pool, lane, name string, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := newFuture[T](name)
	t := &task{
		id:   f.id,
		name: name,
		lane: lane,
		done: f.done,
		run: func(ctx context.Context) {
			v, err := fn(ctx)
			f.complete(v, err)
		},
		fail: func(err error) {
			var zero T
			f.complete(zero, err)
		},
	}
	if err := p.enqueue(t); err != nil {
		t.fail(err)
	}
	return f
}

func (p *Pool) enqueue(t *task) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		p.logger.Warn("task rejected, pool closed",
			zap.String("task_id", t.id),
			zap.String("task", t.name))
		return domain.ErrPoolClosed
	}

	if t.lane != "" {
		t.after = p.lanes[t.lane]
		p.lanes[t.lane] = t.done
	}
	p.queue = append(p.queue, t)
	p.cond.Signal()
	return nil
}

// next blocks until a task is available. It returns nil once the pool is
// closed and the queue is drained.
func (p *Pool) next() *task {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.queue) == 0 && !p.closed {
		p.cond.Wait()
	}
	if len(p.queue) == 0 {
		return nil
	}
	t := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	return t
}

func (p *Pool) finish(t *task) {
	if t.lane == "" {
		return
	}
	p.mu.Lock()
	if p.lanes[t.lane] == t.done {
		delete(p.lanes, t.lane)
	}
	p.mu.Unlock()
}

// Pending returns the number of queued tasks not yet picked up by a worker.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Closed reports whether the pool has stopped accepting tasks.
func (p *Pool) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close stops accepting new tasks and returns without waiting. Queued tasks
// still run. Safe to call from inside a task.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	p.health.Stop()
	p.logger.Info("worker pool closed")
}

// Shutdown closes the pool and waits for queued tasks to finish. If ctx
// expires first, the context handed to running tasks is cancelled.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.logger.Info("shutting down worker pool")

	p.Close()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		p.logger.Info("worker pool shut down complete")
		return nil
	case <-ctx.Done():
		p.cancel()
		return fmt.Errorf("shutdown timeout: %w", ctx.Err())
	}
}

// GetStatus returns the status of all workers
func (p *Pool) GetStatus() map[string]WorkerStatus {
	status := make(map[string]WorkerStatus)
	for _, w := range p.workers {
		if w == nil {
			continue
		}
		w.mu.RLock()
		status[w.id] = w.status
		w.mu.RUnlock()
	}
	return status
}

// run is the main worker loop
func (w *worker) run() {
	defer w.pool.wg.Done()

	w.pool.logger.Debug("worker started", zap.String("worker_id", w.id))

	for {
		t := w.pool.next()
		if t == nil {
			break
		}
		w.execute(t)
	}

	w.setStatus(WorkerStatusStopped)
	w.pool.logger.Debug("worker stopped", zap.String("worker_id", w.id))
}

// execute runs a single task once its lane predecessor has finished
func (w *worker) execute(t *task) {
	if t.after != nil {
		<-t.after
	}

	w.mu.Lock()
	w.status = WorkerStatusBusy
	w.lastJob = time.Now()
	w.mu.Unlock()

	defer func() {
		w.setStatus(WorkerStatusIdle)
		w.pool.finish(t)
	}()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			w.pool.logger.Error("task panicked",
				zap.String("worker_id", w.id),
				zap.String("task_id", t.id),
				zap.String("task", t.name),
				zap.Any("panic", r))
			t.fail(fmt.Errorf("%w: %s: %v", ErrTaskPanicked, t.name, r))
		}
	}()

	t.run(w.pool.ctx)

	w.pool.logger.Debug("task completed",
		zap.String("worker_id", w.id),
		zap.String("task_id", t.id),
		zap.String("task", t.name),
		zap.Duration("duration", time.Since(start)))
}

func (w *worker) setStatus(status WorkerStatus) {
	w.mu.Lock()
	w.status = status
	w.mu.Unlock()
}
