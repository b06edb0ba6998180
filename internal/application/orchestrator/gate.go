package orchestrator

import (
	"context"
	"sync"
)

// dataGate admits data-plane calls until it is closed. Closing waits for the
// calls already admitted, bounded by the caller's context.
type dataGate struct {
	mu      sync.Mutex
	closed  bool
	active  int
	drained chan struct{}
}

// enter admits one call. It reports false once the gate is closed.
func (g *dataGate) enter() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	g.active++
	return true
}

func (g *dataGate) leave() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.active--
	if g.active == 0 && g.drained != nil {
		close(g.drained)
		g.drained = nil
	}
}

// close rejects new calls and waits until every admitted call has left or
// ctx is done. It returns the number of calls still in flight on timeout.
func (g *dataGate) close(ctx context.Context) (int, error) {
	g.mu.Lock()
	g.closed = true
	if g.active == 0 {
		g.mu.Unlock()
		return 0, nil
	}
	if g.drained == nil {
		g.drained = make(chan struct{})
	}
	drained := g.drained
	g.mu.Unlock()

	select {
	case <-drained:
		return 0, nil
	case <-ctx.Done():
		g.mu.Lock()
		defer g.mu.Unlock()
		return g.active, ctx.Err()
	}
}
