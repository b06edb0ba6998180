package memory

import (
	"context"
	"sync"

	"github.com/aescanero/emud/pkg/domain"
	"github.com/aescanero/emud/pkg/ports"
)

// subscription is one registered handler
type subscription struct {
	id      uint64
	handler ports.EventHandler
}

// InMemoryEventBus implements EventBus using in-memory handlers
type InMemoryEventBus struct {
	subscribers map[string][]subscription
	nextID      uint64
	mu          sync.RWMutex
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus() *InMemoryEventBus {
	return &InMemoryEventBus{
		subscribers: make(map[string][]subscription),
	}
}

// Publish delivers an event to every subscriber of a topic. Handlers run
// asynchronously; their errors are ignored.
func (e *InMemoryEventBus) Publish(ctx context.Context, topic string, event domain.Event) error {
	e.mu.RLock()
	subs := make([]subscription, len(e.subscribers[topic]))
	copy(subs, e.subscribers[topic])
	e.mu.RUnlock()

	for _, sub := range subs {
		go func(h ports.EventHandler) {
			_ = h(context.WithoutCancel(ctx), event)
		}(sub.handler)
	}

	return nil
}

// Subscribe registers handler on topic until ctx is cancelled
func (e *InMemoryEventBus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) error {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.subscribers[topic] = append(e.subscribers[topic], subscription{id: id, handler: handler})
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.unsubscribe(topic, id)
	}()

	return nil
}

// Subscribers returns the number of handlers registered on topic
func (e *InMemoryEventBus) Subscribers(topic string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subscribers[topic])
}

// Close closes the event bus and drops all subscribers
func (e *InMemoryEventBus) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.subscribers = make(map[string][]subscription)
	return nil
}

// unsubscribe removes a handler from a topic
func (e *InMemoryEventBus) unsubscribe(topic string, id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	subs := e.subscribers[topic]
	for i, s := range subs {
		if s.id == id {
			e.subscribers[topic] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}
