package workers

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Future is the eventual result of a submitted task.
type Future[T any] struct {
	id   string
	name string

	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

func newFuture[T any](name string) *Future[T] {
	return &Future[T]{
		id:   uuid.New().String(),
		name: name,
		done: make(chan struct{}),
	}
}

// Completed returns a future that is already resolved.
func Completed[T any](name string, value T, err error) *Future[T] {
	f := newFuture[T](name)
	f.complete(value, err)
	return f
}

// ID returns the task ID.
func (f *Future[T]) ID() string { return f.id }

// Name returns the task name.
func (f *Future[T]) Name() string { return f.name }

// Done is closed once the task has finished.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Ready reports whether the task has finished.
func (f *Future[T]) Ready() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Await blocks until the task finishes or ctx is done. Abandoning the wait
// does not cancel the task.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// OnComplete runs fn with the task result once it is available.
func (f *Future[T]) OnComplete(fn func(T, error)) {
	go func() {
		<-f.done
		fn(f.value, f.err)
	}()
}

func (f *Future[T]) complete(value T, err error) {
	f.once.Do(func() {
		f.value = value
		f.err = err
		close(f.done)
	})
}
