package fetchqueue

import (
	"context"
	"sync"
)

// Future is the eventual outcome of an operation added to a Queue.
// It settles exactly once.
type Future[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) settle(v T, err error) {
	f.once.Do(func() {
		f.value, f.err = v, err
		close(f.done)
	})
}

// Done is closed once the outcome is available
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Result blocks until the operation settles and returns its outcome
func (f *Future[T]) Result() (T, error) {
	<-f.done
	return f.value, f.err
}

// Wait is Result bounded by ctx. Cancelling ctx stops the wait only; the
// operation itself keeps running.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
