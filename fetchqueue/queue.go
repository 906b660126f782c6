// Package fetchqueue runs asynchronous operations with a fixed upper bound
// on how many execute at once. Excess operations wait in FIFO order.
//
// The queue accepts any number of pending operations and never times out or
// cancels a dispatched one: a stuck operation holds its slot until it
// returns.
package fetchqueue

import (
	"fmt"
	"sync"
)

// DefaultMaxConcurrent is the slot count used for avatar fetches
const DefaultMaxConcurrent = 3

// Operation is one unit of work. Its return values settle the Future that
// Add hands back.
type Operation[T any] func() (T, error)

type task[T any] struct {
	op     Operation[T]
	future *Future[T]
}

// Queue admits operations in FIFO order and runs at most maxConcurrent of
// them at a time.
type Queue[T any] struct {
	maxConcurrent int

	// mu guards running and pending. A task leaves pending at the same
	// instant it is counted in running.
	mu      sync.Mutex
	running int
	pending []*task[T]
}

// New creates a queue. maxConcurrent below 1 is treated as 1.
func New[T any](maxConcurrent int) *Queue[T] {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Queue[T]{maxConcurrent: maxConcurrent}
}

// MaxConcurrent returns the slot count fixed at construction
func (q *Queue[T]) MaxConcurrent() int {
	return q.maxConcurrent
}

// Add enqueues op and returns a Future that settles with op's outcome.
// It never blocks and always accepts the operation.
func (q *Queue[T]) Add(op Operation[T]) *Future[T] {
	f := newFuture[T]()

	q.mu.Lock()
	q.pending = append(q.pending, &task[T]{op: op, future: f})
	q.dispatchLocked()
	q.mu.Unlock()

	return f
}

// Running returns how many operations are executing right now
func (q *Queue[T]) Running() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

// Pending returns how many operations are waiting for a slot
func (q *Queue[T]) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// dispatchLocked moves tasks from the front of pending into execution until
// every slot is taken or nothing is left. Callers hold q.mu.
func (q *Queue[T]) dispatchLocked() {
	for q.running < q.maxConcurrent && len(q.pending) > 0 {
		t := q.pending[0]

		// clear the slot so the backing array does not pin the task
		q.pending[0] = nil
		if len(q.pending) == 1 {
			q.pending = q.pending[:0]
		} else {
			q.pending = q.pending[1:]
		}

		q.running++
		go q.run(t)
	}
}

func (q *Queue[T]) run(t *task[T]) {
	v, err := invoke(t.op)
	t.future.settle(v, err)

	q.mu.Lock()
	q.running--
	q.dispatchLocked()
	q.mu.Unlock()
}

// invoke runs op and converts a panic into an error so the slot is always
// released.
func invoke[T any](op Operation[T]) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetchqueue: operation panicked: %v", r)
		}
	}()
	return op()
}
