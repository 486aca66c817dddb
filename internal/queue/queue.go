// Package queue implements an unbounded, single-producer/multi-consumer
// FIFO with asynchronous non-empty waiting. It is the primitive component
// A of the multiplexing engine. No other package in this module imports
// it: the demultiplexer dispatches directly from its outstanding-calls map
// and the streaming driver drains an internal/outbox. It is small and
// dependency-free enough to double as a test mock's backing store.
//
// The wake-up mechanics are lifted from the fan-out pattern
// go-eventloop's promise type uses to notify every subscriber of a
// settled result: a push captures the current waiter list, clears it, and
// closes every channel in it, which wakes every listener registered
// before the push - no signal is lost, and no waiter can double-consume
// the wake-up that woke it.
package queue

import (
	"context"
	"sync"
)

// Queue is an unbounded FIFO of T. The zero value is not usable; construct
// with New.
type Queue[T any] struct {
	mu      sync.Mutex
	items   []T
	waiters []chan struct{}
}

// New returns an empty Queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Push appends item and wakes every waiter registered via NonEmpty or Pop
// at the moment of the call, in registration order. Push never blocks.
func (q *Queue[T]) Push(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	waiters := q.waiters
	q.waiters = nil
	q.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}
}

// Len returns the current queue size.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// PopSync returns and removes the front item, or the zero value and false
// if the queue is empty. It never blocks.
func (q *Queue[T]) PopSync() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return item, false
	}
	item = q.items[0]
	var zero T
	q.items[0] = zero // release the reference before shrinking the slice
	q.items = q.items[1:]
	return item, true
}

// NonEmpty blocks until the queue holds at least one item, without
// removing it. It returns ctx.Err() if ctx is done first.
func (q *Queue[T]) NonEmpty(ctx context.Context) error {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			q.mu.Unlock()
			return nil
		}
		ch := make(chan struct{})
		q.waiters = append(q.waiters, ch)
		q.mu.Unlock()

		select {
		case <-ch:
			// Re-check: another consumer may have popped the item that
			// woke us before we got scheduled.
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Pop asynchronously returns and removes the front item, waiting until one
// exists or ctx is done.
func (q *Queue[T]) Pop(ctx context.Context) (item T, err error) {
	for {
		if v, ok := q.PopSync(); ok {
			return v, nil
		}
		if err := q.NonEmpty(ctx); err != nil {
			var zero T
			return zero, err
		}
	}
}
