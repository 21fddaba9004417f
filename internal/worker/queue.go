// Package worker provides the queue and task primitives the conversation
// pipeline is built from: unbounded FIFO queues, level-triggered signals,
// single-shot trackers, interruptible events registered on a
// conversation-scoped registry, and the worker loops that consume them.
//
// # Architecture
//
// Every pipeline stage is a goroutine looping over a [Queue]. Stages that
// carry user-visible work consume [Event] values created through a
// [Registry], so that a single broadcast can interrupt everything in flight.
// Blocking I/O (file writes, codecs) sits behind a [BlockingWorker] so the
// cooperative stages never share a call stack with a syscall that can stall.
package worker

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed is returned by [Queue.Get] once the queue is closed and
// fully drained.
var ErrQueueClosed = errors.New("worker: queue closed")

// Queue is an unbounded FIFO queue safe for concurrent producers and
// consumers. Put never blocks; the natural rate limit of the pipeline is the
// paced emitter downstream, not queue capacity.
//
// Closing the queue wakes blocked getters. Items enqueued before Close are
// still delivered; Get reports ErrQueueClosed only once the backlog is
// drained.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	head   int
	closed bool

	wake chan struct{}
	done chan struct{}
}

// NewQueue returns an empty open queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Put appends item to the queue. It never blocks. Items put after Close are
// silently dropped, so producers may race termination.
func (q *Queue[T]) Put(item T) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, item)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Get blocks until an item is available, ctx is done, or the queue is closed
// and drained. The error is ctx.Err() or ErrQueueClosed respectively.
func (q *Queue[T]) Get(ctx context.Context) (T, error) {
	var zero T
	for {
		if item, ok := q.TryGet(); ok {
			return item, nil
		}

		q.mu.Lock()
		closed := q.closed && q.head >= len(q.items)
		q.mu.Unlock()
		if closed {
			return zero, ErrQueueClosed
		}

		select {
		case <-q.wake:
		case <-q.done:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// TryGet pops the head of the queue without blocking.
func (q *Queue[T]) TryGet() (T, bool) {
	q.mu.Lock()
	if q.head >= len(q.items) {
		q.mu.Unlock()
		var zero T
		return zero, false
	}

	item := q.items[q.head]
	var zero T
	q.items[q.head] = zero
	q.head++
	remaining := len(q.items) - q.head
	if remaining == 0 {
		q.items = q.items[:0]
		q.head = 0
	}
	q.mu.Unlock()

	// A single wake token can be swallowed by one of several waiters; if a
	// backlog remains, re-raise it so the next waiter proceeds.
	if remaining > 0 {
		select {
		case q.wake <- struct{}{}:
		default:
		}
	}
	return item, true
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Close marks the queue closed and wakes all blocked getters. Safe to call
// more than once.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
	q.mu.Unlock()
}
