package worker

import (
	"context"
	"sync"
)

// QueueWorker loops over an input queue, invoking process for each item in
// FIFO order. It exits when its context is cancelled or the queue is closed
// and drained.
type QueueWorker[T any] struct {
	in      *Queue[T]
	process func(context.Context, T)

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewQueueWorker wires a worker to its input queue and processing function.
// Start must be called before items are consumed.
func NewQueueWorker[T any](in *Queue[T], process func(context.Context, T)) *QueueWorker[T] {
	return &QueueWorker[T]{in: in, process: process}
}

// In returns the worker's input queue.
func (w *QueueWorker[T]) In() *Queue[T] { return w.in }

// Start launches the consume loop.
func (w *QueueWorker[T]) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go func() {
		defer close(w.done)
		for {
			item, err := w.in.Get(ctx)
			if err != nil {
				return
			}
			w.process(ctx, item)
		}
	}()
}

// Terminate stops the loop and waits for the in-flight item to finish.
// Idempotent; safe to call before Start.
func (w *QueueWorker[T]) Terminate() {
	w.once.Do(func() {
		if w.cancel != nil {
			w.cancel()
			<-w.done
		}
	})
}

// InterruptibleWorker consumes interruptible events. Items already
// interrupted at dequeue are discarded; for the rest, process runs under a
// per-item context that is cancelled the moment the event's interruption
// signal fires, so a broadcast tears the in-flight call down mid-suspension.
type InterruptibleWorker[T any] struct {
	in      *Queue[*Event[T]]
	process func(context.Context, *Event[T])

	mu                   sync.Mutex
	cancelCurrent        context.CancelFunc
	currentInterruptible bool

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewInterruptibleWorker wires an interruptible worker to its event queue.
func NewInterruptibleWorker[T any](in *Queue[*Event[T]], process func(context.Context, *Event[T])) *InterruptibleWorker[T] {
	return &InterruptibleWorker[T]{in: in, process: process}
}

// In returns the worker's input queue.
func (w *InterruptibleWorker[T]) In() *Queue[*Event[T]] { return w.in }

// Start launches the consume loop.
func (w *InterruptibleWorker[T]) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go func() {
		defer close(w.done)
		for {
			ev, err := w.in.Get(ctx)
			if err != nil {
				return
			}
			if ev.Interrupted() {
				continue
			}
			w.runOne(ctx, ev)
		}
	}()
}

// runOne executes process for a single event inside a cancellable scope tied
// to the event's interruption signal.
func (w *InterruptibleWorker[T]) runOne(ctx context.Context, ev *Event[T]) {
	itemCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ev.Interruption().Done():
			cancel()
		case <-watchDone:
		}
	}()

	w.mu.Lock()
	w.cancelCurrent = cancel
	w.currentInterruptible = ev.Interruptible()
	w.mu.Unlock()

	w.process(itemCtx, ev)

	w.mu.Lock()
	w.cancelCurrent = nil
	w.currentInterruptible = false
	w.mu.Unlock()
}

// CancelCurrent cancels only the in-flight process call, leaving the consume
// loop alive. It reports whether an interruptible call was actually
// cancelled.
func (w *InterruptibleWorker[T]) CancelCurrent() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancelCurrent == nil || !w.currentInterruptible {
		return false
	}
	w.cancelCurrent()
	return true
}

// Terminate stops the loop and waits for the in-flight event to finish.
// Idempotent; safe to call before Start.
func (w *InterruptibleWorker[T]) Terminate() {
	w.once.Do(func() {
		if w.cancel != nil {
			w.cancel()
			<-w.done
		}
	})
}

// BlockingWorker adapts a synchronous blocking consumer (file writes, codec
// calls) to the queue facade. The loop runs on its own goroutine so blocking
// syscalls never stall a pipeline stage; Terminate closes the queue and
// waits until the backlog is drained through process.
type BlockingWorker[T any] struct {
	in      *Queue[T]
	process func(T)

	done chan struct{}
	once sync.Once
}

// NewBlockingWorker wires a blocking worker to its input queue.
func NewBlockingWorker[T any](in *Queue[T], process func(T)) *BlockingWorker[T] {
	return &BlockingWorker[T]{in: in, process: process}
}

// In returns the worker's input queue.
func (w *BlockingWorker[T]) In() *Queue[T] { return w.in }

// Start launches the blocking consume loop. ctx aborts the loop without
// draining; orderly shutdown goes through Terminate.
func (w *BlockingWorker[T]) Start(ctx context.Context) {
	w.done = make(chan struct{})
	go func() {
		defer close(w.done)
		for {
			item, err := w.in.Get(ctx)
			if err != nil {
				return
			}
			w.process(item)
		}
	}()
}

// Terminate closes the input queue, lets the loop drain the backlog, and
// waits for it to exit. Idempotent; safe to call before Start.
func (w *BlockingWorker[T]) Terminate() {
	w.once.Do(func() {
		w.in.Close()
		if w.done != nil {
			<-w.done
		}
	})
}
