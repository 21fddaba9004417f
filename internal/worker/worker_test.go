package worker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/colloquy-ai/colloquy/internal/worker"
)

func TestQueueWorker_ProcessesInOrder(t *testing.T) {
	t.Parallel()

	q := worker.NewQueue[int]()
	var mu sync.Mutex
	var got []int
	third := make(chan struct{})

	w := worker.NewQueueWorker(q, func(_ context.Context, v int) {
		mu.Lock()
		got = append(got, v)
		n := len(got)
		mu.Unlock()
		if n == 3 {
			close(third)
		}
	})
	w.Start(context.Background())
	defer w.Terminate()

	q.Put(1)
	q.Put(2)
	q.Put(3)

	select {
	case <-third:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not process all items")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, want := range []int{1, 2, 3} {
		if got[i] != want {
			t.Errorf("got[%d] = %d, want %d", i, got[i], want)
		}
	}
}

func TestQueueWorker_TerminateWaitsForInFlight(t *testing.T) {
	t.Parallel()

	q := worker.NewQueue[int]()
	started := make(chan struct{})
	var finished bool
	var mu sync.Mutex

	w := worker.NewQueueWorker(q, func(_ context.Context, _ int) {
		close(started)
		time.Sleep(50 * time.Millisecond)
		mu.Lock()
		finished = true
		mu.Unlock()
	})
	w.Start(context.Background())

	q.Put(1)
	<-started
	w.Terminate()

	mu.Lock()
	defer mu.Unlock()
	if !finished {
		t.Fatal("Terminate returned before in-flight item finished")
	}
}

func TestQueueWorker_TerminateBeforeStart(t *testing.T) {
	t.Parallel()

	w := worker.NewQueueWorker(worker.NewQueue[int](), func(context.Context, int) {})
	w.Terminate()
	w.Terminate()
}

func TestInterruptibleWorker_SkipsInterruptedAtDequeue(t *testing.T) {
	t.Parallel()

	r := worker.NewRegistry()
	q := worker.NewQueue[*worker.Event[string]]()

	var mu sync.Mutex
	var got []string
	seen := make(chan struct{}, 4)

	w := worker.NewInterruptibleWorker(q, func(_ context.Context, ev *worker.Event[string]) {
		mu.Lock()
		got = append(got, ev.Payload)
		mu.Unlock()
		seen <- struct{}{}
	})

	stale := worker.Register(r, "stale")
	stale.Interrupt()
	q.Put(stale)
	q.Put(worker.Register(r, "live"))

	w.Start(context.Background())
	defer w.Terminate()

	select {
	case <-seen:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not process the live event")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "live" {
		t.Errorf("processed = %v, want [live]", got)
	}
}

func TestInterruptibleWorker_InterruptCancelsInFlight(t *testing.T) {
	t.Parallel()

	r := worker.NewRegistry()
	q := worker.NewQueue[*worker.Event[string]]()

	started := make(chan struct{})
	cancelled := make(chan struct{})

	w := worker.NewInterruptibleWorker(q, func(ctx context.Context, _ *worker.Event[string]) {
		close(started)
		select {
		case <-ctx.Done():
			close(cancelled)
		case <-time.After(5 * time.Second):
		}
	})
	w.Start(context.Background())
	defer w.Terminate()

	ev := worker.Register(r, "speech")
	q.Put(ev)
	<-started

	ev.Interrupt()

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight process not cancelled by interruption")
	}
}

func TestInterruptibleWorker_CancelCurrent(t *testing.T) {
	t.Parallel()

	r := worker.NewRegistry()
	q := worker.NewQueue[*worker.Event[string]]()

	started := make(chan struct{})
	cancelled := make(chan struct{})

	w := worker.NewInterruptibleWorker(q, func(ctx context.Context, _ *worker.Event[string]) {
		close(started)
		select {
		case <-ctx.Done():
			close(cancelled)
		case <-time.After(5 * time.Second):
		}
	})
	w.Start(context.Background())
	defer w.Terminate()

	if w.CancelCurrent() {
		t.Error("CancelCurrent() = true with nothing in flight")
	}

	q.Put(worker.Register(r, "speech"))
	<-started

	if !w.CancelCurrent() {
		t.Error("CancelCurrent() = false with interruptible work in flight")
	}
	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight process not cancelled by CancelCurrent")
	}
}

func TestInterruptibleWorker_CancelCurrentRefusesNonInterruptible(t *testing.T) {
	t.Parallel()

	r := worker.NewRegistry()
	q := worker.NewQueue[*worker.Event[string]]()

	started := make(chan struct{})
	release := make(chan struct{})

	w := worker.NewInterruptibleWorker(q, func(ctx context.Context, _ *worker.Event[string]) {
		close(started)
		select {
		case <-release:
		case <-ctx.Done():
		}
	})
	w.Start(context.Background())
	defer w.Terminate()

	q.Put(worker.Register(r, "greeting", worker.NonInterruptible()))
	<-started

	if w.CancelCurrent() {
		t.Error("CancelCurrent() = true for non-interruptible in-flight work")
	}
	close(release)
}

func TestBlockingWorker_TerminateDrainsBacklog(t *testing.T) {
	t.Parallel()

	q := worker.NewQueue[int]()
	var mu sync.Mutex
	var got []int

	w := worker.NewBlockingWorker(q, func(v int) {
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
	})
	w.Start(context.Background())

	for i := range 10 {
		q.Put(i)
	}
	w.Terminate()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 10 {
		t.Fatalf("processed %d items, want 10", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Errorf("got[%d] = %d, want %d", i, v, i)
		}
	}
}

func TestBlockingWorker_TerminateBeforeStart(t *testing.T) {
	t.Parallel()

	w := worker.NewBlockingWorker(worker.NewQueue[int](), func(int) {})
	w.Terminate()
}
