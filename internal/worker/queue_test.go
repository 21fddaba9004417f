package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/colloquy-ai/colloquy/internal/worker"
)

func TestQueue_FIFO(t *testing.T) {
	t.Parallel()

	q := worker.NewQueue[int]()
	for i := range 5 {
		q.Put(i)
	}
	if got := q.Len(); got != 5 {
		t.Fatalf("Len() = %d, want 5", got)
	}

	ctx := context.Background()
	for want := range 5 {
		got, err := q.Get(ctx)
		if err != nil {
			t.Fatalf("Get() error: %v", err)
		}
		if got != want {
			t.Errorf("Get() = %d, want %d", got, want)
		}
	}
}

func TestQueue_GetBlocksUntilPut(t *testing.T) {
	t.Parallel()

	q := worker.NewQueue[string]()
	got := make(chan string, 1)
	go func() {
		v, err := q.Get(context.Background())
		if err != nil {
			return
		}
		got <- v
	}()

	// Give the consumer a moment to block.
	time.Sleep(10 * time.Millisecond)
	q.Put("hello")

	select {
	case v := <-got:
		if v != "hello" {
			t.Errorf("Get() = %q, want %q", v, "hello")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Get did not observe Put")
	}
}

func TestQueue_GetContextCancel(t *testing.T) {
	t.Parallel()

	q := worker.NewQueue[int]()
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() {
		_, err := q.Get(ctx)
		errc <- err
	}()

	cancel()
	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Get() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Get did not return after cancel")
	}
}

func TestQueue_DrainsBacklogAfterClose(t *testing.T) {
	t.Parallel()

	q := worker.NewQueue[int]()
	q.Put(1)
	q.Put(2)
	q.Close()

	ctx := context.Background()
	for want := 1; want <= 2; want++ {
		got, err := q.Get(ctx)
		if err != nil {
			t.Fatalf("Get() error: %v", err)
		}
		if got != want {
			t.Errorf("Get() = %d, want %d", got, want)
		}
	}

	if _, err := q.Get(ctx); !errors.Is(err, worker.ErrQueueClosed) {
		t.Errorf("Get() after drain error = %v, want ErrQueueClosed", err)
	}
}

func TestQueue_PutAfterCloseDropped(t *testing.T) {
	t.Parallel()

	q := worker.NewQueue[int]()
	q.Close()
	q.Put(42)

	if got := q.Len(); got != 0 {
		t.Errorf("Len() = %d, want 0", got)
	}
	if _, err := q.Get(context.Background()); !errors.Is(err, worker.ErrQueueClosed) {
		t.Errorf("Get() error = %v, want ErrQueueClosed", err)
	}
}

func TestQueue_TryGet(t *testing.T) {
	t.Parallel()

	q := worker.NewQueue[int]()
	if _, ok := q.TryGet(); ok {
		t.Fatal("TryGet on empty queue reported ok")
	}

	q.Put(7)
	v, ok := q.TryGet()
	if !ok || v != 7 {
		t.Fatalf("TryGet() = (%d, %t), want (7, true)", v, ok)
	}
	if _, ok := q.TryGet(); ok {
		t.Fatal("TryGet after drain reported ok")
	}
}

// Every produced item must be consumed exactly once even with many producers
// and many consumers competing for wakeups.
func TestQueue_ConcurrentProducersConsumers(t *testing.T) {
	t.Parallel()

	const (
		producers    = 4
		perProducer  = 250
		consumers    = 4
		totalItems   = producers * perProducer
		consumeLimit = 5 * time.Second
	)

	q := worker.NewQueue[int]()

	var prodWG sync.WaitGroup
	for p := range producers {
		prodWG.Add(1)
		go func() {
			defer prodWG.Done()
			for i := range perProducer {
				q.Put(p*perProducer + i)
			}
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), consumeLimit)
	defer cancel()

	var mu sync.Mutex
	seen := make(map[int]int, totalItems)

	var consWG sync.WaitGroup
	for range consumers {
		consWG.Add(1)
		go func() {
			defer consWG.Done()
			for {
				v, err := q.Get(ctx)
				if err != nil {
					return
				}
				mu.Lock()
				seen[v]++
				mu.Unlock()
			}
		}()
	}

	prodWG.Wait()
	q.Close()
	consWG.Wait()

	if len(seen) != totalItems {
		t.Fatalf("consumed %d distinct items, want %d", len(seen), totalItems)
	}
	for v, n := range seen {
		if n != 1 {
			t.Errorf("item %d consumed %d times", v, n)
		}
	}
}

func TestQueue_CloseIdempotent(t *testing.T) {
	t.Parallel()

	q := worker.NewQueue[int]()
	q.Close()
	q.Close()
}
