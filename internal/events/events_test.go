package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/colloquy-ai/colloquy/pkg/types"
)

type recordingHandler struct {
	mu     sync.Mutex
	events []types.Event
}

func (h *recordingHandler) HandleEvent(event types.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
}

func (h *recordingHandler) Events() []types.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]types.Event, len(h.events))
	copy(out, h.events)
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestManager_DeliversInOrder(t *testing.T) {
	m := NewManager()
	h := &recordingHandler{}
	m.Subscribe(h)
	m.Start(context.Background())
	defer m.Flush()

	m.Publish(types.TranscriptEvent{Conversation: "c", Text: "one"})
	m.Publish(types.TranscriptEvent{Conversation: "c", Text: "two"})
	m.Publish(types.TranscriptEvent{Conversation: "c", Text: "three"})

	waitFor(t, func() bool { return len(h.Events()) == 3 })

	want := []string{"one", "two", "three"}
	for i, ev := range h.Events() {
		if got := ev.(types.TranscriptEvent).Text; got != want[i] {
			t.Errorf("event %d text = %q, want %q", i, got, want[i])
		}
	}
}

func TestManager_FiltersByType(t *testing.T) {
	m := NewManager()
	transcripts := &recordingHandler{}
	actions := &recordingHandler{}
	everything := &recordingHandler{}
	m.Subscribe(transcripts, types.EventTranscript)
	m.Subscribe(actions, types.EventAction)
	m.Subscribe(everything)
	m.Start(context.Background())

	m.Publish(types.TranscriptEvent{Conversation: "c", Text: "hi"})
	m.Publish(types.ActionEvent{Conversation: "c", ActionType: "lookup"})
	m.Publish(types.TranscriptCompleteEvent{Conversation: "c"})
	m.Flush()

	if got := len(transcripts.Events()); got != 1 {
		t.Errorf("transcript handler got %d events, want 1", got)
	}
	if got := len(actions.Events()); got != 1 {
		t.Errorf("action handler got %d events, want 1", got)
	}
	if got := len(everything.Events()); got != 3 {
		t.Errorf("catch-all handler got %d events, want 3", got)
	}
}

func TestManager_FlushDeliversBacklog(t *testing.T) {
	m := NewManager()
	h := &recordingHandler{}
	m.Subscribe(h, types.EventTranscriptComplete)
	m.Start(context.Background())

	// Publish a burst and flush immediately; nothing may be lost.
	for range 10 {
		m.Publish(types.TranscriptCompleteEvent{Conversation: "c"})
	}
	m.Flush()

	if got := len(h.Events()); got != 10 {
		t.Errorf("handler got %d events after flush, want 10", got)
	}

	// Publishing after Flush is a no-op, not a panic.
	m.Publish(types.TranscriptCompleteEvent{Conversation: "c"})
	if got := len(h.Events()); got != 10 {
		t.Errorf("handler got %d events after post-flush publish, want 10", got)
	}
}

func TestManager_HandlerFunc(t *testing.T) {
	m := NewManager()
	var mu sync.Mutex
	var seen []types.EventType
	m.Subscribe(HandlerFunc(func(event types.Event) {
		mu.Lock()
		seen = append(seen, event.Type())
		mu.Unlock()
	}))
	m.Start(context.Background())

	m.Publish(types.ActionEvent{Conversation: "c"})
	m.Flush()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || seen[0] != types.EventAction {
		t.Errorf("seen = %v", seen)
	}
}
