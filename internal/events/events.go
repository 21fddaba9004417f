// Package events fans conversation events out to registered handlers.
//
// Publishing is non-blocking: events land on an unbounded queue and a single
// dispatch goroutine delivers them in order. Handlers therefore never stall
// the conversation pipeline, and delivery order matches publish order.
package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/colloquy-ai/colloquy/internal/worker"
	"github.com/colloquy-ai/colloquy/pkg/types"
)

// Handler receives published events. Handlers run on the manager's dispatch
// goroutine; a slow handler delays later events but never the publisher.
type Handler interface {
	HandleEvent(event types.Event)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(event types.Event)

// HandleEvent implements Handler.
func (f HandlerFunc) HandleEvent(event types.Event) { f(event) }

type subscription struct {
	handler Handler
	// types is the accepted set; nil means all event types.
	types map[types.EventType]struct{}
}

func (s subscription) accepts(t types.EventType) bool {
	if s.types == nil {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// Manager is the conversation event bus.
type Manager struct {
	queue  *worker.Queue[types.Event]
	loop   *worker.BlockingWorker[types.Event]
	logger *slog.Logger

	mu   sync.RWMutex
	subs []subscription
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for dispatch diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager returns a manager with no subscriptions. Call Start before
// publishing; events published earlier still queue up and are delivered once
// the dispatch loop runs.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		queue:  worker.NewQueue[types.Event](),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.loop = worker.NewBlockingWorker(m.queue, m.dispatch)
	return m
}

// Subscribe registers handler for the given event types. With no types the
// handler receives every event. Subscriptions cannot be removed; the manager
// lives as long as the process that owns it.
func (m *Manager) Subscribe(handler Handler, eventTypes ...types.EventType) {
	sub := subscription{handler: handler}
	if len(eventTypes) > 0 {
		sub.types = make(map[types.EventType]struct{}, len(eventTypes))
		for _, t := range eventTypes {
			sub.types[t] = struct{}{}
		}
	}

	m.mu.Lock()
	m.subs = append(m.subs, sub)
	m.mu.Unlock()
}

// Start launches the dispatch loop.
func (m *Manager) Start(ctx context.Context) {
	m.loop.Start(ctx)
}

// Publish enqueues event for dispatch. It never blocks. Events published
// after Flush are dropped.
func (m *Manager) Publish(event types.Event) {
	m.queue.Put(event)
}

// Flush closes the queue, delivers the remaining backlog, and waits for the
// dispatch loop to exit. Idempotent. Called during conversation termination
// so no event raced into the void.
func (m *Manager) Flush() {
	m.loop.Terminate()
}

func (m *Manager) dispatch(event types.Event) {
	m.mu.RLock()
	subs := m.subs
	m.mu.RUnlock()

	delivered := 0
	for _, sub := range subs {
		if sub.accepts(event.Type()) {
			sub.handler.HandleEvent(event)
			delivered++
		}
	}
	m.logger.Debug("event dispatched",
		"type", event.Type(),
		"conversation", event.ConversationID(),
		"handlers", delivered)
}
