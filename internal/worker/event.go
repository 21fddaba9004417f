package worker

// Event wraps a queue payload with interruption state. Events are created
// exclusively through [Register] so that every one of them is visible to the
// conversation's broadcast interrupt.
type Event[T any] struct {
	// Payload is the wrapped item. Once Interrupt has returned true the
	// payload must never be emitted downstream.
	Payload T

	interruptible bool
	interruption  *Signal
	tracker       *Tracker
}

// Interrupt fires the event's interruption signal and reports whether the
// event accepted the interruption. A non-interruptible event refuses (returns
// false) but still records the cancellation so in-flight observers of the
// signal can unwind.
func (e *Event[T]) Interrupt() bool {
	e.interruption.Set()
	return e.interruptible
}

// Interrupted reports whether the event has been interrupted. Only
// interruptible events ever read as interrupted.
func (e *Event[T]) Interrupted() bool {
	return e.interruptible && e.interruption.IsSet()
}

// Interruptible reports whether the event accepts interruption.
func (e *Event[T]) Interruptible() bool { return e.interruptible }

// Interruption returns the event's level-triggered interruption signal. The
// emitter uses it as the stop event for paced playback.
func (e *Event[T]) Interruption() *Signal { return e.interruption }

// Tracker returns the response tracker attached at registration, or nil.
func (e *Event[T]) Tracker() *Tracker { return e.tracker }

// eventConfig carries the optional settings applied by [Register].
type eventConfig struct {
	interruptible bool
	tracker       *Tracker
}

// EventOption configures an event at registration time.
type EventOption func(*eventConfig)

// NonInterruptible marks the event as refusing interruption. Used for the
// initial greeting, which must play out in full.
func NonInterruptible() EventOption {
	return func(c *eventConfig) { c.interruptible = false }
}

// WithInterruptible sets the interruptible flag explicitly, for propagating
// the flag from an upstream event to its downstream derivative.
func WithInterruptible(interruptible bool) EventOption {
	return func(c *eventConfig) { c.interruptible = interruptible }
}

// WithTracker attaches a response tracker, preserving response linkage across
// stage boundaries.
func WithTracker(t *Tracker) EventOption {
	return func(c *eventConfig) { c.tracker = t }
}

// Interruptible is the registry's type-erased view of an event.
type Interruptible interface {
	Interrupt() bool
	Interrupted() bool
}

// Registry is the conversation-scoped record of every outstanding
// interruptible event. Construction and registration are a single step:
// an event a broadcast cannot see must not exist.
//
// The registry tolerates concurrent producers; it is drained only by
// [Registry.InterruptAll].
type Registry struct {
	events *Queue[Interruptible]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{events: NewQueue[Interruptible]()}
}

// Register creates an event carrying payload and records it on the registry.
// Events are interruptible unless configured otherwise.
func Register[T any](r *Registry, payload T, opts ...EventOption) *Event[T] {
	cfg := eventConfig{interruptible: true}
	for _, o := range opts {
		o(&cfg)
	}

	e := &Event[T]{
		Payload:       payload,
		interruptible: cfg.interruptible,
		interruption:  NewSignal(),
		tracker:       cfg.tracker,
	}
	r.events.Put(e)
	return e
}

// InterruptAll drains the registry without blocking, interrupting every event
// not already interrupted. It returns the number of events that accepted the
// interruption.
func (r *Registry) InterruptAll() int {
	interrupted := 0
	for {
		ev, ok := r.events.TryGet()
		if !ok {
			return interrupted
		}
		if ev.Interrupted() {
			continue
		}
		if ev.Interrupt() {
			interrupted++
		}
	}
}

// Outstanding returns the number of registered events not yet drained.
func (r *Registry) Outstanding() int {
	return r.events.Len()
}
