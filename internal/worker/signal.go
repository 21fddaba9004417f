package worker

import "sync"

// Signal is a level-triggered, one-way event: once set it stays set. It is
// the cancellation primitive interruptible work polls at every suspension
// point, and it fans out to selects via Done.
type Signal struct {
	once sync.Once
	ch   chan struct{}
}

// NewSignal returns an unset signal.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{})}
}

// Set fires the signal. Subsequent calls are no-ops.
func (s *Signal) Set() {
	s.once.Do(func() { close(s.ch) })
}

// IsSet reports whether the signal has fired.
func (s *Signal) IsSet() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when the signal fires.
func (s *Signal) Done() <-chan struct{} {
	return s.ch
}

// Tracker is a single-shot completion signal. The agent attaches one to each
// response; the synthesis stage resolves it once the response has been fully
// rendered to the user (or abandoned).
type Tracker struct {
	once sync.Once
	ch   chan struct{}
}

// NewTracker returns an unresolved tracker.
func NewTracker() *Tracker {
	return &Tracker{ch: make(chan struct{})}
}

// Resolve marks the tracked response as fully emitted. Idempotent.
func (t *Tracker) Resolve() {
	t.once.Do(func() { close(t.ch) })
}

// Resolved reports whether the tracker has been resolved.
func (t *Tracker) Resolved() bool {
	select {
	case <-t.ch:
		return true
	default:
		return false
	}
}

// Done returns a channel closed on resolution.
func (t *Tracker) Done() <-chan struct{} {
	return t.ch
}
