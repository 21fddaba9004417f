// Package mock provides a test double for the transcriber package.
//
// Tests pre-populate ResultsCh with the Transcription values the pipeline
// should receive, then close it (or call Terminate) when done. Mute state and
// every delivered audio chunk are recorded for inspection.
package mock

import (
	"context"
	"sync"

	"github.com/colloquy-ai/colloquy/pkg/transcriber"
)

// Transcriber is a mock implementation of transcriber.Transcriber.
type Transcriber struct {
	mu sync.Mutex

	// Cfg is returned by Config.
	Cfg transcriber.Config

	// ResultsCh is the channel returned by Results. Initialised by New;
	// tests own sends and may close it to simulate session end.
	ResultsCh chan transcriber.Transcription

	// StartErr, if non-nil, is returned by Start.
	StartErr error

	// --- Call records ---

	// SendAudioCalls records a copy of every chunk passed to SendAudio.
	SendAudioCalls [][]byte

	// MuteCalls and UnmuteCalls count invocations.
	MuteCalls   int
	UnmuteCalls int

	// TerminateCalls counts Terminate invocations.
	TerminateCalls int

	started bool
	muted   bool
}

var _ transcriber.Transcriber = (*Transcriber)(nil)

// New returns a mock transcriber with the given config and a buffered
// results channel.
func New(cfg transcriber.Config) *Transcriber {
	return &Transcriber{
		Cfg:       cfg,
		ResultsCh: make(chan transcriber.Transcription, 64),
	}
}

// Start records the call and returns StartErr.
func (t *Transcriber) Start(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.StartErr != nil {
		return t.StartErr
	}
	t.started = true
	return nil
}

// Ready reports whether Start succeeded and Terminate has not been called.
func (t *Transcriber) Ready() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started
}

// SendAudio records a copy of chunk.
func (t *Transcriber) SendAudio(chunk []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	t.SendAudioCalls = append(t.SendAudioCalls, cp)
}

// SendAudioCount returns how many chunks SendAudio received. Thread-safe.
func (t *Transcriber) SendAudioCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.SendAudioCalls)
}

// Results returns ResultsCh.
func (t *Transcriber) Results() <-chan transcriber.Transcription { return t.ResultsCh }

// Mute records the call.
func (t *Transcriber) Mute() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.MuteCalls++
	t.muted = true
}

// Unmute records the call.
func (t *Transcriber) Unmute() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.UnmuteCalls++
	t.muted = false
}

// Muted reports the current mute state.
func (t *Transcriber) Muted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.muted
}

// Config returns Cfg.
func (t *Transcriber) Config() transcriber.Config { return t.Cfg }

// Terminate records the call and closes ResultsCh on the first invocation.
func (t *Transcriber) Terminate() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.TerminateCalls++
	if t.TerminateCalls == 1 {
		t.started = false
		close(t.ResultsCh)
	}
	return nil
}

// Emit sends tr on ResultsCh. Convenience for tests.
func (t *Transcriber) Emit(tr transcriber.Transcription) {
	t.ResultsCh <- tr
}
