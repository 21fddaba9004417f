// Package mock provides a test double for the sentiment package.
package mock

import (
	"context"
	"sync"

	"github.com/colloquy-ai/colloquy/pkg/sentiment"
)

// Analyser is a mock implementation of sentiment.Analyser.
type Analyser struct {
	mu sync.Mutex

	// Result is returned by every Analyse call.
	Result sentiment.BotSentiment

	// Err, if non-nil, is returned by every Analyse call.
	Err error

	// AnalyseCalls records the transcript passed to each Analyse call.
	AnalyseCalls []string
}

var _ sentiment.Analyser = (*Analyser)(nil)

// Analyse records the call and returns Result, Err.
func (a *Analyser) Analyse(_ context.Context, transcript string) (sentiment.BotSentiment, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.AnalyseCalls = append(a.AnalyseCalls, transcript)
	return a.Result, a.Err
}

// CallCount returns the number of Analyse calls. Thread-safe.
func (a *Analyser) CallCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.AnalyseCalls)
}

// Calls returns a copy of the recorded transcripts. Thread-safe.
func (a *Analyser) Calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.AnalyseCalls...)
}
