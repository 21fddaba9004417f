package resilience

import (
	"context"
	"errors"

	"github.com/colloquy-ai/colloquy/pkg/sentiment"
	"github.com/colloquy-ai/colloquy/pkg/synthesizer"
)

// SynthesizerFallback implements [synthesizer.Synthesizer] with automatic
// failover across multiple TTS backends. Each backend has its own circuit
// breaker; when the primary fails or its breaker is open, the next healthy
// fallback is tried.
//
// All backends must be configured with the same sampling rate and encoding,
// otherwise a failover would change the audio format mid-conversation.
type SynthesizerFallback struct {
	group *FallbackGroup[synthesizer.Synthesizer]
}

var _ synthesizer.Synthesizer = (*SynthesizerFallback)(nil)

// NewSynthesizerFallback creates a [SynthesizerFallback] with primary as the
// preferred backend.
func NewSynthesizerFallback(primary synthesizer.Synthesizer, primaryName string, cfg FallbackConfig) *SynthesizerFallback {
	return &SynthesizerFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional synthesizer as a fallback.
func (f *SynthesizerFallback) AddFallback(name string, s synthesizer.Synthesizer) {
	f.group.AddFallback(name, s)
}

// CreateSpeech synthesizes via the first healthy backend. Only the initial
// call is covered by failover; once a chunk stream is returned, mid-stream
// truncation is the caller's responsibility.
func (f *SynthesizerFallback) CreateSpeech(ctx context.Context, message string, chunkSize int, bs *sentiment.BotSentiment) (*synthesizer.SynthesisResult, error) {
	return ExecuteWithResult(f.group, func(s synthesizer.Synthesizer) (*synthesizer.SynthesisResult, error) {
		return s.CreateSpeech(ctx, message, chunkSize, bs)
	})
}

// Ready succeeds when any backend is reachable.
func (f *SynthesizerFallback) Ready(ctx context.Context) error {
	return f.group.Execute(func(s synthesizer.Synthesizer) error {
		return s.Ready(ctx)
	})
}

// VoiceIdentifier returns the primary's voice identifier. The phrase cache is
// keyed off the primary; fallback audio for a cached phrase may differ in
// voice until the primary recovers.
func (f *SynthesizerFallback) VoiceIdentifier() string {
	return f.group.Primary().VoiceIdentifier()
}

// Config returns the primary's configuration.
func (f *SynthesizerFallback) Config() synthesizer.Config {
	return f.group.Primary().Config()
}

// TearDown tears down every backend, joining their errors.
func (f *SynthesizerFallback) TearDown() error {
	var errs []error
	f.group.Each(func(_ string, s synthesizer.Synthesizer) {
		if err := s.TearDown(); err != nil {
			errs = append(errs, err)
		}
	})
	return errors.Join(errs...)
}
