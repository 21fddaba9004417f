// Package mock provides a test double for the synthesizer package.
package mock

import (
	"context"
	"sync"

	"github.com/colloquy-ai/colloquy/pkg/sentiment"
	"github.com/colloquy-ai/colloquy/pkg/synthesizer"
)

// CreateSpeechCall records the arguments of one CreateSpeech call.
type CreateSpeechCall struct {
	Message   string
	ChunkSize int
	Sentiment *sentiment.BotSentiment
}

// Synthesizer is a mock implementation of synthesizer.Synthesizer. It serves
// deterministic audio and records every call.
type Synthesizer struct {
	mu sync.Mutex

	// Cfg is returned by Config.
	Cfg synthesizer.Config

	// Audio is the audio data served for every message. When nil, each call
	// serves 100 bytes per message character, so longer messages take
	// proportionally longer to play.
	Audio []byte

	// AudioFor, if set, overrides Audio per message.
	AudioFor func(message string) []byte

	// Err, if non-nil, is returned by every CreateSpeech call.
	Err error

	// ReadyErr, if non-nil, is returned by Ready.
	ReadyErr error

	// VoiceID is returned by VoiceIdentifier.
	VoiceID string

	// Calls records every CreateSpeech call.
	Calls []CreateSpeechCall

	// TearDownCalls counts TearDown invocations.
	TearDownCalls int
}

var _ synthesizer.Synthesizer = (*Synthesizer)(nil)

// New returns a mock serving cfg.
func New(cfg synthesizer.Config) *Synthesizer {
	return &Synthesizer{Cfg: cfg, VoiceID: "mock-voice"}
}

// CreateSpeech records the call and returns a result over the scripted audio.
func (s *Synthesizer) CreateSpeech(_ context.Context, message string, chunkSize int, bs *sentiment.BotSentiment) (*synthesizer.SynthesisResult, error) {
	s.mu.Lock()
	s.Calls = append(s.Calls, CreateSpeechCall{Message: message, ChunkSize: chunkSize, Sentiment: bs})
	audio, err := s.Audio, s.Err
	if s.AudioFor != nil {
		audio = s.AudioFor(message)
	}
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if audio == nil {
		audio = make([]byte, 100*len(message))
	}
	return synthesizer.ResultFromAudio(message, audio, chunkSize, s.Cfg, false), nil
}

// Ready returns ReadyErr.
func (s *Synthesizer) Ready(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ReadyErr
}

// VoiceIdentifier returns VoiceID.
func (s *Synthesizer) VoiceIdentifier() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.VoiceID
}

// Config returns Cfg.
func (s *Synthesizer) Config() synthesizer.Config {
	return s.Cfg
}

// TearDown counts the call.
func (s *Synthesizer) TearDown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TearDownCalls++
	return nil
}

// CallCount returns the number of CreateSpeech calls. Thread-safe.
func (s *Synthesizer) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Calls)
}

// Messages returns the message of each recorded call. Thread-safe.
func (s *Synthesizer) Messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.Calls))
	for i, c := range s.Calls {
		out[i] = c.Message
	}
	return out
}
