// Package synthesizer defines the text-to-speech interface consumed by the
// conversation pipeline and the SynthesisResult contract its emitter plays.
//
// A synthesis result is a single-use lazy chunk stream plus a function that
// maps seconds of playback to the message prefix actually spoken. Those two
// pieces let the rate-paced emitter stop speech mid-utterance and record
// exactly what the user heard.
package synthesizer

import (
	"context"

	"github.com/colloquy-ai/colloquy/pkg/audio"
	"github.com/colloquy-ai/colloquy/pkg/sentiment"
)

// ChunkResult is one slice of synthesized audio. IsLast marks the final
// chunk of the utterance.
type ChunkResult struct {
	Chunk  []byte
	IsLast bool
}

// SynthesisResult is the output of CreateSpeech.
type SynthesisResult struct {
	// Chunks is a single-use lazy stream of audio chunks. The producer
	// closes it when the utterance ends or the producing context is
	// cancelled; consumers must tolerate truncation (the stream may end
	// early without an IsLast chunk).
	Chunks <-chan ChunkResult

	// MessageUpTo maps seconds of playback to the prefix of the message
	// spoken by then. Used to record cut-off utterances in the transcript.
	MessageUpTo func(seconds float64) string

	// Cached reports whether the audio came from the phrase cache rather
	// than a synthesis call.
	Cached bool
}

// Config carries the synthesizer settings the conversation core reads.
type Config struct {
	// SamplingRate is the output audio sample rate in Hz.
	SamplingRate int

	// AudioEncoding is the output audio encoding.
	AudioEncoding audio.Encoding

	// Sentiment, when non-nil, declares the synthesizer sentiment-aware and
	// enables the conversation's sentiment sampling loop.
	Sentiment *sentiment.Config

	// ShouldEncodeAsWAV wraps each emitted chunk in a RIFF/WAVE header, for
	// output devices that consume self-describing frames.
	ShouldEncodeAsWAV bool
}

// Synthesizer converts text into streamed speech audio.
//
// Implementations must propagate ctx cancellation into any in-flight network
// call: the agent task owning the CreateSpeech call is cancelled on interrupt
// and the synthesis must die with it.
type Synthesizer interface {
	// CreateSpeech synthesizes message into chunks of chunkSize bytes.
	// bs may be nil; sentiment-aware synthesizers use it to colour speech.
	CreateSpeech(ctx context.Context, message string, chunkSize int, bs *sentiment.BotSentiment) (*SynthesisResult, error)

	// Ready verifies the backend is reachable. Called during conversation
	// start; an error fails the conversation.
	Ready(ctx context.Context) error

	// VoiceIdentifier returns a stable key identifying the configured voice
	// and audio format, used to key the phrase cache.
	VoiceIdentifier() string

	// Config returns the synthesizer's configuration.
	Config() Config

	// TearDown releases resources and aborts outstanding synthesis calls.
	// Idempotent.
	TearDown() error
}
