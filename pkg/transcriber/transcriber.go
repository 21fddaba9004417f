// Package transcriber defines the streaming speech-to-text interface consumed
// by the conversation pipeline, along with the Transcription value that flows
// out of it.
//
// A transcriber is a duplex session: the pipeline feeds raw audio in via
// SendAudio and drains Transcription values from Results. Partial (non-final)
// transcriptions drive the interruption protocol; final transcriptions become
// agent input.
package transcriber

import (
	"context"

	"github.com/colloquy-ai/colloquy/pkg/audio"
)

// Transcription is a single speech-to-text result. It is created by the
// transcriber and consumed exactly once by the conversation's transcriptions
// stage, which stamps IsInterrupt before handing it onward.
type Transcription struct {
	// Message is the transcribed text.
	Message string

	// Confidence is the transcriber's confidence in Message, in [0, 1].
	Confidence float64

	// IsFinal marks an endpointed utterance. Only final transcriptions are
	// forwarded to the agent; partials exist to preempt in-flight speech.
	IsFinal bool

	// IsInterrupt is stamped by the transcriptions stage when this
	// transcription caused (or rode along with) a broadcast interrupt.
	IsInterrupt bool
}

// Config carries the transcriber settings the conversation core reads.
type Config struct {
	// SamplingRate is the input audio sample rate in Hz.
	SamplingRate int

	// AudioEncoding is the input audio encoding.
	AudioEncoding audio.Encoding

	// MinInterruptConfidence is the confidence floor a partial transcription
	// must meet to trigger a broadcast interrupt. Zero accepts everything.
	MinInterruptConfidence float64

	// MuteDuringSpeech mutes the transcriber while the bot is speaking, for
	// output devices that feed back into the microphone.
	MuteDuringSpeech bool
}

// Transcriber is a streaming speech-to-text session.
//
// Implementations must be safe for concurrent use: SendAudio is called from
// the audio ingress path while Mute/Unmute are called from the emitter.
type Transcriber interface {
	// Start opens the session. Blocking until the remote side is ready to
	// accept audio; an error here fails the conversation's Start.
	Start(ctx context.Context) error

	// Ready reports whether the session is accepting audio.
	Ready() bool

	// SendAudio queues an audio chunk for transcription. Chunks sent while
	// muted are dropped.
	SendAudio(chunk []byte)

	// Results returns the channel of transcriptions. The channel is closed
	// when the session ends.
	Results() <-chan Transcription

	// Mute drops inbound audio until Unmute. Idempotent.
	Mute()

	// Unmute resumes audio forwarding. Idempotent.
	Unmute()

	// Config returns the session's configuration.
	Config() Config

	// Terminate closes the session and releases its resources. Idempotent.
	Terminate() error
}
