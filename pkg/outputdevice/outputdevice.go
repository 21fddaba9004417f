// Package outputdevice defines where synthesized speech ends up: a WAV file,
// a WebSocket peer, or the local speaker.
//
// Devices consume audio without blocking the caller. The rate-paced emitter
// pushes chunks slightly ahead of real time; a device that blocked on disk or
// network I/O would distort the pacing math, so every implementation buffers
// internally and drains on its own goroutine.
package outputdevice

import (
	"context"

	"github.com/colloquy-ai/colloquy/pkg/audio"
	"github.com/colloquy-ai/colloquy/pkg/types"
)

// Device is a sink for synthesized speech audio.
type Device interface {
	// Start prepares the device for playback. Called once, before any
	// ConsumeNonblocking call.
	Start(ctx context.Context) error

	// ConsumeNonblocking accepts one audio chunk without blocking. Chunks
	// arriving before Start or after Terminate are dropped.
	ConsumeNonblocking(chunk []byte)

	// Terminate flushes buffered audio and releases the device. Idempotent.
	Terminate() error

	// SamplingRate returns the sample rate the device expects, in Hz.
	SamplingRate() int

	// AudioEncoding returns the encoding the device expects.
	AudioEncoding() audio.Encoding
}

// TranscriptConsumer is implemented by devices that also forward transcript
// entries to their peer, alongside the audio.
type TranscriptConsumer interface {
	// ConsumeTranscript accepts one transcript entry without blocking.
	ConsumeTranscript(event types.TranscriptEvent)
}
