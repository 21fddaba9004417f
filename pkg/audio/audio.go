// Package audio provides the encoding math and codec helpers shared by the
// conversation pipeline: byte-rate arithmetic for rate-paced emission, WAV
// container framing, G.711 μ-law transcoding, and mono PCM resampling.
//
// The pipeline's audio contract is mono: one human, one bot, one stream each
// way. Sample rate and encoding travel alongside every producer and consumer
// configuration; the helpers here are the single source of truth for how many
// bytes one second of audio occupies in each encoding.
package audio

import "time"

// Encoding identifies the wire format of audio chunks flowing through the
// pipeline.
type Encoding string

const (
	// EncodingLinear16 is 16-bit little-endian signed PCM.
	EncodingLinear16 Encoding = "linear16"

	// EncodingMulaw is G.711 μ-law, one byte per sample.
	EncodingMulaw Encoding = "mulaw"
)

// IsValid reports whether e is one of the defined encodings.
func (e Encoding) IsValid() bool {
	switch e {
	case EncodingLinear16, EncodingMulaw:
		return true
	}
	return false
}

// BytesPerSample returns the size of one encoded sample in bytes.
// Unknown encodings are treated as Linear16.
func (e Encoding) BytesPerSample() int {
	if e == EncodingMulaw {
		return 1
	}
	return 2
}

// BytesPerSecond returns the byte rate of mono audio in encoding e at
// samplingRate Hz. This is the quantity the emitter divides chunk lengths by
// to recover playback seconds.
func BytesPerSecond(e Encoding, samplingRate int) int {
	return samplingRate * e.BytesPerSample()
}

// DurationOf returns the wall-clock playback duration of n bytes of mono
// audio in encoding e at samplingRate Hz.
func DurationOf(n int, e Encoding, samplingRate int) time.Duration {
	bps := BytesPerSecond(e, samplingRate)
	if bps <= 0 {
		return 0
	}
	return time.Duration(float64(n) / float64(bps) * float64(time.Second))
}
