package audio_test

import (
	"testing"

	"github.com/colloquy-ai/colloquy/pkg/audio"
)

func TestEncodeMulawSample_KnownValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   int16
		want byte
	}{
		{0, 0xFF},      // digital silence
		{-1, 0x7F},     // smallest negative
		{32767, 0x80},  // positive full scale
		{-32768, 0x00}, // negative full scale
	}

	for _, tt := range tests {
		if got := audio.EncodeMulawSample(tt.in); got != tt.want {
			t.Errorf("EncodeMulawSample(%d) = %#02x, want %#02x", tt.in, got, tt.want)
		}
	}
}

func TestMulawRoundTrip_WithinQuantizationError(t *testing.T) {
	t.Parallel()

	// μ-law is lossy; the error bound grows with the segment. Checking a
	// spread of values at ~4% relative tolerance (plus a small absolute
	// floor for the first segment) covers the codec without encoding the
	// whole table.
	samples := []int16{0, 1, -1, 50, -50, 500, -500, 4000, -4000, 16000, -16000, 30000, -30000}
	for _, s := range samples {
		got := audio.DecodeMulawSample(audio.EncodeMulawSample(s))
		diff := int32(got) - int32(s)
		if diff < 0 {
			diff = -diff
		}
		limit := int32(s) / 16
		if limit < 0 {
			limit = -limit
		}
		if limit < 16 {
			limit = 16
		}
		if diff > limit {
			t.Errorf("round trip %d -> %d (error %d, limit %d)", s, got, diff, limit)
		}
	}
}

func TestEncodeDecodeMulaw_Buffers(t *testing.T) {
	t.Parallel()

	pcm := samplesToBytes([]int16{0, 1000, -1000, 20000, -20000})
	enc := audio.EncodeMulaw(pcm)
	if len(enc) != len(pcm)/2 {
		t.Fatalf("encoded length = %d, want %d", len(enc), len(pcm)/2)
	}

	dec := audio.DecodeMulaw(enc)
	if len(dec) != len(pcm) {
		t.Fatalf("decoded length = %d, want %d", len(dec), len(pcm))
	}

	in := bytesToSamples(pcm)
	out := bytesToSamples(dec)
	for i := range in {
		diff := int32(out[i]) - int32(in[i])
		if diff < 0 {
			diff = -diff
		}
		if diff > 2048 {
			t.Errorf("sample %d: %d -> %d drifted too far", i, in[i], out[i])
		}
	}
}
