package outputdevice

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/colloquy-ai/colloquy/pkg/audio"
)

func TestFile_WritesPlayableWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	d := NewFile(path, 16000, audio.EncodingLinear16)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var want []byte
	for i := 0; i < 5; i++ {
		chunk := make([]byte, 320)
		for j := range chunk {
			chunk[j] = byte(i)
		}
		d.ConsumeNonblocking(chunk)
		want = append(want, chunk...)
	}

	if err := d.Terminate(); err != nil {
		t.Fatalf("Terminate: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	payload, enc, rate, err := audio.Unwrap(raw)
	if err != nil {
		t.Fatalf("Unwrap: %v", err)
	}
	if enc != audio.EncodingLinear16 || rate != 16000 {
		t.Errorf("format = %s/%d, want linear16/16000", enc, rate)
	}
	if len(payload) != len(want) {
		t.Fatalf("payload = %d bytes, want %d", len(payload), len(want))
	}
	for i := range payload {
		if payload[i] != want[i] {
			t.Fatalf("payload mismatch at byte %d", i)
		}
	}
}

func TestFile_TerminateIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	d := NewFile(path, 8000, audio.EncodingMulaw)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	d.ConsumeNonblocking([]byte{1, 2, 3})

	if err := d.Terminate(); err != nil {
		t.Fatalf("first Terminate: %v", err)
	}
	if err := d.Terminate(); err != nil {
		t.Fatalf("second Terminate: %v", err)
	}
}

func TestFile_DropsChunksBeforeStart(t *testing.T) {
	d := NewFile(filepath.Join(t.TempDir(), "out.wav"), 16000, audio.EncodingLinear16)
	// Must not panic.
	d.ConsumeNonblocking([]byte{1, 2, 3})
}
