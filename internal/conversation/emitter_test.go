package conversation

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/colloquy-ai/colloquy/internal/transcript"
	"github.com/colloquy-ai/colloquy/internal/worker"
	"github.com/colloquy-ai/colloquy/pkg/audio"
	devmock "github.com/colloquy-ai/colloquy/pkg/outputdevice/mock"
	"github.com/colloquy-ai/colloquy/pkg/synthesizer"
	"github.com/colloquy-ai/colloquy/pkg/transcriber"
	trmock "github.com/colloquy-ai/colloquy/pkg/transcriber/mock"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSynthConfig() synthesizer.Config {
	return synthesizer.Config{SamplingRate: 16000, AudioEncoding: audio.EncodingLinear16}
}

func newTestEmitter(dev *devmock.Device, secondsPerChunk float64, chunkSize int) *emitter {
	return &emitter{
		output:          dev,
		secondsPerChunk: secondsPerChunk,
		chunkSize:       chunkSize,
		stampAction:     func() {},
		logger:          discardLogger(),
	}
}

// countingResult builds a result whose MessageUpTo reports how many chunks
// worth of playback the given seconds cover, so cut-off points assert
// exactly.
func countingResult(chunks, chunkBytes int, secondsPerChunk float64) *synthesizer.SynthesisResult {
	ch := make(chan synthesizer.ChunkResult, chunks)
	for i := 0; i < chunks; i++ {
		ch <- synthesizer.ChunkResult{Chunk: make([]byte, chunkBytes), IsLast: i == chunks-1}
	}
	close(ch)
	return &synthesizer.SynthesisResult{
		Chunks: ch,
		MessageUpTo: func(seconds float64) string {
			return strconv.Itoa(int(seconds/secondsPerChunk + 0.5))
		},
	}
}

func TestEmitterPlaysWholeUtterance(t *testing.T) {
	dev := devmock.New(16000, audio.EncodingLinear16)
	em := newTestEmitter(dev, 0.002, 100)

	data := make([]byte, 500)
	result := synthesizer.ResultFromAudio("hello world", data, 100, testSynthConfig(), false)

	tm := transcript.New("conv", nil).AddBotMessage("")
	started := worker.NewSignal()
	sent, cutOff := em.sendSpeechToOutput(context.Background(), "hello world", result, worker.NewSignal(), tm, started)

	if cutOff {
		t.Fatal("clean playback reported as cut off")
	}
	if sent != "hello world" {
		t.Fatalf("messageSent = %q, want %q", sent, "hello world")
	}
	if got := dev.ChunkCount(); got != 5 {
		t.Fatalf("device received %d chunks, want 5", got)
	}
	if got := dev.TotalBytes(); got != 500 {
		t.Fatalf("device received %d bytes, want 500", got)
	}
	if !started.IsSet() {
		t.Fatal("started signal never fired")
	}
	if got := tm.Text(); got != "hello world" {
		t.Fatalf("transcript message = %q, want full message", got)
	}
}

func TestEmitterStopCutsOffMidUtterance(t *testing.T) {
	dev := devmock.New(16000, audio.EncodingLinear16)
	const secondsPerChunk = 0.05
	em := newTestEmitter(dev, secondsPerChunk, 100)

	result := countingResult(5, 100, secondsPerChunk)
	stop := worker.NewSignal()

	type outcome struct {
		sent   string
		cutOff bool
	}
	done := make(chan outcome, 1)
	go func() {
		sent, cutOff := em.sendSpeechToOutput(context.Background(), "12345", result, stop, nil, nil)
		done <- outcome{sent, cutOff}
	}()

	// Stop during the second chunk's paced sleep.
	deadline := time.Now().Add(2 * time.Second)
	for dev.ChunkCount() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("second chunk never reached the device")
		}
		time.Sleep(time.Millisecond)
	}
	stop.Set()

	var got outcome
	select {
	case got = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("emitter did not return after stop")
	}

	if !got.cutOff {
		t.Fatal("stopped playback not reported as cut off")
	}
	if got.sent != "2-" {
		t.Fatalf("messageSent = %q, want %q (two chunks spoken)", got.sent, "2-")
	}
	if count := dev.ChunkCount(); count != 2 {
		t.Fatalf("device received %d chunks after stop, want 2", count)
	}
}

func TestEmitterPreStoppedPlaysNothing(t *testing.T) {
	dev := devmock.New(16000, audio.EncodingLinear16)
	em := newTestEmitter(dev, 0, 100)

	result := countingResult(3, 100, 1)
	stop := worker.NewSignal()
	stop.Set()

	sent, cutOff := em.sendSpeechToOutput(context.Background(), "123", result, stop, nil, nil)
	if !cutOff {
		t.Fatal("pre-stopped playback not reported as cut off")
	}
	if sent != "0-" {
		t.Fatalf("messageSent = %q, want %q", sent, "0-")
	}
	if dev.ChunkCount() != 0 {
		t.Fatalf("device received %d chunks, want 0", dev.ChunkCount())
	}
}

func TestEmitterStopAfterFinalChunkIsNotCutOff(t *testing.T) {
	dev := devmock.New(16000, audio.EncodingLinear16)
	const secondsPerChunk = 0.05
	em := newTestEmitter(dev, secondsPerChunk, 100)

	result := countingResult(2, 100, secondsPerChunk)
	stop := worker.NewSignal()

	type outcome struct {
		sent   string
		cutOff bool
	}
	done := make(chan outcome, 1)
	go func() {
		sent, cutOff := em.sendSpeechToOutput(context.Background(), "12", result, stop, nil, nil)
		done <- outcome{sent, cutOff}
	}()

	// Fire stop during the final chunk's paced sleep; the clean close must
	// win over the stale stop.
	deadline := time.Now().Add(2 * time.Second)
	for dev.ChunkCount() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("final chunk never reached the device")
		}
		time.Sleep(time.Millisecond)
	}
	stop.Set()

	var got outcome
	select {
	case got = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("emitter did not return")
	}
	if got.cutOff {
		t.Fatal("fully played utterance reported as cut off")
	}
	if got.sent != "12" {
		t.Fatalf("messageSent = %q, want %q", got.sent, "12")
	}
}

func TestEmitterMutesTranscriberDuringSpeech(t *testing.T) {
	dev := devmock.New(16000, audio.EncodingLinear16)
	tr := trmock.New(transcriber.Config{MuteDuringSpeech: true})
	em := newTestEmitter(dev, 0.001, 100)
	em.transcriber = tr

	result := synthesizer.ResultFromAudio("ok", make([]byte, 200), 100, testSynthConfig(), false)
	em.sendSpeechToOutput(context.Background(), "ok", result, worker.NewSignal(), nil, nil)

	if tr.MuteCalls != 1 || tr.UnmuteCalls != 1 {
		t.Fatalf("mute/unmute calls = %d/%d, want 1/1", tr.MuteCalls, tr.UnmuteCalls)
	}
	if tr.Muted() {
		t.Fatal("transcriber left muted after playback")
	}
}
