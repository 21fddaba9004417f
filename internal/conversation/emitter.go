package conversation

import (
	"context"
	"log/slog"
	"time"

	"github.com/colloquy-ai/colloquy/internal/observe"
	"github.com/colloquy-ai/colloquy/internal/transcript"
	"github.com/colloquy-ai/colloquy/internal/worker"
	"github.com/colloquy-ai/colloquy/pkg/outputdevice"
	"github.com/colloquy-ai/colloquy/pkg/synthesizer"
	"github.com/colloquy-ai/colloquy/pkg/transcriber"
)

// emitter plays synthesized speech at real-time pace: one chunk per
// secondsPerChunk of audio, sleeping away the difference between the chunk's
// speech length and the time spent producing and sending it.
type emitter struct {
	output      outputdevice.Device
	transcriber transcriber.Transcriber

	// secondsPerChunk is the nominal playback time of one full-size chunk;
	// chunkSize is the byte count that corresponds to it.
	secondsPerChunk   float64
	perChunkAllowance float64
	chunkSize         int

	// stampAction refreshes the conversation's last-activity timestamp.
	stampAction func()

	logger  *slog.Logger
	metrics *observe.Metrics
}

// sendSpeechToOutput plays result chunk by chunk until the stream ends or
// stop fires. It returns the message text actually spoken and whether the
// utterance was cut off.
//
// When tm is non-nil its text tracks the spoken prefix chunk by chunk, so
// concurrent transcript readers see what the user has heard so far. started,
// when non-nil, fires on the first emitted chunk.
func (e *emitter) sendSpeechToOutput(
	ctx context.Context,
	message string,
	result *synthesizer.SynthesisResult,
	stop *worker.Signal,
	tm *transcript.Message,
	started *worker.Signal,
) (messageSent string, cutOff bool) {
	muted := false
	if e.transcriber != nil && e.transcriber.Config().MuteDuringSpeech {
		e.transcriber.Mute()
		muted = true
	}

	messageSent = message
	chunkIdx := 0
	secondsSpoken := 0.0

loop:
	for {
		var (
			chunk synthesizer.ChunkResult
			ok    bool
		)
		// Prefer an already-available chunk (or a clean close) so a stop
		// firing after the final chunk does not misreport a cut-off.
		select {
		case chunk, ok = <-result.Chunks:
			if !ok {
				break loop
			}
		default:
			select {
			case chunk, ok = <-result.Chunks:
				if !ok {
					break loop
				}
			case <-stop.Done():
				messageSent = result.MessageUpTo(secondsSpoken) + "-"
				cutOff = true
				break loop
			case <-ctx.Done():
				messageSent = result.MessageUpTo(secondsSpoken) + "-"
				cutOff = true
				break loop
			}
		}

		start := time.Now()
		speechLength := e.secondsPerChunk * float64(len(chunk.Chunk)) / float64(e.chunkSize)

		if stop.IsSet() {
			messageSent = result.MessageUpTo(secondsSpoken) + "-"
			cutOff = true
			break
		}
		if chunkIdx == 0 && started != nil {
			started.Set()
		}

		e.output.ConsumeNonblocking(chunk.Chunk)

		if sleep := speechLength - time.Since(start).Seconds() - e.perChunkAllowance; sleep > 0 {
			timer := time.NewTimer(time.Duration(sleep * float64(time.Second)))
			select {
			case <-timer.C:
			case <-stop.Done():
				timer.Stop()
			case <-ctx.Done():
				timer.Stop()
			}
		}
		if e.metrics != nil {
			e.metrics.ChunkLag.Record(ctx, max(0, time.Since(start).Seconds()-speechLength))
		}

		e.stampAction()
		chunkIdx++
		secondsSpoken += e.secondsPerChunk
		if tm != nil {
			tm.SetText(result.MessageUpTo(secondsSpoken))
		}
	}

	if muted {
		e.transcriber.Unmute()
	}
	if tm != nil {
		tm.SetText(messageSent)
	}
	return messageSent, cutOff
}
