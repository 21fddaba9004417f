package synthesizer

import (
	"strings"

	"github.com/colloquy-ai/colloquy/pkg/audio"
)

// ResultFromAudio builds a SynthesisResult over fully materialised audio
// data, slicing it into chunkSize pieces. Used for cached phrase audio and by
// synthesizers that download before streaming. MessageUpTo estimates the
// spoken prefix proportionally over the audio's total duration.
func ResultFromAudio(message string, data []byte, chunkSize int, cfg Config, cached bool) *SynthesisResult {
	if chunkSize <= 0 {
		chunkSize = len(data)
	}
	ch := make(chan ChunkResult, len(data)/max(chunkSize, 1)+1)
	for i := 0; i < len(data); i += chunkSize {
		end := min(i+chunkSize, len(data))
		chunk := data[i:end]
		if cfg.ShouldEncodeAsWAV {
			chunk = audio.Wrap(chunk, cfg.AudioEncoding, cfg.SamplingRate)
		}
		ch <- ChunkResult{Chunk: chunk, IsLast: end == len(data)}
	}
	close(ch)

	return &SynthesisResult{
		Chunks:      ch,
		MessageUpTo: MessageCutoffByLength(message, len(data), cfg),
		Cached:      cached,
	}
}

// MessageCutoffByLength returns a MessageUpTo function estimating the spoken
// prefix from the total audio length: n seconds of playback cover the
// proportional share of the message text.
func MessageCutoffByLength(message string, totalBytes int, cfg Config) func(seconds float64) string {
	return func(seconds float64) string {
		if message == "" || totalBytes <= 0 {
			return message
		}
		totalSeconds := float64(totalBytes) / float64(audio.BytesPerSecond(cfg.AudioEncoding, cfg.SamplingRate))
		if totalSeconds <= 0 {
			return message
		}
		secondsPerChar := totalSeconds / float64(len(message))
		cut := int(seconds / secondsPerChar)
		switch {
		case cut >= len(message):
			return message
		case cut < 0:
			return ""
		default:
			return message[:cut]
		}
	}
}

// MessageCutoffByVoiceSpeed returns a MessageUpTo function estimating the
// spoken prefix from a words-per-minute speaking rate, for streaming
// synthesizers whose total audio length is unknown up front.
func MessageCutoffByVoiceSpeed(message string, wordsPerMinute int) func(seconds float64) string {
	return func(seconds float64) string {
		if wordsPerMinute <= 0 {
			return message
		}
		wordsSpoken := int(float64(wordsPerMinute) / 60 * seconds)
		words := strings.Fields(message)
		if wordsSpoken >= len(words) {
			return message
		}
		if wordsSpoken <= 0 {
			return ""
		}

		// Walk the original string so separators survive the round trip.
		idx := 0
		for i := 0; i < wordsSpoken; i++ {
			j := strings.Index(message[idx:], words[i])
			if j < 0 {
				return message
			}
			idx += j + len(words[i])
		}
		return message[:idx]
	}
}
