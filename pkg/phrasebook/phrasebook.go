// Package phrasebook manages precomputed phrase audio: the filler,
// back-tracking, and follow-up utterances the conversation plays without a
// round trip to the synthesizer, plus the cache that stores any synthesized
// phrase keyed by voice and text.
package phrasebook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/colloquy-ai/colloquy/pkg/audio"
	"github.com/colloquy-ai/colloquy/pkg/synthesizer"
)

// ErrNotFound is returned by Cache.Get when no audio is stored for the key.
var ErrNotFound = errors.New("phrasebook: audio not found")

// Cache stores synthesized phrase audio keyed by (voice identifier, phrase
// text). Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the stored audio for the key, or ErrNotFound.
	Get(ctx context.Context, voiceID, phrase string) ([]byte, error)

	// Put stores audio under the key, replacing any previous value.
	Put(ctx context.Context, voiceID, phrase string, audio []byte) error
}

// Default phrase sets, spoken while the agent thinks (filler), as a brief
// acknowledgement when the user interrupts (back-tracking), and to fill the
// silence after a reply (follow-up).
var (
	DefaultFillerPhrases       = []string{"Um...", "Uh...", "Mm-hmm.", "Let me see..."}
	DefaultBackTrackingPhrases = []string{"Mm-hmm.", "Uh-huh.", "Right."}
	DefaultFollowUpPhrases     = []string{"Is there anything else?", "Anything else I can help with?"}
)

// PhraseAudio is one prefetched phrase with its synthesized audio.
type PhraseAudio struct {
	Text  string
	Audio []byte
}

// Bank holds the three prefetched phrase sets for one voice.
type Bank struct {
	Filler       []PhraseAudio
	BackTracking []PhraseAudio
	FollowUp     []PhraseAudio
}

// Phrases configures which texts a Bank prefetches. Zero-value fields fall
// back to the package defaults.
type Phrases struct {
	Filler       []string
	BackTracking []string
	FollowUp     []string
}

// Prefetch synthesizes (or loads from cache) every configured phrase through
// synth, concurrently. Each phrase is looked up in cache first; misses are
// synthesized and stored back. A nil cache skips caching entirely.
func Prefetch(ctx context.Context, cache Cache, synth synthesizer.Synthesizer, phrases Phrases, logger *slog.Logger) (*Bank, error) {
	if logger == nil {
		logger = slog.Default()
	}
	filler := phrases.Filler
	if filler == nil {
		filler = DefaultFillerPhrases
	}
	backTracking := phrases.BackTracking
	if backTracking == nil {
		backTracking = DefaultBackTrackingPhrases
	}
	followUp := phrases.FollowUp
	if followUp == nil {
		followUp = DefaultFollowUpPhrases
	}

	bank := &Bank{
		Filler:       make([]PhraseAudio, len(filler)),
		BackTracking: make([]PhraseAudio, len(backTracking)),
		FollowUp:     make([]PhraseAudio, len(followUp)),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	fetchInto := func(dst []PhraseAudio, texts []string) {
		for i, text := range texts {
			g.Go(func() error {
				data, err := fetchPhrase(ctx, cache, synth, text)
				if err != nil {
					return fmt.Errorf("phrasebook: prefetch %q: %w", text, err)
				}
				dst[i] = PhraseAudio{Text: text, Audio: data}
				return nil
			})
		}
	}
	fetchInto(bank.Filler, filler)
	fetchInto(bank.BackTracking, backTracking)
	fetchInto(bank.FollowUp, followUp)

	if err := g.Wait(); err != nil {
		return nil, err
	}
	logger.Debug("prefetched phrase bank",
		"voice", synth.VoiceIdentifier(),
		"filler", len(bank.Filler),
		"back_tracking", len(bank.BackTracking),
		"follow_up", len(bank.FollowUp),
	)
	return bank, nil
}

// fetchPhrase loads one phrase from the cache, synthesizing and storing it on
// a miss.
func fetchPhrase(ctx context.Context, cache Cache, synth synthesizer.Synthesizer, text string) ([]byte, error) {
	voiceID := synth.VoiceIdentifier()
	if cache != nil {
		data, err := cache.Get(ctx, voiceID, text)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	result, err := synth.CreateSpeech(ctx, text, 0, nil)
	if err != nil {
		return nil, err
	}
	var data []byte
	for chunk := range result.Chunks {
		data = append(data, chunk.Chunk...)
	}
	if len(data) == 0 {
		return nil, errors.New("empty synthesis result")
	}
	// Synthesizers configured to frame chunks as WAV deliver a container;
	// the bank stores raw audio so playback can re-chunk it freely.
	if payload, _, _, err := audio.Unwrap(data); err == nil {
		data = payload
	}

	if cache != nil {
		if err := cache.Put(ctx, voiceID, text, data); err != nil {
			return nil, err
		}
	}
	return data, nil
}
