package phrasebook_test

import (
	"context"
	"errors"
	"testing"

	"github.com/colloquy-ai/colloquy/pkg/audio"
	"github.com/colloquy-ai/colloquy/pkg/phrasebook"
	"github.com/colloquy-ai/colloquy/pkg/phrasebook/inmem"
	"github.com/colloquy-ai/colloquy/pkg/synthesizer"
	synthmock "github.com/colloquy-ai/colloquy/pkg/synthesizer/mock"
)

func testSynth() *synthmock.Synthesizer {
	return synthmock.New(synthesizer.Config{
		SamplingRate:  16000,
		AudioEncoding: audio.EncodingLinear16,
	})
}

func TestPrefetch_Defaults(t *testing.T) {
	synth := testSynth()

	bank, err := phrasebook.Prefetch(context.Background(), nil, synth, phrasebook.Phrases{}, nil)
	if err != nil {
		t.Fatalf("Prefetch: %v", err)
	}

	if len(bank.Filler) != len(phrasebook.DefaultFillerPhrases) {
		t.Errorf("filler = %d, want %d", len(bank.Filler), len(phrasebook.DefaultFillerPhrases))
	}
	if len(bank.BackTracking) != len(phrasebook.DefaultBackTrackingPhrases) {
		t.Errorf("back tracking = %d, want %d", len(bank.BackTracking), len(phrasebook.DefaultBackTrackingPhrases))
	}
	if len(bank.FollowUp) != len(phrasebook.DefaultFollowUpPhrases) {
		t.Errorf("follow up = %d, want %d", len(bank.FollowUp), len(phrasebook.DefaultFollowUpPhrases))
	}
	for i, pa := range bank.Filler {
		if pa.Text != phrasebook.DefaultFillerPhrases[i] {
			t.Errorf("filler[%d].Text = %q, want %q", i, pa.Text, phrasebook.DefaultFillerPhrases[i])
		}
		if len(pa.Audio) == 0 {
			t.Errorf("filler[%d] has no audio", i)
		}
	}

	want := len(phrasebook.DefaultFillerPhrases) +
		len(phrasebook.DefaultBackTrackingPhrases) +
		len(phrasebook.DefaultFollowUpPhrases)
	if synth.CallCount() != want {
		t.Errorf("synthesis calls = %d, want %d", synth.CallCount(), want)
	}
}

func TestPrefetch_PopulatesAndReusesCache(t *testing.T) {
	synth := testSynth()
	cache := inmem.New()
	phrases := phrasebook.Phrases{
		Filler:       []string{"Um..."},
		BackTracking: []string{"Right."},
		FollowUp:     []string{"Anything else?"},
	}

	if _, err := phrasebook.Prefetch(context.Background(), cache, synth, phrases, nil); err != nil {
		t.Fatalf("first Prefetch: %v", err)
	}
	if cache.Len() != 3 {
		t.Errorf("cache entries = %d, want 3", cache.Len())
	}
	first := synth.CallCount()

	// A second prefetch against the same cache must not synthesize again.
	if _, err := phrasebook.Prefetch(context.Background(), cache, synth, phrases, nil); err != nil {
		t.Fatalf("second Prefetch: %v", err)
	}
	if synth.CallCount() != first {
		t.Errorf("synthesis calls grew from %d to %d on a warm cache", first, synth.CallCount())
	}
}

func TestPrefetch_SynthesisError(t *testing.T) {
	synth := testSynth()
	synth.Err = errors.New("backend down")

	_, err := phrasebook.Prefetch(context.Background(), nil, synth, phrasebook.Phrases{
		Filler:       []string{"Um..."},
		BackTracking: []string{"Right."},
		FollowUp:     []string{"Anything else?"},
	}, nil)
	if err == nil {
		t.Fatal("expected error when synthesis fails")
	}
}

func TestPrefetch_UnwrapsWAV(t *testing.T) {
	synth := synthmock.New(synthesizer.Config{
		SamplingRate:      16000,
		AudioEncoding:     audio.EncodingLinear16,
		ShouldEncodeAsWAV: true,
	})
	synth.Audio = []byte{1, 2, 3, 4}

	bank, err := phrasebook.Prefetch(context.Background(), nil, synth, phrasebook.Phrases{
		Filler:       []string{"Um..."},
		BackTracking: []string{"Right."},
		FollowUp:     []string{"Anything else?"},
	}, nil)
	if err != nil {
		t.Fatalf("Prefetch: %v", err)
	}
	got := bank.Filler[0].Audio
	if len(got) != 4 || got[0] != 1 {
		t.Errorf("expected raw payload {1 2 3 4}, got %v", got)
	}
}
