package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/colloquy-ai/colloquy/pkg/audio"
	"github.com/colloquy-ai/colloquy/pkg/synthesizer"
	synthmock "github.com/colloquy-ai/colloquy/pkg/synthesizer/mock"
)

func testSynthConfig() synthesizer.Config {
	return synthesizer.Config{SamplingRate: 16000, AudioEncoding: audio.EncodingLinear16}
}

func TestSynthesizerFallback_PrimaryServes(t *testing.T) {
	primary := synthmock.New(testSynthConfig())
	secondary := synthmock.New(testSynthConfig())

	f := NewSynthesizerFallback(primary, "primary", FallbackConfig{})
	f.AddFallback("secondary", secondary)

	result, err := f.CreateSpeech(context.Background(), "hello", 1024, nil)
	if err != nil {
		t.Fatalf("CreateSpeech: %v", err)
	}
	for range result.Chunks {
	}
	if primary.CallCount() != 1 {
		t.Errorf("primary calls = %d, want 1", primary.CallCount())
	}
	if secondary.CallCount() != 0 {
		t.Errorf("secondary calls = %d, want 0", secondary.CallCount())
	}
}

func TestSynthesizerFallback_FailsOver(t *testing.T) {
	primary := synthmock.New(testSynthConfig())
	primary.Err = errTest
	secondary := synthmock.New(testSynthConfig())

	f := NewSynthesizerFallback(primary, "primary", FallbackConfig{})
	f.AddFallback("secondary", secondary)

	result, err := f.CreateSpeech(context.Background(), "hello", 1024, nil)
	if err != nil {
		t.Fatalf("CreateSpeech: %v", err)
	}
	for range result.Chunks {
	}
	if secondary.CallCount() != 1 {
		t.Errorf("secondary calls = %d, want 1", secondary.CallCount())
	}
}

func TestSynthesizerFallback_OpenBreakerSkipsPrimary(t *testing.T) {
	primary := synthmock.New(testSynthConfig())
	primary.Err = errTest
	secondary := synthmock.New(testSynthConfig())

	f := NewSynthesizerFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour},
	})
	f.AddFallback("secondary", secondary)

	for i := 0; i < 3; i++ {
		if _, err := f.CreateSpeech(context.Background(), "hello", 1024, nil); err != nil {
			t.Fatalf("CreateSpeech %d: %v", i, err)
		}
	}
	// Breaker opened after 2 primary failures; the third call must not reach
	// the primary.
	if primary.CallCount() != 2 {
		t.Errorf("primary calls = %d, want 2", primary.CallCount())
	}
	if secondary.CallCount() != 3 {
		t.Errorf("secondary calls = %d, want 3", secondary.CallCount())
	}
}

func TestSynthesizerFallback_PrimaryMetadata(t *testing.T) {
	primary := synthmock.New(testSynthConfig())
	primary.VoiceID = "primary-voice"
	secondary := synthmock.New(testSynthConfig())
	secondary.VoiceID = "secondary-voice"

	f := NewSynthesizerFallback(primary, "primary", FallbackConfig{})
	f.AddFallback("secondary", secondary)

	if got := f.VoiceIdentifier(); got != "primary-voice" {
		t.Errorf("VoiceIdentifier = %q, want primary-voice", got)
	}
	if got := f.Config().SamplingRate; got != 16000 {
		t.Errorf("Config().SamplingRate = %d, want 16000", got)
	}
}

func TestSynthesizerFallback_TearDownAll(t *testing.T) {
	primary := synthmock.New(testSynthConfig())
	secondary := synthmock.New(testSynthConfig())

	f := NewSynthesizerFallback(primary, "primary", FallbackConfig{})
	f.AddFallback("secondary", secondary)

	if err := f.TearDown(); err != nil {
		t.Fatalf("TearDown: %v", err)
	}
	if primary.TearDownCalls != 1 || secondary.TearDownCalls != 1 {
		t.Errorf("teardown calls = %d/%d, want 1/1", primary.TearDownCalls, secondary.TearDownCalls)
	}
}
