package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/colloquy-ai/colloquy/internal/config"
	"github.com/colloquy-ai/colloquy/pkg/audio"
)

const fullConfig = `
logging:
  level: debug
  format: json
metrics:
  enabled: true
  service_name: colloquy-test
providers:
  transcriber:
    name: deepgram
    api_key: ${TEST_DEEPGRAM_KEY}
    model: nova-2
    language: en
    endpointing_ms: 300
    min_interrupt_confidence: 0.5
    mute_during_speech: true
  llm:
    name: openai
    api_key: ${TEST_OPENAI_KEY}
    model: gpt-4o
    fallbacks:
      - name: anthropic
        model: claude-sonnet-4-5
  synthesizer:
    name: elevenlabs
    api_key: ${TEST_ELEVENLABS_KEY}
    voice_id: test-voice
    stability: 0.6
    similarity_boost: 0.8
    optimize_streaming_latency: 2
  embeddings:
    name: openai
    model: text-embedding-3-small
output:
  kind: file
  path: out.wav
conversation:
  initial_message: "Hello!"
  preamble: "You are helpful."
  allowed_idle_time: 2m
  goodbye_timeout: 150ms
  end_conversation_on_goodbye: true
  send_filler_audio: true
  memory_recall_results: 3
memory:
  postgres_dsn: postgres://localhost/colloquy
  namespace: test
phrase_cache:
  kind: postgres
  postgres_dsn: postgres://localhost/colloquy
`

func TestLoadFromReaderFullConfig(t *testing.T) {
	t.Setenv("TEST_DEEPGRAM_KEY", "dg-secret")
	t.Setenv("TEST_OPENAI_KEY", "oa-secret")
	t.Setenv("TEST_ELEVENLABS_KEY", "el-secret")

	cfg, err := config.LoadFromReader(strings.NewReader(fullConfig))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Logging.Level != config.LogDebug || cfg.Logging.Format != config.LogJSON {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if got := cfg.Providers.Transcriber.APIKey; got != "dg-secret" {
		t.Errorf("transcriber api_key = %q, want expanded env value", got)
	}
	if got := cfg.Providers.LLM.APIKey; got != "oa-secret" {
		t.Errorf("llm api_key = %q, want expanded env value", got)
	}
	if len(cfg.Providers.LLM.Fallbacks) != 1 || cfg.Providers.LLM.Fallbacks[0].Name != "anthropic" {
		t.Errorf("llm fallbacks = %+v", cfg.Providers.LLM.Fallbacks)
	}
	if got := cfg.Conversation.AllowedIdleTime.Std(); got != 2*time.Minute {
		t.Errorf("allowed_idle_time = %v, want 2m", got)
	}
	if got := cfg.Conversation.GoodbyeTimeout.Std(); got != 150*time.Millisecond {
		t.Errorf("goodbye_timeout = %v, want 150ms", got)
	}
	if !cfg.Conversation.EndConversationOnGoodbye || !cfg.Conversation.SendFillerAudio {
		t.Errorf("conversation toggles = %+v", cfg.Conversation)
	}
	if cfg.PhraseCache.Kind != config.StorePostgres {
		t.Errorf("phrase_cache.kind = %q", cfg.PhraseCache.Kind)
	}

	// Defaults fill what the file leaves unset.
	if got := cfg.Providers.Transcriber.SamplingRate; got != 16000 {
		t.Errorf("transcriber sampling_rate default = %d, want 16000", got)
	}
	if got := cfg.Output.SamplingRate; got != 16000 {
		t.Errorf("output sampling_rate default = %d, want synthesizer rate", got)
	}
	if cfg.Conversation.AllowAgentToBeCutOff == nil || !*cfg.Conversation.AllowAgentToBeCutOff {
		t.Error("allow_agent_to_be_cut_off default should be true")
	}
}

func TestLoadFromReaderEmptyDocumentGetsDefaults(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Logging.Level != config.LogInfo || cfg.Logging.Format != config.LogText {
		t.Errorf("logging defaults = %+v", cfg.Logging)
	}
	if got := cfg.Conversation.PerChunkAllowanceSeconds; got != config.DefaultPerChunkAllowanceSeconds {
		t.Errorf("per_chunk_allowance_seconds = %v", got)
	}
	if got := cfg.Conversation.TextToSpeechChunkSizeSeconds; got != config.DefaultTextToSpeechChunkSizeSeconds {
		t.Errorf("text_to_speech_chunk_size_seconds = %v", got)
	}
	if got := cfg.Conversation.AllowedIdleTime.Std(); got != config.DefaultAllowedIdleTime {
		t.Errorf("allowed_idle_time = %v", got)
	}
	if got := cfg.Conversation.GoodbyeTimeout.Std(); got != config.DefaultGoodbyeTimeout {
		t.Errorf("goodbye_timeout = %v", got)
	}
	if cfg.Output.Kind != config.DeviceFile || cfg.Output.Path == "" {
		t.Errorf("output defaults = %+v", cfg.Output)
	}
	if cfg.Output.AudioEncoding != audio.EncodingLinear16 {
		t.Errorf("output encoding default = %q", cfg.Output.AudioEncoding)
	}
	if cfg.PhraseCache.Kind != config.StoreInmem || cfg.ConfigStore.Kind != config.StoreInmem {
		t.Errorf("store kind defaults = %q / %q", cfg.PhraseCache.Kind, cfg.ConfigStore.Kind)
	}
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader("serverr:\n  port: 8080\n"))
	if err == nil {
		t.Fatal("unknown top-level key accepted")
	}
}

func TestLoadFromReaderValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "bad log level",
			yaml: "logging:\n  level: loud\n",
			want: "logging.level",
		},
		{
			name: "bad encoding",
			yaml: "providers:\n  transcriber:\n    audio_encoding: opus\n",
			want: "audio_encoding",
		},
		{
			name: "confidence out of range",
			yaml: "providers:\n  transcriber:\n    min_interrupt_confidence: 1.5\n",
			want: "min_interrupt_confidence",
		},
		{
			name: "bad output kind",
			yaml: "output:\n  kind: telephone\n",
			want: "output.kind",
		},
		{
			name: "postgres cache without dsn",
			yaml: "phrase_cache:\n  kind: postgres\n",
			want: "postgres_dsn",
		},
		{
			name: "fallback without model",
			yaml: "providers:\n  llm:\n    name: openai\n    model: gpt-4o\n    fallbacks:\n      - name: groq\n",
			want: "fallbacks[0]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("invalid config accepted")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadFromReaderJoinsMultipleErrors(t *testing.T) {
	bad := "logging:\n  level: loud\noutput:\n  kind: telephone\n"
	_, err := config.LoadFromReader(strings.NewReader(bad))
	if err == nil {
		t.Fatal("invalid config accepted")
	}
	if !strings.Contains(err.Error(), "logging.level") || !strings.Contains(err.Error(), "output.kind") {
		t.Fatalf("joined error missing a failure: %v", err)
	}
}

func TestDurationUnmarshalRejectsGarbage(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader("conversation:\n  goodbye_timeout: fast\n"))
	if err == nil {
		t.Fatal("invalid duration accepted")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load("/nonexistent/colloquy.yaml")
	if err == nil {
		t.Fatal("missing file accepted")
	}
}
