// Package config provides the configuration schema and loader for the
// Colloquy voice conversation server.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/colloquy-ai/colloquy/pkg/audio"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// LogFormat selects the slog handler for the server.
type LogFormat string

const (
	LogText LogFormat = "text"
	LogJSON LogFormat = "json"
)

// IsValid reports whether f is a recognised log format.
func (f LogFormat) IsValid() bool {
	return f == LogText || f == LogJSON
}

// DeviceKind selects the output device implementation.
type DeviceKind string

const (
	// DeviceFile writes spoken audio to a WAV file.
	DeviceFile DeviceKind = "file"

	// DeviceSpeaker plays spoken audio on the default system speaker.
	DeviceSpeaker DeviceKind = "speaker"
)

// IsValid reports whether k is a recognised device kind.
func (k DeviceKind) IsValid() bool {
	return k == DeviceFile || k == DeviceSpeaker
}

// StoreKind selects a storage backend for caches and stores.
type StoreKind string

const (
	StoreNone     StoreKind = "none"
	StoreInmem    StoreKind = "inmem"
	StorePostgres StoreKind = "postgres"
)

// IsValid reports whether k is a recognised store kind.
func (k StoreKind) IsValid() bool {
	switch k {
	case StoreNone, StoreInmem, StorePostgres:
		return true
	}
	return false
}

// Duration is a time.Duration that unmarshals from Go duration strings
// (e.g. "100ms", "5m").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the root configuration structure for Colloquy.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Logging      LoggingConfig      `yaml:"logging"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Providers    ProvidersConfig    `yaml:"providers"`
	Output       OutputConfig       `yaml:"output"`
	Conversation ConversationConfig `yaml:"conversation"`
	Memory       MemoryConfig       `yaml:"memory"`
	PhraseCache  PhraseCacheConfig  `yaml:"phrase_cache"`
	ConfigStore  ConfigStoreConfig  `yaml:"config_store"`
	Sentiment    SentimentConfig    `yaml:"sentiment"`
}

// LoggingConfig controls the slog handler built by the binary.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// MetricsConfig controls the OpenTelemetry meter provider.
type MetricsConfig struct {
	// Enabled installs the Prometheus exporter when true.
	Enabled bool `yaml:"enabled"`

	// ServiceName tags exported metrics.
	ServiceName string `yaml:"service_name"`
}

// ProvidersConfig declares the upstream provider for each pipeline stage.
type ProvidersConfig struct {
	Transcriber TranscriberConfig `yaml:"transcriber"`
	LLM         LLMConfig         `yaml:"llm"`
	Synthesizer SynthesizerConfig `yaml:"synthesizer"`
	Embeddings  EmbeddingsConfig  `yaml:"embeddings"`
}

// TranscriberConfig configures the speech-to-text provider.
type TranscriberConfig struct {
	// Name selects the implementation (currently "deepgram").
	Name string `yaml:"name"`

	// APIKey authenticates against the provider.
	APIKey string `yaml:"api_key"`

	// Model selects the provider's transcription model (e.g. "nova-2").
	Model string `yaml:"model"`

	// Language is the BCP-47 language hint.
	Language string `yaml:"language"`

	SamplingRate  int            `yaml:"sampling_rate"`
	AudioEncoding audio.Encoding `yaml:"audio_encoding"`

	// EndpointingMs is the provider-side silence window that finalizes an
	// utterance.
	EndpointingMs int `yaml:"endpointing_ms"`

	// MinInterruptConfidence gates the interruption protocol; transcriptions
	// below it never cut the bot off.
	MinInterruptConfidence float64 `yaml:"min_interrupt_confidence"`

	// MuteDuringSpeech drops caller audio while the bot speaks.
	MuteDuringSpeech bool `yaml:"mute_during_speech"`
}

// LLMEntry identifies one LLM backend.
type LLMEntry struct {
	// Name selects the backend: "openai" for the native client, or one of
	// the any-llm provider names (anthropic, gemini, ollama, deepseek,
	// mistral, groq, llamacpp, llamafile).
	Name    string `yaml:"name"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// LLMConfig configures the primary LLM and optional ordered fallbacks.
type LLMConfig struct {
	LLMEntry `yaml:",inline"`

	// Fallbacks are tried in order when the primary fails.
	Fallbacks []LLMEntry `yaml:"fallbacks"`
}

// SynthesizerEntry identifies one text-to-speech backend.
type SynthesizerEntry struct {
	// Name selects the implementation (currently "elevenlabs").
	Name    string `yaml:"name"`
	APIKey  string `yaml:"api_key"`
	VoiceID string `yaml:"voice_id"`
	Model   string `yaml:"model"`

	// Stability and SimilarityBoost tune the ElevenLabs voice; zero leaves
	// the provider default.
	Stability       float64 `yaml:"stability"`
	SimilarityBoost float64 `yaml:"similarity_boost"`

	// OptimizeStreamingLatency is the ElevenLabs latency knob (0-4).
	OptimizeStreamingLatency int `yaml:"optimize_streaming_latency"`
}

// SynthesizerConfig configures the primary synthesizer and optional ordered
// fallbacks. Output format fields apply to all entries.
type SynthesizerConfig struct {
	SynthesizerEntry `yaml:",inline"`

	SamplingRate  int            `yaml:"sampling_rate"`
	AudioEncoding audio.Encoding `yaml:"audio_encoding"`

	// EncodeAsWAV wraps each emitted chunk in a RIFF header.
	EncodeAsWAV bool `yaml:"encode_as_wav"`

	// Fallbacks are tried in order when the primary fails.
	Fallbacks []SynthesizerEntry `yaml:"fallbacks"`
}

// EmbeddingsConfig configures the embedding provider backing vector memory.
type EmbeddingsConfig struct {
	// Name selects the implementation (currently "openai").
	Name   string `yaml:"name"`
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// OutputConfig configures where spoken audio goes.
type OutputConfig struct {
	Kind DeviceKind `yaml:"kind"`

	// Path is the WAV file path for the file device.
	Path string `yaml:"path"`

	// SamplingRate and AudioEncoding default to the synthesizer's output
	// format.
	SamplingRate  int            `yaml:"sampling_rate"`
	AudioEncoding audio.Encoding `yaml:"audio_encoding"`
}

// ConversationConfig holds the conversation behaviour knobs.
type ConversationConfig struct {
	// InitialMessage is spoken before the pipeline accepts input.
	InitialMessage string `yaml:"initial_message"`

	// Preamble is the system prompt; Epilogue is appended after the
	// transcript on every request.
	Preamble string `yaml:"preamble"`
	Epilogue string `yaml:"epilogue"`

	// PerChunkAllowanceSeconds is subtracted from each paced sleep to cover
	// send overhead.
	PerChunkAllowanceSeconds float64 `yaml:"per_chunk_allowance_seconds"`

	// TextToSpeechChunkSizeSeconds is the nominal playback time of one
	// audio chunk.
	TextToSpeechChunkSizeSeconds float64 `yaml:"text_to_speech_chunk_size_seconds"`

	// AllowedIdleTime terminates the conversation after this much silence.
	AllowedIdleTime Duration `yaml:"allowed_idle_time"`

	// GoodbyeTimeout bounds the goodbye check after each utterance.
	GoodbyeTimeout Duration `yaml:"goodbye_timeout"`

	EndConversationOnGoodbye bool `yaml:"end_conversation_on_goodbye"`

	// AllowAgentToBeCutOff defaults to true; nil means unset.
	AllowAgentToBeCutOff *bool `yaml:"allow_agent_to_be_cut_off"`

	SendFillerAudio       bool `yaml:"send_filler_audio"`
	SendBackTrackingAudio bool `yaml:"send_back_tracking_audio"`
	SendFollowUpAudio     bool `yaml:"send_follow_up_audio"`
	TrackBotSentiment     bool `yaml:"track_bot_sentiment"`

	// Phrase overrides; empty falls back to the phrasebook defaults.
	FillerPhrases       []string `yaml:"filler_phrases"`
	BackTrackingPhrases []string `yaml:"back_tracking_phrases"`
	FollowUpPhrases     []string `yaml:"follow_up_phrases"`
	GoodbyePhrases      []string `yaml:"goodbye_phrases"`

	// Temperature and MaxTokens pass through to the LLM; zero leaves the
	// backend default.
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`

	// MemoryRecallResults is how many vector-memory matches to recall per
	// turn; zero disables recall.
	MemoryRecallResults int `yaml:"memory_recall_results"`
}

// MemoryConfig configures long-term vector memory.
type MemoryConfig struct {
	// PostgresDSN enables the pgvector store when set.
	PostgresDSN string `yaml:"postgres_dsn"`

	// Namespace isolates this deployment's rows.
	Namespace string `yaml:"namespace"`
}

// PhraseCacheConfig configures the synthesized-phrase audio cache.
type PhraseCacheConfig struct {
	Kind        StoreKind `yaml:"kind"`
	PostgresDSN string    `yaml:"postgres_dsn"`
}

// ConfigStoreConfig configures the per-conversation settings store.
type ConfigStoreConfig struct {
	Kind        StoreKind `yaml:"kind"`
	PostgresDSN string    `yaml:"postgres_dsn"`
}

// SentimentConfig configures bot sentiment tracking.
type SentimentConfig struct {
	// Emotions the analyser may choose from; empty means the sentiment
	// package defaults.
	Emotions []string `yaml:"emotions"`
}
