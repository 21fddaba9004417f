package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by [LoadFromReader] when the file leaves a knob unset.
const (
	DefaultPerChunkAllowanceSeconds     = 0.01
	DefaultTextToSpeechChunkSizeSeconds = 1.0
	DefaultAllowedIdleTime              = 5 * time.Minute
	DefaultGoodbyeTimeout               = 100 * time.Millisecond
)

// ValidProviderNames lists known provider names per pipeline stage. Used by
// [Validate] to warn about unrecognised names.
var ValidProviderNames = map[string][]string{
	"transcriber": {"deepgram"},
	"llm":         {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"synthesizer": {"elevenlabs"},
	"embeddings":  {"openai"},
}

var envVarPattern = regexp.MustCompile(`\$\{(\w+)\}`)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, expands ${ENV_VAR} references
// against the process environment, applies defaults, and validates the
// result. Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	raw = expandEnv(raw)

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}

	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expandEnv replaces every ${NAME} reference with the value of the NAME
// environment variable. Unset variables expand to the empty string.
func expandEnv(raw []byte) []byte {
	return envVarPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		name := envVarPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
}

func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = LogInfo
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = LogText
	}
	if cfg.Metrics.ServiceName == "" {
		cfg.Metrics.ServiceName = "colloquy"
	}

	tr := &cfg.Providers.Transcriber
	if tr.SamplingRate == 0 {
		tr.SamplingRate = 16000
	}
	if tr.AudioEncoding == "" {
		tr.AudioEncoding = "linear16"
	}

	synth := &cfg.Providers.Synthesizer
	if synth.SamplingRate == 0 {
		synth.SamplingRate = 16000
	}
	if synth.AudioEncoding == "" {
		synth.AudioEncoding = "linear16"
	}

	if cfg.Output.Kind == "" {
		cfg.Output.Kind = DeviceFile
	}
	if cfg.Output.Path == "" {
		cfg.Output.Path = "colloquy.wav"
	}
	if cfg.Output.SamplingRate == 0 {
		cfg.Output.SamplingRate = synth.SamplingRate
	}
	if cfg.Output.AudioEncoding == "" {
		cfg.Output.AudioEncoding = synth.AudioEncoding
	}

	conv := &cfg.Conversation
	if conv.PerChunkAllowanceSeconds == 0 {
		conv.PerChunkAllowanceSeconds = DefaultPerChunkAllowanceSeconds
	}
	if conv.TextToSpeechChunkSizeSeconds == 0 {
		conv.TextToSpeechChunkSizeSeconds = DefaultTextToSpeechChunkSizeSeconds
	}
	if conv.AllowedIdleTime == 0 {
		conv.AllowedIdleTime = Duration(DefaultAllowedIdleTime)
	}
	if conv.GoodbyeTimeout == 0 {
		conv.GoodbyeTimeout = Duration(DefaultGoodbyeTimeout)
	}
	if conv.AllowAgentToBeCutOff == nil {
		allow := true
		conv.AllowAgentToBeCutOff = &allow
	}

	if cfg.Memory.Namespace == "" {
		cfg.Memory.Namespace = "colloquy"
	}
	if cfg.PhraseCache.Kind == "" {
		cfg.PhraseCache.Kind = StoreInmem
	}
	if cfg.ConfigStore.Kind == "" {
		cfg.ConfigStore.Kind = StoreInmem
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing every validation failure found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Logging.Level.IsValid() {
		errs = append(errs, fmt.Errorf("logging.level %q is invalid; valid values: debug, info, warn, error", cfg.Logging.Level))
	}
	if !cfg.Logging.Format.IsValid() {
		errs = append(errs, fmt.Errorf("logging.format %q is invalid; valid values: text, json", cfg.Logging.Format))
	}

	validateProviderName("transcriber", cfg.Providers.Transcriber.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("synthesizer", cfg.Providers.Synthesizer.Name)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)

	tr := cfg.Providers.Transcriber
	if tr.SamplingRate < 0 {
		errs = append(errs, fmt.Errorf("providers.transcriber.sampling_rate %d is negative", tr.SamplingRate))
	}
	if !tr.AudioEncoding.IsValid() {
		errs = append(errs, fmt.Errorf("providers.transcriber.audio_encoding %q is invalid; valid values: linear16, mulaw", tr.AudioEncoding))
	}
	if tr.MinInterruptConfidence < 0 || tr.MinInterruptConfidence > 1 {
		errs = append(errs, fmt.Errorf("providers.transcriber.min_interrupt_confidence %.2f is out of range [0, 1]", tr.MinInterruptConfidence))
	}

	for i, fb := range cfg.Providers.LLM.Fallbacks {
		if fb.Name == "" || fb.Model == "" {
			errs = append(errs, fmt.Errorf("providers.llm.fallbacks[%d] needs both name and model", i))
		}
	}

	synth := cfg.Providers.Synthesizer
	if synth.SamplingRate < 0 {
		errs = append(errs, fmt.Errorf("providers.synthesizer.sampling_rate %d is negative", synth.SamplingRate))
	}
	if !synth.AudioEncoding.IsValid() {
		errs = append(errs, fmt.Errorf("providers.synthesizer.audio_encoding %q is invalid; valid values: linear16, mulaw", synth.AudioEncoding))
	}
	if synth.OptimizeStreamingLatency < 0 || synth.OptimizeStreamingLatency > 4 {
		errs = append(errs, fmt.Errorf("providers.synthesizer.optimize_streaming_latency %d is out of range [0, 4]", synth.OptimizeStreamingLatency))
	}
	for i, fb := range synth.Fallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.synthesizer.fallbacks[%d].name is required", i))
		}
	}

	if !cfg.Output.Kind.IsValid() {
		errs = append(errs, fmt.Errorf("output.kind %q is invalid; valid values: file, speaker", cfg.Output.Kind))
	}
	if cfg.Output.Kind == DeviceFile && cfg.Output.Path == "" {
		errs = append(errs, errors.New("output.path is required for the file device"))
	}
	if !cfg.Output.AudioEncoding.IsValid() {
		errs = append(errs, fmt.Errorf("output.audio_encoding %q is invalid; valid values: linear16, mulaw", cfg.Output.AudioEncoding))
	}

	conv := cfg.Conversation
	if conv.PerChunkAllowanceSeconds < 0 {
		errs = append(errs, fmt.Errorf("conversation.per_chunk_allowance_seconds %.3f is negative", conv.PerChunkAllowanceSeconds))
	}
	if conv.TextToSpeechChunkSizeSeconds <= 0 {
		errs = append(errs, fmt.Errorf("conversation.text_to_speech_chunk_size_seconds %.3f must be positive", conv.TextToSpeechChunkSizeSeconds))
	}
	if conv.Temperature < 0 || conv.Temperature > 2 {
		errs = append(errs, fmt.Errorf("conversation.temperature %.2f is out of range [0, 2]", conv.Temperature))
	}
	if conv.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("conversation.max_tokens %d is negative", conv.MaxTokens))
	}
	if conv.MemoryRecallResults < 0 {
		errs = append(errs, fmt.Errorf("conversation.memory_recall_results %d is negative", conv.MemoryRecallResults))
	}
	if conv.MemoryRecallResults > 0 && cfg.Memory.PostgresDSN == "" {
		slog.Warn("conversation.memory_recall_results is set but memory.postgres_dsn is empty; recall will be disabled")
	}
	if conv.TrackBotSentiment && cfg.Providers.LLM.Name == "" {
		slog.Warn("conversation.track_bot_sentiment needs an LLM provider; sentiment will be disabled")
	}

	if !cfg.PhraseCache.Kind.IsValid() {
		errs = append(errs, fmt.Errorf("phrase_cache.kind %q is invalid; valid values: none, inmem, postgres", cfg.PhraseCache.Kind))
	} else if cfg.PhraseCache.Kind == StorePostgres && cfg.PhraseCache.PostgresDSN == "" {
		errs = append(errs, errors.New("phrase_cache.postgres_dsn is required for the postgres cache"))
	}
	if !cfg.ConfigStore.Kind.IsValid() {
		errs = append(errs, fmt.Errorf("config_store.kind %q is invalid; valid values: none, inmem, postgres", cfg.ConfigStore.Kind))
	} else if cfg.ConfigStore.Kind == StorePostgres && cfg.ConfigStore.PostgresDSN == "" {
		errs = append(errs, errors.New("config_store.postgres_dsn is required for the postgres store"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	if !slices.Contains(ValidProviderNames[kind], name) {
		slog.Warn("unrecognised provider name", "kind", kind, "name", name, "known", ValidProviderNames[kind])
	}
}
