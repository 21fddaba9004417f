// Package app wires the Colloquy subsystems into a running application.
//
// New builds every provider from the config, assembles a conversation, and
// tracks closers for teardown. Run starts the conversation and blocks until
// the context is cancelled or the conversation ends on its own (goodbye or
// idle timeout). Shutdown tears everything down in reverse build order.
//
// For testing, inject mock implementations via functional options
// (WithTranscriber, WithLLM, etc.). When an option is not provided, New
// creates the real implementation from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/colloquy-ai/colloquy/internal/agent"
	"github.com/colloquy-ai/colloquy/internal/config"
	"github.com/colloquy-ai/colloquy/internal/conversation"
	"github.com/colloquy-ai/colloquy/internal/events"
	"github.com/colloquy-ai/colloquy/internal/resilience"
	"github.com/colloquy-ai/colloquy/pkg/audio"
	"github.com/colloquy-ai/colloquy/pkg/configstore"
	configinmem "github.com/colloquy-ai/colloquy/pkg/configstore/inmem"
	configpg "github.com/colloquy-ai/colloquy/pkg/configstore/postgres"
	oaembed "github.com/colloquy-ai/colloquy/pkg/embeddings/openai"
	"github.com/colloquy-ai/colloquy/pkg/llm"
	"github.com/colloquy-ai/colloquy/pkg/llm/anyllm"
	llmopenai "github.com/colloquy-ai/colloquy/pkg/llm/openai"
	"github.com/colloquy-ai/colloquy/pkg/memory"
	memorypg "github.com/colloquy-ai/colloquy/pkg/memory/postgres"
	"github.com/colloquy-ai/colloquy/pkg/outputdevice"
	"github.com/colloquy-ai/colloquy/pkg/phrasebook"
	phraseinmem "github.com/colloquy-ai/colloquy/pkg/phrasebook/inmem"
	phrasepg "github.com/colloquy-ai/colloquy/pkg/phrasebook/postgres"
	"github.com/colloquy-ai/colloquy/pkg/sentiment"
	"github.com/colloquy-ai/colloquy/pkg/synthesizer"
	"github.com/colloquy-ai/colloquy/pkg/synthesizer/elevenlabs"
	"github.com/colloquy-ai/colloquy/pkg/transcriber"
	"github.com/colloquy-ai/colloquy/pkg/transcriber/deepgram"
)

// App owns the provider lifetimes and the single running conversation.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	transcriber transcriber.Transcriber
	llm         llm.Provider
	synth       synthesizer.Synthesizer
	output      outputdevice.Device
	agent       agent.Agent

	phraseCache phrasebook.Cache
	memory      memory.Store
	analyser    sentiment.Analyser
	settings    configstore.Store
	events      *events.Manager

	conversation *conversation.Conversation

	// inputPath, when set, is a WAV file streamed into the conversation as
	// caller audio.
	inputPath string

	// closers run in reverse order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithLogger sets the application logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithTranscriber injects a transcriber instead of building one from config.
func WithTranscriber(t transcriber.Transcriber) Option {
	return func(a *App) { a.transcriber = t }
}

// WithLLM injects an LLM provider instead of building one from config.
func WithLLM(p llm.Provider) Option {
	return func(a *App) { a.llm = p }
}

// WithSynthesizer injects a synthesizer instead of building one from config.
func WithSynthesizer(s synthesizer.Synthesizer) Option {
	return func(a *App) { a.synth = s }
}

// WithOutputDevice injects an output device instead of building one from config.
func WithOutputDevice(d outputdevice.Device) Option {
	return func(a *App) { a.output = d }
}

// WithAgent injects an agent instead of building a ChatAgent.
func WithAgent(ag agent.Agent) Option {
	return func(a *App) { a.agent = ag }
}

// WithPhraseCache injects a phrase-audio cache.
func WithPhraseCache(c phrasebook.Cache) Option {
	return func(a *App) { a.phraseCache = c }
}

// WithMemoryStore injects a vector memory store.
func WithMemoryStore(s memory.Store) Option {
	return func(a *App) { a.memory = s }
}

// WithConfigStore injects a conversation settings store.
func WithConfigStore(s configstore.Store) Option {
	return func(a *App) { a.settings = s }
}

// WithSentimentAnalyser injects a sentiment analyser.
func WithSentimentAnalyser(an sentiment.Analyser) Option {
	return func(a *App) { a.analyser = an }
}

// WithInputWAV streams the WAV file at path into the conversation as caller
// audio once Run starts.
func WithInputWAV(path string) Option {
	return func(a *App) { a.inputPath = path }
}

// New builds every provider from cfg and assembles the conversation. On
// error, anything already built is torn down.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}
	if a.events == nil {
		a.events = events.NewManager(events.WithLogger(a.logger))
	}

	for _, step := range []func(context.Context) error{
		a.initLLM,
		a.initTranscriber,
		a.initStores,
		a.initSynthesizer,
		a.initOutput,
		a.initAgent,
		a.initConversation,
	} {
		if err := step(ctx); err != nil {
			a.runClosers(context.Background())
			return nil, err
		}
	}
	return a, nil
}

// Conversation returns the assembled conversation.
func (a *App) Conversation() *conversation.Conversation { return a.conversation }

func (a *App) initLLM(context.Context) error {
	if a.llm != nil {
		return nil
	}
	entry := a.cfg.Providers.LLM
	primary, err := buildLLMProvider(entry.LLMEntry)
	if err != nil {
		return err
	}
	if len(entry.Fallbacks) == 0 {
		a.llm = primary
		return nil
	}

	fb := resilience.NewLLMFallback(primary, entry.Name, resilience.FallbackConfig{})
	for _, f := range entry.Fallbacks {
		p, err := buildLLMProvider(f)
		if err != nil {
			return fmt.Errorf("app: build llm fallback %q: %w", f.Name, err)
		}
		fb.AddFallback(f.Name, p)
	}
	a.llm = fb
	return nil
}

func buildLLMProvider(entry config.LLMEntry) (llm.Provider, error) {
	if entry.Name == "" {
		return nil, errors.New("app: providers.llm.name is required")
	}
	if entry.Model == "" {
		return nil, fmt.Errorf("app: providers.llm.model is required for %q", entry.Name)
	}

	switch entry.Name {
	case "openai":
		var opts []llmopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, llmopenai.WithBaseURL(entry.BaseURL))
		}
		return llmopenai.New(entry.APIKey, entry.Model, opts...)
	default:
		var opts []anyllmlib.Option
		if entry.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
		}
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New(entry.Name, entry.Model, opts...)
	}
}

func (a *App) initTranscriber(context.Context) error {
	if a.transcriber != nil {
		return nil
	}
	tc := a.cfg.Providers.Transcriber
	if tc.Name != "deepgram" {
		return fmt.Errorf("app: providers.transcriber.name %q is not supported (want deepgram)", tc.Name)
	}

	trCfg := transcriber.Config{
		SamplingRate:           tc.SamplingRate,
		AudioEncoding:          tc.AudioEncoding,
		MinInterruptConfidence: tc.MinInterruptConfidence,
		MuteDuringSpeech:       tc.MuteDuringSpeech,
	}
	opts := []deepgram.Option{deepgram.WithLogger(a.logger)}
	if tc.Model != "" {
		opts = append(opts, deepgram.WithModel(tc.Model))
	}
	if tc.Language != "" {
		opts = append(opts, deepgram.WithLanguage(tc.Language))
	}
	if tc.EndpointingMs > 0 {
		opts = append(opts, deepgram.WithEndpointing(tc.EndpointingMs))
	}

	t, err := deepgram.New(tc.APIKey, trCfg, opts...)
	if err != nil {
		return fmt.Errorf("app: build transcriber: %w", err)
	}
	a.transcriber = t
	return nil
}

// initStores builds the phrase cache, the vector memory store, and the
// conversation settings store.
func (a *App) initStores(ctx context.Context) error {
	if a.phraseCache == nil {
		switch a.cfg.PhraseCache.Kind {
		case config.StoreInmem:
			a.phraseCache = phraseinmem.New()
		case config.StorePostgres:
			pool, err := a.openPool(ctx, a.cfg.PhraseCache.PostgresDSN)
			if err != nil {
				return fmt.Errorf("app: connect phrase cache: %w", err)
			}
			cache := phrasepg.New(pool)
			if err := cache.Migrate(ctx); err != nil {
				return fmt.Errorf("app: migrate phrase cache: %w", err)
			}
			a.phraseCache = cache
		}
	}

	if a.memory == nil && a.cfg.Memory.PostgresDSN != "" {
		ec := a.cfg.Providers.Embeddings
		if ec.Name == "" {
			a.logger.Warn("memory.postgres_dsn is set but providers.embeddings is not; vector memory disabled")
		} else {
			embedder, err := oaembed.New(ec.APIKey, ec.Model)
			if err != nil {
				return fmt.Errorf("app: build embedder: %w", err)
			}
			pool, err := a.openPool(ctx, a.cfg.Memory.PostgresDSN)
			if err != nil {
				return fmt.Errorf("app: connect vector memory: %w", err)
			}
			store := memorypg.New(pool, embedder, a.cfg.Memory.Namespace)
			if err := store.Migrate(ctx); err != nil {
				return fmt.Errorf("app: migrate vector memory: %w", err)
			}
			a.memory = store
		}
	}

	if a.settings == nil {
		switch a.cfg.ConfigStore.Kind {
		case config.StoreInmem:
			a.settings = configinmem.New()
		case config.StorePostgres:
			pool, err := a.openPool(ctx, a.cfg.ConfigStore.PostgresDSN)
			if err != nil {
				return fmt.Errorf("app: connect config store: %w", err)
			}
			store := configpg.New(pool)
			if err := store.Migrate(ctx); err != nil {
				return fmt.Errorf("app: migrate config store: %w", err)
			}
			a.settings = store
		}
	}
	return nil
}

func (a *App) openPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error {
		pool.Close()
		return nil
	})
	return pool, nil
}

func (a *App) initSynthesizer(context.Context) error {
	if a.synth != nil {
		return nil
	}
	sc := a.cfg.Providers.Synthesizer
	scfg := synthesizer.Config{
		SamplingRate:      sc.SamplingRate,
		AudioEncoding:     sc.AudioEncoding,
		ShouldEncodeAsWAV: sc.EncodeAsWAV,
	}
	if a.cfg.Conversation.TrackBotSentiment {
		scfg.Sentiment = &sentiment.Config{Emotions: a.cfg.Sentiment.Emotions}
	}

	primary, err := a.buildSynthesizer(sc.SynthesizerEntry, scfg)
	if err != nil {
		return err
	}
	if len(sc.Fallbacks) == 0 {
		a.synth = primary
		return nil
	}

	fb := resilience.NewSynthesizerFallback(primary, sc.Name, resilience.FallbackConfig{})
	for _, f := range sc.Fallbacks {
		s, err := a.buildSynthesizer(f, scfg)
		if err != nil {
			return fmt.Errorf("app: build synthesizer fallback %q: %w", f.Name, err)
		}
		fb.AddFallback(f.Name, s)
	}
	a.synth = fb
	return nil
}

func (a *App) buildSynthesizer(entry config.SynthesizerEntry, scfg synthesizer.Config) (synthesizer.Synthesizer, error) {
	if entry.Name != "elevenlabs" {
		return nil, fmt.Errorf("app: providers.synthesizer.name %q is not supported (want elevenlabs)", entry.Name)
	}

	opts := []elevenlabs.Option{elevenlabs.WithLogger(a.logger)}
	if entry.VoiceID != "" {
		opts = append(opts, elevenlabs.WithVoice(entry.VoiceID))
	}
	if entry.Model != "" {
		opts = append(opts, elevenlabs.WithModel(entry.Model))
	}
	if entry.Stability != 0 || entry.SimilarityBoost != 0 {
		opts = append(opts, elevenlabs.WithVoiceSettings(entry.Stability, entry.SimilarityBoost))
	}
	if entry.OptimizeStreamingLatency > 0 {
		opts = append(opts, elevenlabs.WithOptimizeStreamingLatency(entry.OptimizeStreamingLatency))
	}
	if a.phraseCache != nil {
		opts = append(opts, elevenlabs.WithPhraseCache(a.phraseCache))
	}
	return elevenlabs.New(entry.APIKey, scfg, opts...)
}

func (a *App) initOutput(context.Context) error {
	if a.output != nil {
		return nil
	}
	oc := a.cfg.Output
	switch oc.Kind {
	case config.DeviceFile:
		a.output = outputdevice.NewFile(oc.Path, oc.SamplingRate, oc.AudioEncoding)
	case config.DeviceSpeaker:
		a.output = outputdevice.NewSpeaker(oc.SamplingRate, oc.AudioEncoding)
	default:
		return fmt.Errorf("app: output.kind %q is not supported", oc.Kind)
	}
	return nil
}

func (a *App) initAgent(context.Context) error {
	if a.analyser == nil && a.cfg.Conversation.TrackBotSentiment {
		a.analyser = sentiment.NewLLMAnalyser(a.llm, a.cfg.Sentiment.Emotions)
	}
	if a.agent != nil {
		return nil
	}

	opts := []agent.ChatOption{agent.WithLogger(a.logger)}
	if a.memory != nil {
		opts = append(opts, agent.WithVectorMemory(a.memory))
	}
	a.agent = agent.NewChatAgent(a.llm, a.agentConfig(), opts...)
	return nil
}

func (a *App) agentConfig() agent.Config {
	conv := a.cfg.Conversation
	return agent.Config{
		InitialMessage:           conv.InitialMessage,
		Preamble:                 conv.Preamble,
		Epilogue:                 conv.Epilogue,
		SendFillerAudio:          conv.SendFillerAudio,
		SendBackTrackingAudio:    conv.SendBackTrackingAudio,
		SendFollowUpAudio:        conv.SendFollowUpAudio,
		EndConversationOnGoodbye: conv.EndConversationOnGoodbye,
		GoodbyeTimeout:           conv.GoodbyeTimeout.Std(),
		AllowedIdleTime:          conv.AllowedIdleTime.Std(),
		TrackBotSentiment:        conv.TrackBotSentiment,
		AllowAgentToBeCutOff:     conv.AllowAgentToBeCutOff == nil || *conv.AllowAgentToBeCutOff,
		GoodbyePhrases:           conv.GoodbyePhrases,
		Temperature:              conv.Temperature,
		MaxTokens:                conv.MaxTokens,
		MemoryRecallResults:      conv.MemoryRecallResults,
	}
}

func (a *App) initConversation(ctx context.Context) error {
	conv := a.cfg.Conversation
	opts := []conversation.Option{
		conversation.WithLogger(a.logger),
		conversation.WithEventsManager(a.events),
		conversation.WithPerChunkAllowance(conv.PerChunkAllowanceSeconds),
		conversation.WithSecondsPerChunk(conv.TextToSpeechChunkSizeSeconds),
	}
	if a.analyser != nil {
		opts = append(opts, conversation.WithSentimentAnalyser(a.analyser))
	}

	if conv.SendFillerAudio || conv.SendBackTrackingAudio || conv.SendFollowUpAudio {
		bank, err := phrasebook.Prefetch(ctx, a.phraseCache, a.synth, phrasebook.Phrases{
			Filler:       conv.FillerPhrases,
			BackTracking: conv.BackTrackingPhrases,
			FollowUp:     conv.FollowUpPhrases,
		}, a.logger)
		if err != nil {
			return fmt.Errorf("app: prefetch phrase audio: %w", err)
		}
		opts = append(opts, conversation.WithPhraseBank(bank))
	}

	a.conversation = conversation.New(a.transcriber, a.agent, a.synth, a.output, opts...)
	return nil
}

// Run starts the conversation and blocks until ctx is cancelled or the
// conversation terminates on its own.
func (a *App) Run(ctx context.Context) error {
	if err := a.conversation.Start(ctx); err != nil {
		return fmt.Errorf("app: start conversation: %w", err)
	}
	a.saveSettings(ctx)

	if a.inputPath != "" {
		go a.streamInputFile(ctx)
	}

	a.logger.Info("app running", "conversation", a.conversation.ID())
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			a.conversation.Terminate()
			return ctx.Err()
		case <-ticker.C:
			if !a.conversation.Active() {
				return nil
			}
		}
	}
}

// saveSettings persists the conversation setup for later inspection. Failures
// are logged, never fatal.
func (a *App) saveSettings(ctx context.Context) {
	if a.settings == nil {
		return
	}
	conv := a.cfg.Conversation
	record := configstore.Settings{
		"transcriber":                 a.cfg.Providers.Transcriber.Name,
		"llm":                         a.cfg.Providers.LLM.Name,
		"llm_model":                   a.cfg.Providers.LLM.Model,
		"synthesizer":                 a.cfg.Providers.Synthesizer.Name,
		"voice_id":                    a.cfg.Providers.Synthesizer.VoiceID,
		"initial_message":             conv.InitialMessage,
		"end_conversation_on_goodbye": conv.EndConversationOnGoodbye,
		"track_bot_sentiment":         conv.TrackBotSentiment,
	}
	if err := a.settings.Save(ctx, a.conversation.ID(), record); err != nil {
		a.logger.Warn("saving conversation settings failed", "error", err)
	}
}

// streamInputFile feeds the configured WAV file into the conversation at
// real-time pace, 100 ms of audio per tick.
func (a *App) streamInputFile(ctx context.Context) {
	raw, err := os.ReadFile(a.inputPath)
	if err != nil {
		a.logger.Error("reading input file failed", "path", a.inputPath, "error", err)
		return
	}
	pcm, encoding, rate, err := audio.Unwrap(raw)
	if err != nil {
		a.logger.Error("parsing input WAV failed", "path", a.inputPath, "error", err)
		return
	}

	chunkBytes := audio.BytesPerSecond(encoding, rate) / 10
	if chunkBytes <= 0 {
		chunkBytes = len(pcm)
	}
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for off := 0; off < len(pcm); off += chunkBytes {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		a.conversation.ReceiveAudio(pcm[off:min(off+chunkBytes, len(pcm))])
	}
	a.logger.Info("input file fully streamed", "path", a.inputPath, "bytes", len(pcm))
}

// Shutdown terminates the conversation and runs every closer in reverse
// build order. Idempotent; closer failures are logged and never abort the
// teardown.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.logger.Info("shutting down", "closers", len(a.closers))
		if a.conversation != nil {
			a.conversation.Terminate()
		}
		shutdownErr = a.runClosers(ctx)
		a.logger.Info("shutdown complete")
	})
	return shutdownErr
}

func (a *App) runClosers(ctx context.Context) error {
	for i := len(a.closers) - 1; i >= 0; i-- {
		select {
		case <-ctx.Done():
			a.logger.Warn("shutdown deadline exceeded", "remaining", i+1)
			return ctx.Err()
		default:
		}
		if err := a.closers[i](); err != nil {
			a.logger.Warn("closer error", "index", i, "error", err)
		}
	}
	a.closers = nil
	return nil
}
