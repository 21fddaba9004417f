// Package elevenlabs provides an ElevenLabs-backed Synthesizer using the
// HTTP streaming text-to-speech API.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/colloquy-ai/colloquy/pkg/audio"
	"github.com/colloquy-ai/colloquy/pkg/phrasebook"
	"github.com/colloquy-ai/colloquy/pkg/sentiment"
	"github.com/colloquy-ai/colloquy/pkg/synthesizer"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io/v1"
	defaultVoiceID = "pNInz6obpgDQGcFmaJgB" // "Adam"
	defaultModel   = "eleven_flash_v2_5"

	// requestTimeout bounds one synthesis request end to end, including the
	// streamed body.
	requestTimeout = 15 * time.Second

	// defaultWordsPerMinute drives the spoken-prefix estimate; the streaming
	// endpoint never reveals the total audio length up front.
	defaultWordsPerMinute = 150
)

// Option is a functional option for configuring the ElevenLabs Synthesizer.
type Option func(*Synthesizer)

// WithVoice sets the ElevenLabs voice ID.
func WithVoice(voiceID string) Option {
	return func(s *Synthesizer) {
		s.voiceID = voiceID
	}
}

// WithModel sets the ElevenLabs model ID (e.g., "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(s *Synthesizer) {
		s.modelID = model
	}
}

// WithVoiceSettings sets the stability and similarity boost knobs. Both are
// sent together; ElevenLabs rejects one without the other.
func WithVoiceSettings(stability, similarityBoost float64) Option {
	return func(s *Synthesizer) {
		s.settings = &voiceSettings{Stability: stability, SimilarityBoost: similarityBoost}
	}
}

// WithOptimizeStreamingLatency sets the optimize_streaming_latency level
// (1-4). Zero leaves the parameter off.
func WithOptimizeStreamingLatency(level int) Option {
	return func(s *Synthesizer) {
		s.optimizeStreamingLatency = level
	}
}

// WithPhraseCache makes CreateSpeech consult cache before calling the API.
// Cache hits are served without a network round trip and marked Cached.
func WithPhraseCache(cache phrasebook.Cache) Option {
	return func(s *Synthesizer) {
		s.cache = cache
	}
}

// WithWordsPerMinute overrides the speaking rate used to estimate the spoken
// prefix on cut-off.
func WithWordsPerMinute(wpm int) Option {
	return func(s *Synthesizer) {
		s.wordsPerMinute = wpm
	}
}

// WithBaseURL overrides the API base URL. Used in tests.
func WithBaseURL(base string) Option {
	return func(s *Synthesizer) {
		s.baseURL = strings.TrimRight(base, "/")
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Synthesizer) {
		s.client = client
	}
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Synthesizer) {
		s.logger = logger
	}
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// speechRequest is the JSON body for POST /text-to-speech/{voice}/stream.
type speechRequest struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id,omitempty"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

// Synthesizer implements synthesizer.Synthesizer backed by the ElevenLabs
// streaming API.
type Synthesizer struct {
	cfg     synthesizer.Config
	apiKey  string
	baseURL string
	voiceID string
	modelID string

	settings                 *voiceSettings
	optimizeStreamingLatency int
	wordsPerMinute           int

	cache  phrasebook.Cache
	client *http.Client
	logger *slog.Logger

	// lifeCtx aborts in-flight requests on TearDown.
	lifeCtx      context.Context
	lifeCancel   context.CancelFunc
	tearDownOnce sync.Once
}

var _ synthesizer.Synthesizer = (*Synthesizer)(nil)

// New creates a new ElevenLabs Synthesizer. apiKey must be non-empty.
func New(apiKey string, cfg synthesizer.Config, opts ...Option) (*Synthesizer, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Synthesizer{
		cfg:            cfg,
		apiKey:         apiKey,
		baseURL:        defaultBaseURL,
		voiceID:        defaultVoiceID,
		modelID:        defaultModel,
		wordsPerMinute: defaultWordsPerMinute,
		client:         &http.Client{},
		logger:         slog.Default(),
		lifeCtx:        ctx,
		lifeCancel:     cancel,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// outputFormat maps the configured encoding and rate onto an ElevenLabs
// output_format value.
func (s *Synthesizer) outputFormat() string {
	if s.cfg.AudioEncoding == audio.EncodingMulaw {
		return fmt.Sprintf("ulaw_%d", s.cfg.SamplingRate)
	}
	return fmt.Sprintf("pcm_%d", s.cfg.SamplingRate)
}

// speechURL builds the streaming synthesis endpoint URL.
func (s *Synthesizer) speechURL() string {
	q := url.Values{}
	q.Set("output_format", s.outputFormat())
	if s.optimizeStreamingLatency > 0 {
		q.Set("optimize_streaming_latency", fmt.Sprint(s.optimizeStreamingLatency))
	}
	return fmt.Sprintf("%s/text-to-speech/%s/stream?%s", s.baseURL, url.PathEscape(s.voiceID), q.Encode())
}

// CreateSpeech synthesizes message, streaming chunkSize pieces of raw PCM as
// the API delivers them. The phrase cache, when configured, is consulted
// first; a hit skips the network entirely.
func (s *Synthesizer) CreateSpeech(ctx context.Context, message string, chunkSize int, _ *sentiment.BotSentiment) (*synthesizer.SynthesisResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, errors.New("elevenlabs: message must not be empty")
	}
	if chunkSize <= 0 {
		chunkSize = audio.BytesPerSecond(s.cfg.AudioEncoding, s.cfg.SamplingRate)
	}

	if s.cache != nil {
		data, err := s.cache.Get(ctx, s.VoiceIdentifier(), message)
		if err == nil {
			return synthesizer.ResultFromAudio(message, data, chunkSize, s.cfg, true), nil
		}
		if !errors.Is(err, phrasebook.ErrNotFound) {
			s.logger.Warn("phrase cache lookup failed", "error", err)
		}
	}

	body, err := json.Marshal(speechRequest{
		Text:          message,
		ModelID:       s.modelID,
		VoiceSettings: s.settings,
	})
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: marshal request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	stop := context.AfterFunc(s.lifeCtx, cancel)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, s.speechURL(), bytes.NewReader(body))
	if err != nil {
		stop()
		cancel()
		return nil, fmt.Errorf("elevenlabs: build request: %w", err)
	}
	req.Header.Set("xi-api-key", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		stop()
		cancel()
		return nil, fmt.Errorf("elevenlabs: synthesize: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		stop()
		cancel()
		return nil, fmt.Errorf("elevenlabs: synthesize: status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	chunks := make(chan synthesizer.ChunkResult)
	go func() {
		defer close(chunks)
		defer cancel()
		defer stop()
		defer resp.Body.Close()

		buf := make([]byte, chunkSize)
		filled := 0
		for {
			n, err := resp.Body.Read(buf[filled:])
			filled += n
			last := err != nil
			if filled == chunkSize || (last && filled > 0) {
				chunk := make([]byte, filled)
				copy(chunk, buf[:filled])
				if s.cfg.ShouldEncodeAsWAV {
					chunk = audio.Wrap(chunk, s.cfg.AudioEncoding, s.cfg.SamplingRate)
				}
				select {
				case chunks <- synthesizer.ChunkResult{Chunk: chunk, IsLast: last && errors.Is(err, io.EOF)}:
				case <-reqCtx.Done():
					return
				}
				filled = 0
			}
			if last {
				if !errors.Is(err, io.EOF) {
					s.logger.Warn("synthesis stream ended early", "error", err)
				}
				return
			}
		}
	}()

	return &synthesizer.SynthesisResult{
		Chunks:      chunks,
		MessageUpTo: synthesizer.MessageCutoffByVoiceSpeed(message, s.wordsPerMinute),
	}, nil
}

// Ready verifies the API key by listing voices.
func (s *Synthesizer) Ready(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/voices", nil)
	if err != nil {
		return fmt.Errorf("elevenlabs: ready: %w", err)
	}
	req.Header.Set("xi-api-key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("elevenlabs: ready: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("elevenlabs: ready: status %d", resp.StatusCode)
	}
	return nil
}

// VoiceIdentifier keys the phrase cache. It covers every setting that changes
// the produced audio.
func (s *Synthesizer) VoiceIdentifier() string {
	parts := []string{"elevenlabs", s.voiceID, s.modelID, s.outputFormat()}
	if s.settings != nil {
		parts = append(parts, fmt.Sprintf("%g-%g", s.settings.Stability, s.settings.SimilarityBoost))
	}
	return strings.Join(parts, "-")
}

// Config returns the synthesizer's configuration.
func (s *Synthesizer) Config() synthesizer.Config {
	return s.cfg
}

// TearDown aborts in-flight synthesis requests. Idempotent.
func (s *Synthesizer) TearDown() error {
	s.tearDownOnce.Do(func() {
		s.lifeCancel()
		s.client.CloseIdleConnections()
	})
	return nil
}
