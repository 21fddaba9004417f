// Package deepgram provides a Transcriber backed by the Deepgram streaming
// WebSocket API.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/colloquy-ai/colloquy/pkg/audio"
	"github.com/colloquy-ai/colloquy/pkg/transcriber"
)

const (
	endpoint          = "wss://api.deepgram.com/v1/listen"
	defaultModel      = "nova-3"
	defaultLanguage   = "en"
	keepaliveInterval = 5 * time.Second
)

// Option is a functional option for configuring the Transcriber.
type Option func(*Transcriber)

// WithModel sets the Deepgram model (e.g. "nova-3", "base").
func WithModel(model string) Option {
	return func(t *Transcriber) {
		t.model = model
	}
}

// WithLanguage sets the BCP-47 language code for recognition.
func WithLanguage(language string) Option {
	return func(t *Transcriber) {
		t.language = language
	}
}

// WithEndpointing sets the Deepgram endpointing silence threshold in
// milliseconds. Zero uses the API default.
func WithEndpointing(ms int) Option {
	return func(t *Transcriber) {
		t.endpointingMs = ms
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transcriber) {
		t.logger = logger
	}
}

// Transcriber implements transcriber.Transcriber over the Deepgram streaming
// WebSocket API.
type Transcriber struct {
	apiKey        string
	cfg           transcriber.Config
	model         string
	language      string
	endpointingMs int
	logger        *slog.Logger

	conn    *websocket.Conn
	results chan transcriber.Transcription
	sendQ   chan []byte

	muted atomic.Bool
	ready atomic.Bool

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

var _ transcriber.Transcriber = (*Transcriber)(nil)

// New creates a Deepgram transcriber. apiKey must be non-empty; cfg supplies
// the audio format and the conversation-facing knobs.
func New(apiKey string, cfg transcriber.Config, opts ...Option) (*Transcriber, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	if cfg.SamplingRate <= 0 {
		return nil, fmt.Errorf("deepgram: sampling rate %d is invalid", cfg.SamplingRate)
	}
	t := &Transcriber{
		apiKey:   apiKey,
		cfg:      cfg,
		model:    defaultModel,
		language: defaultLanguage,
		logger:   slog.Default(),
		results:  make(chan transcriber.Transcription, 64),
		sendQ:    make(chan []byte, 256),
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// Start dials the streaming endpoint and launches the read and write loops.
func (t *Transcriber) Start(ctx context.Context) error {
	wsURL, err := t.buildURL()
	if err != nil {
		return fmt.Errorf("deepgram: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+t.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return fmt.Errorf("deepgram: dial: %w", err)
	}
	t.conn = conn
	t.ready.Store(true)

	t.wg.Add(2)
	go t.readLoop()
	go t.writeLoop()
	return nil
}

// buildURL constructs the streaming endpoint URL from the configuration.
func (t *Transcriber) buildURL() (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}

	encoding := "linear16"
	if t.cfg.AudioEncoding == audio.EncodingMulaw {
		encoding = "mulaw"
	}

	q := u.Query()
	q.Set("model", t.model)
	q.Set("language", t.language)
	q.Set("encoding", encoding)
	q.Set("sample_rate", strconv.Itoa(t.cfg.SamplingRate))
	q.Set("channels", "1")
	q.Set("punctuate", "true")
	q.Set("interim_results", "true")
	if t.endpointingMs > 0 {
		q.Set("endpointing", strconv.Itoa(t.endpointingMs))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Ready reports whether the session is accepting audio.
func (t *Transcriber) Ready() bool { return t.ready.Load() }

// SendAudio queues a chunk for delivery. Chunks are dropped while muted or
// once the session is closed; the pipeline treats both as silence.
func (t *Transcriber) SendAudio(chunk []byte) {
	if t.muted.Load() {
		return
	}
	select {
	case t.sendQ <- chunk:
	case <-t.done:
	}
}

// Results returns the transcription channel.
func (t *Transcriber) Results() <-chan transcriber.Transcription { return t.results }

// Mute drops inbound audio until Unmute.
func (t *Transcriber) Mute() { t.muted.Store(true) }

// Unmute resumes audio forwarding.
func (t *Transcriber) Unmute() { t.muted.Store(false) }

// Config returns the session configuration.
func (t *Transcriber) Config() transcriber.Config { return t.cfg }

// Terminate asks Deepgram to flush pending audio, closes the socket, and
// waits for the loops to exit.
func (t *Transcriber) Terminate() error {
	t.closeOnce.Do(func() {
		t.ready.Store(false)
		close(t.done)
		if t.conn != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			_ = t.conn.Write(ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`))
			cancel()
			t.conn.Close(websocket.StatusNormalClosure, "session closed")
		}
		t.wg.Wait()
	})
	return nil
}

// writeLoop forwards queued audio as binary frames and keeps the session
// alive during silence with periodic KeepAlive messages.
func (t *Transcriber) writeLoop() {
	defer t.wg.Done()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	ctx := context.Background()
	for {
		select {
		case chunk := <-t.sendQ:
			if err := t.conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
				return
			}
		case <-keepalive.C:
			if err := t.conn.Write(ctx, websocket.MessageText, []byte(`{"type":"KeepAlive"}`)); err != nil {
				return
			}
		case <-t.done:
			return
		}
	}
}

// readLoop parses Results events into Transcriptions.
func (t *Transcriber) readLoop() {
	defer t.wg.Done()
	defer close(t.results)

	ctx := context.Background()
	for {
		_, msg, err := t.conn.Read(ctx)
		if err != nil {
			select {
			case <-t.done:
			default:
				t.logger.Warn("deepgram read failed", "err", err)
			}
			return
		}

		tr, ok := parseResponse(msg)
		if !ok {
			continue
		}
		select {
		case t.results <- tr:
		case <-t.done:
			return
		}
	}
}

// response is the subset of Deepgram's Results event the pipeline consumes.
type response struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// parseResponse parses a raw WebSocket message into a Transcription. Messages
// other than Results events (metadata, speech-started) are ignored.
func parseResponse(data []byte) (transcriber.Transcription, bool) {
	var resp response
	if err := json.Unmarshal(data, &resp); err != nil {
		return transcriber.Transcription{}, false
	}
	if resp.Type != "Results" || len(resp.Channel.Alternatives) == 0 {
		return transcriber.Transcription{}, false
	}

	alt := resp.Channel.Alternatives[0]
	return transcriber.Transcription{
		Message:    alt.Transcript,
		Confidence: alt.Confidence,
		IsFinal:    resp.IsFinal,
	}, true
}
