package outputdevice

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/colloquy-ai/colloquy/internal/worker"
	"github.com/colloquy-ai/colloquy/pkg/audio"
	"github.com/colloquy-ai/colloquy/pkg/types"
)

// Frame type discriminators sent to the WebSocket peer.
const (
	frameAudio      = "audio"
	frameTranscript = "transcript"
)

// wsFrame is one JSON message sent to the peer. Audio frames carry base64
// payloads; transcript frames carry the entry fields.
type wsFrame struct {
	Type      string     `json:"type"`
	Data      string     `json:"data,omitempty"`
	Sender    string     `json:"sender,omitempty"`
	Text      string     `json:"text,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// WebSocket forwards speech audio and transcript entries to a WebSocket peer
// as JSON frames. The connection is owned by the caller; Terminate stops
// sending but does not close it.
type WebSocket struct {
	conn         *websocket.Conn
	samplingRate int
	encoding     audio.Encoding
	logger       *slog.Logger

	ctx    context.Context
	writer *worker.BlockingWorker[wsFrame]
	active atomic.Bool
}

var (
	_ Device             = (*WebSocket)(nil)
	_ TranscriptConsumer = (*WebSocket)(nil)
)

// NewWebSocket creates a device sending to conn. logger may be nil.
func NewWebSocket(conn *websocket.Conn, samplingRate int, encoding audio.Encoding, logger *slog.Logger) *WebSocket {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocket{
		conn:         conn,
		samplingRate: samplingRate,
		encoding:     encoding,
		logger:       logger,
	}
}

// Start launches the send loop.
func (d *WebSocket) Start(ctx context.Context) error {
	d.ctx = ctx
	d.writer = worker.NewBlockingWorker(worker.NewQueue[wsFrame](), d.send)
	d.writer.Start(ctx)
	d.active.Store(true)
	return nil
}

func (d *WebSocket) send(frame wsFrame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		d.logger.Error("marshal frame", "error", err)
		return
	}
	if err := d.conn.Write(d.ctx, websocket.MessageText, payload); err != nil {
		// The peer hung up; stop accepting further frames.
		d.active.Store(false)
		d.logger.Warn("websocket write failed", "error", err)
	}
}

// ConsumeNonblocking queues one audio chunk as a base64 JSON frame. Chunks
// are dropped once the device is inactive.
func (d *WebSocket) ConsumeNonblocking(chunk []byte) {
	if !d.active.Load() {
		return
	}
	d.writer.In().Put(wsFrame{
		Type: frameAudio,
		Data: base64.StdEncoding.EncodeToString(chunk),
	})
}

// ConsumeTranscript queues one transcript entry as a JSON frame.
func (d *WebSocket) ConsumeTranscript(event types.TranscriptEvent) {
	if !d.active.Load() {
		return
	}
	ts := event.Timestamp
	d.writer.In().Put(wsFrame{
		Type:      frameTranscript,
		Sender:    string(event.Sender),
		Text:      event.Text,
		Timestamp: &ts,
	})
}

// Terminate stops accepting frames and drains the send queue. The connection
// itself stays open for the caller to close. Idempotent.
func (d *WebSocket) Terminate() error {
	d.active.Store(false)
	if d.writer != nil {
		d.writer.Terminate()
	}
	return nil
}

// SamplingRate implements Device.
func (d *WebSocket) SamplingRate() int { return d.samplingRate }

// AudioEncoding implements Device.
func (d *WebSocket) AudioEncoding() audio.Encoding { return d.encoding }
