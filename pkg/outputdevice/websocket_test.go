package outputdevice

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/colloquy-ai/colloquy/pkg/audio"
	"github.com/colloquy-ai/colloquy/pkg/types"
)

// echoServer accepts one websocket connection and forwards every text frame
// it receives to frames.
func echoServer(t *testing.T, frames chan<- []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer conn.CloseNow()
		for {
			_, payload, err := conn.Read(r.Context())
			if err != nil {
				return
			}
			frames <- payload
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func readFrame(t *testing.T, frames <-chan []byte) map[string]any {
	t.Helper()
	select {
	case payload := <-frames:
		var frame map[string]any
		if err := json.Unmarshal(payload, &frame); err != nil {
			t.Fatalf("unmarshal frame %q: %v", payload, err)
		}
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
		return nil
	}
}

func TestWebSocket_SendsAudioAndTranscriptFrames(t *testing.T) {
	frames := make(chan []byte, 8)
	srv := echoServer(t, frames)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	d := NewWebSocket(conn, 16000, audio.EncodingLinear16, nil)
	if d.SamplingRate() != 16000 || d.AudioEncoding() != audio.EncodingLinear16 {
		t.Fatalf("format = %d/%s", d.SamplingRate(), d.AudioEncoding())
	}
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	chunk := []byte{1, 2, 3, 4}
	d.ConsumeNonblocking(chunk)

	frame := readFrame(t, frames)
	if frame["type"] != "audio" {
		t.Fatalf("frame type = %v, want audio", frame["type"])
	}
	data, err := base64.StdEncoding.DecodeString(frame["data"].(string))
	if err != nil || string(data) != string(chunk) {
		t.Fatalf("frame data = %v (err %v), want %v", data, err, chunk)
	}

	d.ConsumeTranscript(types.TranscriptEvent{
		Conversation: "conv-1",
		Sender:       types.SenderBot,
		Text:         "Hi there.",
		Timestamp:    time.Now(),
	})

	frame = readFrame(t, frames)
	if frame["type"] != "transcript" {
		t.Fatalf("frame type = %v, want transcript", frame["type"])
	}
	if frame["sender"] != "bot" || frame["text"] != "Hi there." {
		t.Fatalf("transcript frame = %v", frame)
	}

	if err := d.Terminate(); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
}

func TestWebSocket_DropsFramesAfterTerminate(t *testing.T) {
	frames := make(chan []byte, 8)
	srv := echoServer(t, frames)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	d := NewWebSocket(conn, 8000, audio.EncodingMulaw, nil)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := d.Terminate(); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	if err := d.Terminate(); err != nil {
		t.Fatalf("second Terminate: %v", err)
	}

	d.ConsumeNonblocking([]byte{9, 9})
	select {
	case payload := <-frames:
		t.Fatalf("frame sent after terminate: %s", payload)
	case <-time.After(100 * time.Millisecond):
	}
}
