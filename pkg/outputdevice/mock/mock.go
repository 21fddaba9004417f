// Package mock provides a test double for the outputdevice package.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/colloquy-ai/colloquy/pkg/audio"
	"github.com/colloquy-ai/colloquy/pkg/outputdevice"
	"github.com/colloquy-ai/colloquy/pkg/types"
)

// Device is a mock output device recording every chunk with its arrival
// time, so pacing tests can assert on the emission schedule.
type Device struct {
	mu sync.Mutex

	// Rate and Encoding are returned by SamplingRate and AudioEncoding.
	Rate     int
	Encoding audio.Encoding

	// Chunks holds every consumed audio chunk, in order.
	Chunks [][]byte

	// Timestamps holds the arrival time of each chunk.
	Timestamps []time.Time

	// Transcripts holds every consumed transcript event.
	Transcripts []types.TranscriptEvent

	// StartErr, if non-nil, is returned by Start.
	StartErr error

	// Started and Terminated count lifecycle calls.
	Started    int
	Terminated int
}

var (
	_ outputdevice.Device             = (*Device)(nil)
	_ outputdevice.TranscriptConsumer = (*Device)(nil)
)

// New returns a mock device with the given format.
func New(rate int, encoding audio.Encoding) *Device {
	return &Device{Rate: rate, Encoding: encoding}
}

// Start records the call.
func (d *Device) Start(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Started++
	return d.StartErr
}

// ConsumeNonblocking records the chunk and its arrival time.
func (d *Device) ConsumeNonblocking(chunk []byte) {
	buf := make([]byte, len(chunk))
	copy(buf, chunk)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Chunks = append(d.Chunks, buf)
	d.Timestamps = append(d.Timestamps, time.Now())
}

// ConsumeTranscript records the event.
func (d *Device) ConsumeTranscript(event types.TranscriptEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Transcripts = append(d.Transcripts, event)
}

// Terminate records the call.
func (d *Device) Terminate() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Terminated++
	return nil
}

// SamplingRate implements Device.
func (d *Device) SamplingRate() int { return d.Rate }

// AudioEncoding implements Device.
func (d *Device) AudioEncoding() audio.Encoding { return d.Encoding }

// ChunkCount returns the number of consumed chunks. Thread-safe.
func (d *Device) ChunkCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Chunks)
}

// TotalBytes returns the total consumed audio length. Thread-safe.
func (d *Device) TotalBytes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	var n int
	for _, c := range d.Chunks {
		n += len(c)
	}
	return n
}

// TranscriptTexts returns the text of each consumed transcript event.
// Thread-safe.
func (d *Device) TranscriptTexts() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.Transcripts))
	for i, e := range d.Transcripts {
		out[i] = e.Text
	}
	return out
}
