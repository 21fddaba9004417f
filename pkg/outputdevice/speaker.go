package outputdevice

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/colloquy-ai/colloquy/pkg/audio"
)

// Speaker plays speech audio on the default playback device via miniaudio.
// The device callback drains a mutex-guarded buffer; ConsumeNonblocking only
// appends, so the emitter never waits on the audio hardware.
type Speaker struct {
	samplingRate int
	encoding     audio.Encoding

	mu  sync.Mutex
	buf []byte

	mctx   *malgo.AllocatedContext
	device *malgo.Device

	terminateOnce sync.Once
}

var _ Device = (*Speaker)(nil)

// NewSpeaker creates a speaker device. Mulaw input is decoded to 16-bit PCM
// before playback.
func NewSpeaker(samplingRate int, encoding audio.Encoding) *Speaker {
	return &Speaker{samplingRate: samplingRate, encoding: encoding}
}

// Start initialises the miniaudio context and opens the playback device.
func (d *Speaker) Start(_ context.Context) error {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("outputdevice: init audio context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = 1
	deviceConfig.SampleRate = uint32(d.samplingRate)
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: d.onSamples,
	})
	if err != nil {
		mctx.Uninit()
		return fmt.Errorf("outputdevice: init playback device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		mctx.Uninit()
		return fmt.Errorf("outputdevice: start playback: %w", err)
	}

	d.mctx = mctx
	d.device = device
	return nil
}

// onSamples feeds the hardware from the buffer, zero-filling when playback
// outruns synthesis.
func (d *Speaker) onSamples(pOutput, _ []byte, _ uint32) {
	d.mu.Lock()
	n := copy(pOutput, d.buf)
	d.buf = d.buf[n:]
	d.mu.Unlock()

	for i := n; i < len(pOutput); i++ {
		pOutput[i] = 0
	}
}

// ConsumeNonblocking appends one chunk to the playback buffer.
func (d *Speaker) ConsumeNonblocking(chunk []byte) {
	if d.device == nil {
		return
	}
	if d.encoding == audio.EncodingMulaw {
		chunk = audio.DecodeMulaw(chunk)
	}
	d.mu.Lock()
	d.buf = append(d.buf, chunk...)
	d.mu.Unlock()
}

// Terminate stops playback and releases the device. Buffered audio that has
// not reached the hardware is discarded. Idempotent.
func (d *Speaker) Terminate() error {
	d.terminateOnce.Do(func() {
		if d.device != nil {
			d.device.Uninit()
		}
		if d.mctx != nil {
			d.mctx.Uninit()
		}
		d.mu.Lock()
		d.buf = nil
		d.mu.Unlock()
	})
	return nil
}

// SamplingRate implements Device.
func (d *Speaker) SamplingRate() int { return d.samplingRate }

// AudioEncoding implements Device.
func (d *Speaker) AudioEncoding() audio.Encoding { return d.encoding }
