package outputdevice

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"github.com/colloquy-ai/colloquy/internal/worker"
	"github.com/colloquy-ai/colloquy/pkg/audio"
)

// File writes speech audio to a WAV file. Disk writes run behind a
// worker.BlockingWorker so a slow filesystem never stalls the emitter;
// Terminate drains the backlog and patches the RIFF sizes in the header.
type File struct {
	path         string
	samplingRate int
	encoding     audio.Encoding

	f       *os.File
	written int
	writer  *worker.BlockingWorker[[]byte]

	mu       sync.Mutex
	writeErr error

	terminateOnce sync.Once
	terminateErr  error
}

var _ Device = (*File)(nil)

// NewFile creates a file device writing to path. The file is created on
// Start, truncating any existing file.
func NewFile(path string, samplingRate int, encoding audio.Encoding) *File {
	return &File{
		path:         path,
		samplingRate: samplingRate,
		encoding:     encoding,
	}
}

// Start creates the file, writes a header with zero sizes, and launches the
// write loop. The header is patched with real sizes on Terminate.
func (d *File) Start(ctx context.Context) error {
	f, err := os.Create(d.path)
	if err != nil {
		return fmt.Errorf("outputdevice: create %s: %w", d.path, err)
	}
	if _, err := f.Write(audio.Wrap(nil, d.encoding, d.samplingRate)); err != nil {
		f.Close()
		return fmt.Errorf("outputdevice: write header: %w", err)
	}
	d.f = f

	d.writer = worker.NewBlockingWorker(worker.NewQueue[[]byte](), d.writeChunk)
	d.writer.Start(ctx)
	return nil
}

func (d *File) writeChunk(chunk []byte) {
	n, err := d.f.Write(chunk)
	d.written += n
	if err != nil {
		d.mu.Lock()
		if d.writeErr == nil {
			d.writeErr = err
		}
		d.mu.Unlock()
	}
}

// ConsumeNonblocking queues one chunk for writing.
func (d *File) ConsumeNonblocking(chunk []byte) {
	if d.writer == nil {
		return
	}
	buf := make([]byte, len(chunk))
	copy(buf, chunk)
	d.writer.In().Put(buf)
}

// Terminate drains pending writes, patches the RIFF and data chunk sizes,
// and closes the file. Idempotent.
func (d *File) Terminate() error {
	d.terminateOnce.Do(func() {
		if d.writer == nil {
			return
		}
		d.writer.Terminate()
		d.terminateErr = d.finish()
	})
	return d.terminateErr
}

func (d *File) finish() error {
	d.mu.Lock()
	writeErr := d.writeErr
	d.mu.Unlock()
	if writeErr != nil {
		d.f.Close()
		return fmt.Errorf("outputdevice: write %s: %w", d.path, writeErr)
	}

	// RIFF size at offset 4, data chunk size at offset 40.
	var sizes [4]byte
	binary.LittleEndian.PutUint32(sizes[:], uint32(36+d.written))
	if _, err := d.f.WriteAt(sizes[:], 4); err != nil {
		d.f.Close()
		return fmt.Errorf("outputdevice: patch header: %w", err)
	}
	binary.LittleEndian.PutUint32(sizes[:], uint32(d.written))
	if _, err := d.f.WriteAt(sizes[:], 40); err != nil {
		d.f.Close()
		return fmt.Errorf("outputdevice: patch header: %w", err)
	}
	if err := d.f.Close(); err != nil {
		return fmt.Errorf("outputdevice: close %s: %w", d.path, err)
	}
	return nil
}

// SamplingRate implements Device.
func (d *File) SamplingRate() int { return d.samplingRate }

// AudioEncoding implements Device.
func (d *File) AudioEncoding() audio.Encoding { return d.encoding }
