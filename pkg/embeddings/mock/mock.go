// Package mock provides a deterministic test double for the embeddings
// package.
package mock

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/colloquy-ai/colloquy/pkg/embeddings"
)

// Embedder is a mock implementation of embeddings.Embedder. Vectors are
// derived deterministically from the input text, so equal texts embed
// identically across calls.
type Embedder struct {
	mu sync.Mutex

	// Dims is the produced vector dimensionality. Defaults to 8.
	Dims int

	// Err, if non-nil, is returned by Embed and EmbedBatch.
	Err error

	// EmbedCalls records the text of every Embed call, batch entries
	// included.
	EmbedCalls []string
}

var _ embeddings.Embedder = (*Embedder)(nil)

// New returns a mock embedder producing dims-dimensional vectors.
func New(dims int) *Embedder {
	if dims <= 0 {
		dims = 8
	}
	return &Embedder{Dims: dims}
}

// Embed records the call and returns a deterministic vector for text.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.EmbedCalls = append(e.EmbedCalls, text)
	err := e.Err
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return e.vector(text), nil
}

// EmbedBatch records each text and returns their deterministic vectors.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions implements embeddings.Embedder.
func (e *Embedder) Dimensions() int { return e.Dims }

// ModelID implements embeddings.Embedder.
func (e *Embedder) ModelID() string { return "mock-embedder" }

// CallCount returns the number of embedded texts. Thread-safe.
func (e *Embedder) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.EmbedCalls)
}

// vector hashes text into a unit-free pseudo-embedding.
func (e *Embedder) vector(text string) []float32 {
	out := make([]float32, e.Dims)
	h := fnv.New32a()
	for i := range out {
		h.Write([]byte(text))
		h.Write([]byte{byte(i)})
		out[i] = float32(h.Sum32()%1000) / 1000
	}
	return out
}
