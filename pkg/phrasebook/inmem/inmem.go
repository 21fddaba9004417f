// Package inmem provides an in-memory phrasebook cache. Entries live for the
// process lifetime; use the postgres cache to persist audio across restarts.
package inmem

import (
	"context"
	"sync"

	"github.com/colloquy-ai/colloquy/pkg/phrasebook"
)

// Cache is a map-backed phrasebook.Cache, safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[key][]byte
}

type key struct {
	voiceID string
	phrase  string
}

var _ phrasebook.Cache = (*Cache)(nil)

// New returns an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[key][]byte)}
}

// Get returns the stored audio, or phrasebook.ErrNotFound.
func (c *Cache) Get(_ context.Context, voiceID, phrase string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.entries[key{voiceID, phrase}]
	if !ok {
		return nil, phrasebook.ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Put stores audio under the key, replacing any previous value.
func (c *Cache) Put(_ context.Context, voiceID, phrase string, audio []byte) error {
	data := make([]byte, len(audio))
	copy(data, audio)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key{voiceID, phrase}] = data
	return nil
}

// Len returns the number of stored entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
