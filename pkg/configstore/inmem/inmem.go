// Package inmem provides an in-memory configstore.Store.
package inmem

import (
	"context"
	"maps"
	"sync"

	"github.com/colloquy-ai/colloquy/pkg/configstore"
)

// Store is a map-backed configstore.Store, safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	records map[string]configstore.Settings
}

var _ configstore.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{records: make(map[string]configstore.Settings)}
}

// Save stores a copy of settings under id.
func (s *Store) Save(_ context.Context, id string, settings configstore.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[id] = maps.Clone(settings)
	return nil
}

// Get returns a copy of the settings for id, or configstore.ErrNotFound.
func (s *Store) Get(_ context.Context, id string) (configstore.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	settings, ok := s.records[id]
	if !ok {
		return nil, configstore.ErrNotFound
	}
	return maps.Clone(settings), nil
}

// Delete removes the record for id.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}
