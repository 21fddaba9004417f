// Package mock provides a test double for the memory package.
package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/colloquy-ai/colloquy/pkg/memory"
)

// Store is a mock implementation of memory.Store. Stored texts are searched
// by naive substring match unless Results is scripted.
type Store struct {
	mu sync.Mutex

	// Results, if non-nil, is returned verbatim by every Search call.
	Results []memory.Match

	// AddErr and SearchErr, if non-nil, are returned by the matching calls.
	AddErr    error
	SearchErr error

	// Added records every AddText call.
	Added []AddCall

	// SearchQueries records the query of every Search call.
	SearchQueries []string

	// TearDownCalls counts TearDown invocations.
	TearDownCalls int
}

// AddCall records the arguments of one AddText call.
type AddCall struct {
	Text     string
	Metadata map[string]string
}

var _ memory.Store = (*Store)(nil)

// AddText records the call.
func (s *Store) AddText(_ context.Context, text string, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AddErr != nil {
		return s.AddErr
	}
	s.Added = append(s.Added, AddCall{Text: text, Metadata: metadata})
	return nil
}

// Search returns the scripted Results, or substring matches over the added
// texts.
func (s *Store) Search(_ context.Context, query string, k int) ([]memory.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SearchQueries = append(s.SearchQueries, query)
	if s.SearchErr != nil {
		return nil, s.SearchErr
	}
	if s.Results != nil {
		return s.Results, nil
	}

	var matches []memory.Match
	for _, a := range s.Added {
		if strings.Contains(strings.ToLower(a.Text), strings.ToLower(query)) {
			matches = append(matches, memory.Match{Text: a.Text, Metadata: a.Metadata, Score: 1})
			if len(matches) == k {
				break
			}
		}
	}
	return matches, nil
}

// TearDown counts the call.
func (s *Store) TearDown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TearDownCalls++
	return nil
}

// AddedTexts returns the text of every AddText call. Thread-safe.
func (s *Store) AddedTexts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.Added))
	for i, a := range s.Added {
		out[i] = a.Text
	}
	return out
}
