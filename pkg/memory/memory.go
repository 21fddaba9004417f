// Package memory defines the long-term vector memory consumed by the chat
// agent: free text in, semantically similar text back out.
package memory

import "context"

// Match is one search result, most similar first.
type Match struct {
	// Text is the stored text.
	Text string

	// Metadata is the metadata stored alongside the text.
	Metadata map[string]string

	// Score is the cosine similarity to the query, in [-1, 1]. Higher is
	// more similar.
	Score float64
}

// Store is a vector-backed text memory.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// AddText embeds and stores one text with optional metadata.
	AddText(ctx context.Context, text string, metadata map[string]string) error

	// Search returns up to k stored texts most similar to query.
	Search(ctx context.Context, query string, k int) ([]Match, error)

	// TearDown releases the store's resources. Idempotent.
	TearDown() error
}
