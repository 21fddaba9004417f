// Package embeddings defines the text-embedding interface used by the vector
// memory layer.
package embeddings

import "context"

// Embedder converts text into dense vectors suitable for similarity search.
//
// Implementations must be safe for concurrent use.
type Embedder interface {
	// Embed returns the embedding vector for one text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one embedding per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector dimensionality this embedder produces.
	Dimensions() int

	// ModelID returns the identifier of the underlying model.
	ModelID() string
}
