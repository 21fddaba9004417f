// Package postgres provides a memory.Store backed by PostgreSQL with
// pgvector cosine search.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/colloquy-ai/colloquy/pkg/embeddings"
	"github.com/colloquy-ai/colloquy/pkg/memory"
)

// DB is the database interface used by [Store]. Both *pgxpool.Pool and
// *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is a memory.Store over a memory_texts table with a pgvector
// embedding column. Rows are scoped by namespace so several conversations can
// share one table.
type Store struct {
	db        DB
	embedder  embeddings.Embedder
	namespace string

	closer func() error
	once   sync.Once
}

var _ memory.Store = (*Store)(nil)

// Option is a functional option for the Store.
type Option func(*Store)

// WithCloser registers a function run once on TearDown, typically the
// owning pool's Close.
func WithCloser(closer func() error) Option {
	return func(s *Store) {
		s.closer = closer
	}
}

// New creates a Store scoped to namespace. The caller is responsible for
// calling [Store.Migrate] before issuing queries.
func New(db DB, embedder embeddings.Embedder, namespace string, opts ...Option) *Store {
	s := &Store{db: db, embedder: embedder, namespace: namespace}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Schema returns the SQL DDL for the memory_texts table, sized to the
// embedder's dimensionality.
func (s *Store) Schema() string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS memory_texts (
    id         UUID PRIMARY KEY,
    namespace  TEXT NOT NULL,
    content    TEXT NOT NULL,
    metadata   JSONB NOT NULL DEFAULT '{}',
    embedding  vector(%d) NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_memory_texts_namespace ON memory_texts(namespace);
`, s.embedder.Dimensions())
}

// Migrate executes the schema DDL, creating the table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, s.Schema()); err != nil {
		return fmt.Errorf("memory: migrate: %w", err)
	}
	return nil
}

// AddText embeds text and inserts it under the store's namespace.
func (s *Store) AddText(ctx context.Context, text string, metadata map[string]string) error {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("memory: add text: %w", err)
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("memory: marshal metadata: %w", err)
	}

	const query = `
		INSERT INTO memory_texts (id, namespace, content, metadata, embedding)
		VALUES ($1, $2, $3, $4, $5)`

	_, err = s.db.Exec(ctx, query,
		uuid.New(), s.namespace, text, metaJSON, pgvector.NewVector(vec))
	if err != nil {
		return fmt.Errorf("memory: add text: %w", err)
	}
	return nil
}

// Search embeds query and returns the k nearest stored texts by cosine
// distance, most similar first.
func (s *Store) Search(ctx context.Context, query string, k int) ([]memory.Match, error) {
	if k <= 0 {
		return nil, nil
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("memory: search: %w", err)
	}

	const q = `
		SELECT content, metadata, embedding <=> $1 AS distance
		FROM   memory_texts
		WHERE  namespace = $2
		ORDER  BY distance
		LIMIT  $3`

	rows, err := s.db.Query(ctx, q, pgvector.NewVector(vec), s.namespace, k)
	if err != nil {
		return nil, fmt.Errorf("memory: search: %w", err)
	}

	matches, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.Match, error) {
		var (
			m        memory.Match
			metaJSON []byte
			distance float64
		)
		if err := row.Scan(&m.Text, &metaJSON, &distance); err != nil {
			return m, err
		}
		if err := json.Unmarshal(metaJSON, &m.Metadata); err != nil {
			return m, err
		}
		// pgvector's <=> is cosine distance; similarity = 1 - distance.
		m.Score = 1 - distance
		return m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("memory: collect results: %w", err)
	}
	return matches, nil
}

// TearDown runs the registered closer, if any. Idempotent.
func (s *Store) TearDown() error {
	var err error
	s.once.Do(func() {
		if s.closer != nil {
			err = s.closer()
		}
	})
	return err
}
