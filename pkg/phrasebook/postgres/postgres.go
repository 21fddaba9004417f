// Package postgres provides a PostgreSQL-backed phrasebook cache, keeping
// synthesized phrase audio across restarts so a new conversation never pays
// for the same filler twice.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/colloquy-ai/colloquy/pkg/phrasebook"
)

// Schema is the SQL DDL for the phrase_audio table. Execute it via
// [Cache.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS phrase_audio (
    voice_id   TEXT NOT NULL,
    phrase     TEXT NOT NULL,
    audio      BYTEA NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (voice_id, phrase)
);
`

// DB is the database interface used by [Cache]. Both *pgxpool.Pool and
// *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Cache is a phrasebook.Cache backed by a PostgreSQL table.
type Cache struct {
	db DB
}

var _ phrasebook.Cache = (*Cache)(nil)

// New creates a Cache over the given connection or pool. The caller is
// responsible for calling [Cache.Migrate] before issuing queries.
func New(db DB) *Cache {
	return &Cache{db: db}
}

// Migrate executes the [Schema] DDL, creating the phrase_audio table if it
// does not already exist.
func (c *Cache) Migrate(ctx context.Context) error {
	if _, err := c.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("phrasebook: migrate: %w", err)
	}
	return nil
}

// Get returns the stored audio, or phrasebook.ErrNotFound.
func (c *Cache) Get(ctx context.Context, voiceID, phrase string) ([]byte, error) {
	const query = `SELECT audio FROM phrase_audio WHERE voice_id = $1 AND phrase = $2`

	var data []byte
	err := c.db.QueryRow(ctx, query, voiceID, phrase).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, phrasebook.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("phrasebook: get: %w", err)
	}
	return data, nil
}

// Put stores audio under the key, replacing any previous value.
func (c *Cache) Put(ctx context.Context, voiceID, phrase string, audio []byte) error {
	const query = `
		INSERT INTO phrase_audio (voice_id, phrase, audio)
		VALUES ($1, $2, $3)
		ON CONFLICT (voice_id, phrase)
		DO UPDATE SET audio = EXCLUDED.audio, updated_at = now()`

	if _, err := c.db.Exec(ctx, query, voiceID, phrase, audio); err != nil {
		return fmt.Errorf("phrasebook: put: %w", err)
	}
	return nil
}
