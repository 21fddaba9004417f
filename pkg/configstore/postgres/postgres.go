// Package postgres provides a configstore.Store backed by a PostgreSQL JSONB
// table.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/colloquy-ai/colloquy/pkg/configstore"
)

// Schema is the SQL DDL for the conversation_settings table. Execute it via
// [Store.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS conversation_settings (
    id         TEXT PRIMARY KEY,
    settings   JSONB NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// DB is the database interface used by [Store]. Both *pgxpool.Pool and
// *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is a configstore.Store over a JSONB table.
type Store struct {
	db DB
}

var _ configstore.Store = (*Store)(nil)

// New creates a Store over the given connection or pool. The caller is
// responsible for calling [Store.Migrate] before issuing queries.
func New(db DB) *Store {
	return &Store{db: db}
}

// Migrate executes the [Schema] DDL.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("configstore: migrate: %w", err)
	}
	return nil
}

// Save upserts the settings for id.
func (s *Store) Save(ctx context.Context, id string, settings configstore.Settings) error {
	payload, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("configstore: marshal settings: %w", err)
	}

	const query = `
		INSERT INTO conversation_settings (id, settings)
		VALUES ($1, $2)
		ON CONFLICT (id)
		DO UPDATE SET settings = EXCLUDED.settings, updated_at = now()`

	if _, err := s.db.Exec(ctx, query, id, payload); err != nil {
		return fmt.Errorf("configstore: save: %w", err)
	}
	return nil
}

// Get returns the settings for id, or configstore.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (configstore.Settings, error) {
	const query = `SELECT settings FROM conversation_settings WHERE id = $1`

	var payload []byte
	err := s.db.QueryRow(ctx, query, id).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, configstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("configstore: get: %w", err)
	}

	var settings configstore.Settings
	if err := json.Unmarshal(payload, &settings); err != nil {
		return nil, fmt.Errorf("configstore: unmarshal settings: %w", err)
	}
	return settings, nil
}

// Delete removes the record for id.
func (s *Store) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM conversation_settings WHERE id = $1`

	if _, err := s.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("configstore: delete: %w", err)
	}
	return nil
}
