// Package configstore persists per-conversation configuration records, so an
// operator can set up a conversation ahead of time and recall its settings by
// conversation ID. The conversation core never consults the store mid-call.
package configstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no record exists for the ID.
var ErrNotFound = errors.New("configstore: record not found")

// Settings is one conversation's configuration payload. Keys and value shapes
// are owned by the app layer.
type Settings map[string]any

// Store persists Settings by conversation ID.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores settings under id, replacing any previous record.
	Save(ctx context.Context, id string, settings Settings) error

	// Get returns the settings stored under id, or ErrNotFound.
	Get(ctx context.Context, id string) (Settings, error)

	// Delete removes the record for id. Deleting a missing record is not an
	// error.
	Delete(ctx context.Context, id string) error
}
