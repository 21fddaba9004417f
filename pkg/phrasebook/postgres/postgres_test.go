package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/colloquy-ai/colloquy/pkg/phrasebook"
)

// ---------------------------------------------------------------------------
// Test helpers — mock DB types
// ---------------------------------------------------------------------------

type mockRow struct {
	scanFunc func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error { return r.scanFunc(dest...) }

type mockDB struct {
	queryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
	execFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)

	execSQL  []string
	execArgs [][]any
}

func (db *mockDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return db.queryRowFunc(ctx, sql, args...)
}

func (db *mockDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.execSQL = append(db.execSQL, sql)
	db.execArgs = append(db.execArgs, args)
	if db.execFunc != nil {
		return db.execFunc(ctx, sql, args...)
	}
	return pgconn.CommandTag{}, nil
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestGet_Found(t *testing.T) {
	db := &mockDB{
		queryRowFunc: func(_ context.Context, sql string, args ...any) pgx.Row {
			if !strings.Contains(sql, "FROM phrase_audio") {
				t.Errorf("unexpected query: %s", sql)
			}
			if args[0] != "voice-1" || args[1] != "Um..." {
				t.Errorf("unexpected args: %v", args)
			}
			return &mockRow{scanFunc: func(dest ...any) error {
				*dest[0].(*[]byte) = []byte{1, 2, 3}
				return nil
			}}
		},
	}

	data, err := New(db).Get(context.Background(), "voice-1", "Um...")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(data) != 3 || data[0] != 1 {
		t.Errorf("unexpected audio: %v", data)
	}
}

func TestGet_Miss(t *testing.T) {
	db := &mockDB{
		queryRowFunc: func(_ context.Context, _ string, _ ...any) pgx.Row {
			return &mockRow{scanFunc: func(...any) error { return pgx.ErrNoRows }}
		},
	}

	_, err := New(db).Get(context.Background(), "voice-1", "missing")
	if !errors.Is(err, phrasebook.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGet_DBError(t *testing.T) {
	dbErr := errors.New("connection reset")
	db := &mockDB{
		queryRowFunc: func(_ context.Context, _ string, _ ...any) pgx.Row {
			return &mockRow{scanFunc: func(...any) error { return dbErr }}
		},
	}

	_, err := New(db).Get(context.Background(), "voice-1", "Um...")
	if !errors.Is(err, dbErr) {
		t.Errorf("expected wrapped db error, got %v", err)
	}
}

func TestPut_Upserts(t *testing.T) {
	db := &mockDB{}
	if err := New(db).Put(context.Background(), "voice-1", "Um...", []byte{7}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if len(db.execSQL) != 1 {
		t.Fatalf("expected 1 exec, got %d", len(db.execSQL))
	}
	if !strings.Contains(db.execSQL[0], "ON CONFLICT") {
		t.Errorf("expected an upsert, got: %s", db.execSQL[0])
	}
	if db.execArgs[0][0] != "voice-1" || db.execArgs[0][1] != "Um..." {
		t.Errorf("unexpected args: %v", db.execArgs[0])
	}
}

func TestMigrate(t *testing.T) {
	db := &mockDB{}
	if err := New(db).Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if len(db.execSQL) != 1 || !strings.Contains(db.execSQL[0], "CREATE TABLE IF NOT EXISTS phrase_audio") {
		t.Errorf("expected schema exec, got %v", db.execSQL)
	}
}
