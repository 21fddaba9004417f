package inmem

import (
	"context"
	"errors"
	"testing"

	"github.com/colloquy-ai/colloquy/pkg/configstore"
)

func TestStore_RoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	in := configstore.Settings{"voice": "adam", "idle_seconds": 300}
	if err := s.Save(ctx, "conv-1", in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := s.Get(ctx, "conv-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if out["voice"] != "adam" {
		t.Errorf("voice = %v, want adam", out["voice"])
	}

	// Mutating the returned copy must not affect the stored record.
	out["voice"] = "rachel"
	again, err := s.Get(ctx, "conv-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if again["voice"] != "adam" {
		t.Errorf("stored record mutated through returned copy")
	}
}

func TestStore_GetMissing(t *testing.T) {
	s := New()
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, configstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_Delete(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Save(ctx, "conv-1", configstore.Settings{}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Delete(ctx, "conv-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "conv-1"); !errors.Is(err, configstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	// Deleting a missing record is not an error.
	if err := s.Delete(ctx, "missing"); err != nil {
		t.Errorf("Delete missing: %v", err)
	}
}
