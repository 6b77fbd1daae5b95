package conversation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func TestCurrentSessionIDRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	got, err := LoadCurrentSessionID()
	if err != nil {
		t.Fatalf("LoadCurrentSessionID() error = %v", err)
	}
	if got != nil {
		t.Fatalf("LoadCurrentSessionID() = %v before any save, want nil", got)
	}

	id := uuid.New()
	if err := SaveCurrentSessionID(id); err != nil {
		t.Fatalf("SaveCurrentSessionID() error = %v", err)
	}

	got, err = LoadCurrentSessionID()
	if err != nil {
		t.Fatalf("LoadCurrentSessionID() error = %v", err)
	}
	if got == nil || *got != id {
		t.Fatalf("LoadCurrentSessionID() = %v, want %v", got, id)
	}

	if err := ClearCurrentSessionID(); err != nil {
		t.Fatalf("ClearCurrentSessionID() error = %v", err)
	}
	got, err = LoadCurrentSessionID()
	if err != nil {
		t.Fatalf("LoadCurrentSessionID() after clear error = %v", err)
	}
	if got != nil {
		t.Fatalf("LoadCurrentSessionID() after clear = %v, want nil", got)
	}

	// Clearing with nothing recorded stays a no-op.
	if err := ClearCurrentSessionID(); err != nil {
		t.Fatalf("second ClearCurrentSessionID() error = %v", err)
	}
}

func TestSaveCurrentSessionID_Overwrites(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	first, second := uuid.New(), uuid.New()
	if err := SaveCurrentSessionID(first); err != nil {
		t.Fatal(err)
	}
	if err := SaveCurrentSessionID(second); err != nil {
		t.Fatal(err)
	}

	got, err := LoadCurrentSessionID()
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || *got != second {
		t.Fatalf("LoadCurrentSessionID() = %v, want %v", got, second)
	}
}

func TestLoadCurrentSessionID_Malformed(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".heron")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "current_session"), []byte("not-a-uuid"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadCurrentSessionID(); err == nil {
		t.Fatal("expected error for malformed state file")
	}
}
