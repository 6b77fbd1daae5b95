package cmd

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/heronai/heron/internal/conversation"
)

type stubSessionStore struct {
	sessions map[uuid.UUID]*conversation.Session
	created  int
	getErr   error
}

func (s *stubSessionStore) GetSession(_ context.Context, id uuid.UUID) (*conversation.Session, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	if sess, ok := s.sessions[id]; ok {
		return sess, nil
	}
	return nil, fmt.Errorf("session %s: %w", id, conversation.ErrNotFound)
}

func (s *stubSessionStore) CreateSession(_ context.Context, title string) (*conversation.Session, error) {
	s.created++
	sess := &conversation.Session{ID: uuid.New(), Title: title}
	if s.sessions == nil {
		s.sessions = map[uuid.UUID]*conversation.Session{}
	}
	s.sessions[sess.ID] = sess
	return sess, nil
}

func TestResolveSessionID_CreatesWhenNoState(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	store := &stubSessionStore{}

	id, err := resolveSessionID(context.Background(), store, false)
	if err != nil {
		t.Fatalf("resolveSessionID: %v", err)
	}
	if store.created != 1 {
		t.Errorf("created %d sessions, want 1", store.created)
	}

	saved, err := conversation.LoadCurrentSessionID()
	if err != nil {
		t.Fatalf("LoadCurrentSessionID: %v", err)
	}
	if saved == nil || *saved != id {
		t.Errorf("state file records %v, want %s", saved, id)
	}
}

func TestResolveSessionID_ResumesSaved(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	store := &stubSessionStore{}

	sess, err := store.CreateSession(context.Background(), "earlier run")
	if err != nil {
		t.Fatal(err)
	}
	if err := conversation.SaveCurrentSessionID(sess.ID); err != nil {
		t.Fatal(err)
	}

	id, err := resolveSessionID(context.Background(), store, false)
	if err != nil {
		t.Fatalf("resolveSessionID: %v", err)
	}
	if id != sess.ID {
		t.Errorf("resolved %s, want saved session %s", id, sess.ID)
	}
	if store.created != 1 {
		t.Errorf("created %d sessions, want 1 (no new session on resume)", store.created)
	}
}

func TestResolveSessionID_ReplacesDeletedSession(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	store := &stubSessionStore{}

	// State points at a session the store no longer has
	stale := uuid.New()
	if err := conversation.SaveCurrentSessionID(stale); err != nil {
		t.Fatal(err)
	}

	id, err := resolveSessionID(context.Background(), store, false)
	if err != nil {
		t.Fatalf("resolveSessionID: %v", err)
	}
	if id == stale {
		t.Error("should not resume a deleted session")
	}
	if store.created != 1 {
		t.Errorf("created %d sessions, want 1", store.created)
	}

	saved, err := conversation.LoadCurrentSessionID()
	if err != nil {
		t.Fatal(err)
	}
	if saved == nil || *saved != id {
		t.Errorf("state file records %v, want replacement %s", saved, id)
	}
}

func TestResolveSessionID_FreshIgnoresSaved(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	store := &stubSessionStore{}

	sess, err := store.CreateSession(context.Background(), "earlier run")
	if err != nil {
		t.Fatal(err)
	}
	if err := conversation.SaveCurrentSessionID(sess.ID); err != nil {
		t.Fatal(err)
	}

	id, err := resolveSessionID(context.Background(), store, true)
	if err != nil {
		t.Fatalf("resolveSessionID: %v", err)
	}
	if id == sess.ID {
		t.Error("-new should not resume the saved session")
	}
}

func TestResolveSessionID_StoreOutage(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	store := &stubSessionStore{getErr: errors.New("connection refused")}

	if err := conversation.SaveCurrentSessionID(uuid.New()); err != nil {
		t.Fatal(err)
	}

	if _, err := resolveSessionID(context.Background(), store, false); err == nil {
		t.Fatal("expected error when session validation fails")
	}
}
