//go:build integration
// +build integration

package index

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/firebase/genkit/go/genkit"

	"github.com/heronai/heron/internal/testutil"
)

var sharedDB *testutil.TestDBContainer

func TestMain(m *testing.M) {
	var cleanup func()
	var err error
	sharedDB, cleanup, err = testutil.SetupTestDBForMain()
	if err != nil {
		log.Fatalf("starting test database: %v", err)
	}
	code := m.Run()
	cleanup()
	os.Exit(code)
}

// setupStore creates a Store backed by the shared container and a
// deterministic mock embedder. Tables are truncated for isolation.
func setupStore(t *testing.T) *Store {
	t.Helper()

	testutil.CleanTables(t, sharedDB.Pool)

	g := genkit.Init(context.Background())
	embedder := testutil.NewMockEmbedder(DefaultDimensions).RegisterEmbedder(g)

	store, err := NewStore(sharedDB.Pool, embedder, testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("NewStore() unexpected error: %v", err)
	}
	return store
}

func TestStore_IndexAndSearch(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	chunks := []Chunk{
		{Source: "handbook.md", Title: "Handbook", Content: "Refunds are accepted within 30 days of purchase."},
		{Source: "handbook.md", Title: "Handbook", Content: "Support is available on weekdays from 9 to 5."},
		{Source: "faq.md", Title: "FAQ", Content: "Shipping takes between three and five business days."},
	}

	n, err := store.Index(ctx, chunks)
	if err != nil {
		t.Fatalf("Index() unexpected error: %v", err)
	}
	if n != 3 {
		t.Fatalf("Index() inserted = %d, want 3", n)
	}

	// Searching with the exact chunk text embeds to the identical vector,
	// so that chunk must come back first with similarity ~1.
	results, err := store.Search(ctx, "Refunds are accepted within 30 days of purchase.", 3, "")
	if err != nil {
		t.Fatalf("Search() unexpected error: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("Search() returned 0 results, want >= 1")
	}
	if results[0].Content != chunks[0].Content {
		t.Errorf("Search() top content = %q, want %q", results[0].Content, chunks[0].Content)
	}
	if results[0].Score < 0.99 {
		t.Errorf("Search() top score = %v, want ~1.0", results[0].Score)
	}
	if results[0].Title != "Handbook" {
		t.Errorf("Search() top title = %q, want Handbook", results[0].Title)
	}

	// Scores are clamped and ordered descending.
	for i, d := range results {
		if d.Score < 0 || d.Score > 1 {
			t.Errorf("Search() result[%d].Score = %v, want within [0,1]", i, d.Score)
		}
		if i > 0 && d.Score > results[i-1].Score {
			t.Errorf("Search() results not sorted: [%d]=%v > [%d]=%v", i, d.Score, i-1, results[i-1].Score)
		}
	}
}

func TestStore_IndexIdempotent(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	chunks := []Chunk{
		{Source: "policy.md", Title: "Policy", Content: "Returns need a receipt."},
		{Source: "policy.md", Title: "Policy", Content: "Exchanges are free of charge."},
	}

	first, err := store.Index(ctx, chunks)
	if err != nil {
		t.Fatalf("Index() first pass unexpected error: %v", err)
	}
	if first != 2 {
		t.Fatalf("Index() first pass inserted = %d, want 2", first)
	}

	// Re-ingesting identical content under the same source is a no-op.
	second, err := store.Index(ctx, chunks)
	if err != nil {
		t.Fatalf("Index() second pass unexpected error: %v", err)
	}
	if second != 0 {
		t.Errorf("Index() second pass inserted = %d, want 0", second)
	}

	count, err := store.Count(ctx, "policy.md")
	if err != nil {
		t.Fatalf("Count() unexpected error: %v", err)
	}
	if count != 2 {
		t.Errorf("Count(policy.md) = %d, want 2", count)
	}

	// The same content under a different source is a distinct row.
	n, err := store.Index(ctx, []Chunk{
		{Source: "mirror.md", Title: "Mirror", Content: "Returns need a receipt."},
	})
	if err != nil {
		t.Fatalf("Index(other source) unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("Index(other source) inserted = %d, want 1", n)
	}
}

func TestStore_IndexSkipsBlankChunks(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	n, err := store.Index(ctx, []Chunk{
		{Source: "empty.md", Content: ""},
		{Source: "empty.md", Content: "   \n\t"},
	})
	if err != nil {
		t.Fatalf("Index(blank chunks) unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("Index(blank chunks) inserted = %d, want 0", n)
	}
}

func TestStore_SearchScope(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	_, err := store.Index(ctx, []Chunk{
		{Source: "upload-a.txt", Title: "A", Content: "Session A private notes about pricing.", SessionID: "sess-a"},
		{Source: "upload-b.txt", Title: "B", Content: "Session B private notes about hiring.", SessionID: "sess-b"},
		{Source: "corpus.md", Title: "Corpus", Content: "Company-wide refund policy overview."},
	})
	if err != nil {
		t.Fatalf("Index() unexpected error: %v", err)
	}

	contents := func(docs []Document) map[string]bool {
		m := make(map[string]bool, len(docs))
		for _, d := range docs {
			m[d.Content] = true
		}
		return m
	}

	// Scoped search sees the session's uploads and corpus-wide rows only.
	scoped, err := store.Search(ctx, "notes about pricing", 10, "sess-a")
	if err != nil {
		t.Fatalf("Search(scoped) unexpected error: %v", err)
	}
	got := contents(scoped)
	if !got["Session A private notes about pricing."] {
		t.Error("scoped search missing the session's own upload")
	}
	if !got["Company-wide refund policy overview."] {
		t.Error("scoped search missing corpus-wide document")
	}
	if got["Session B private notes about hiring."] {
		t.Error("scoped search leaked another session's upload")
	}

	// Unscoped search sees everything.
	all, err := store.Search(ctx, "notes", 10, "")
	if err != nil {
		t.Fatalf("Search(unscoped) unexpected error: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Search(unscoped) len = %d, want 3", len(all))
	}
}

func TestStore_SearchGuards(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	// Empty query returns empty slice without embedding.
	results, err := store.Search(ctx, "", 5, "")
	if err != nil {
		t.Fatalf("Search(empty query) unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Search(empty query) len = %d, want 0", len(results))
	}

	// NUL bytes cannot reach PostgreSQL text params.
	results, err = store.Search(ctx, "query\x00injection", 5, "")
	if err != nil {
		t.Fatalf("Search(nul byte) unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Search(nul byte) len = %d, want 0", len(results))
	}

	// Oversized k is clamped, not an error.
	if _, err := store.Search(ctx, "anything", MaxTopK*10, ""); err != nil {
		t.Fatalf("Search(huge k) unexpected error: %v", err)
	}
}

func TestStore_DeleteSource(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	_, err := store.Index(ctx, []Chunk{
		{Source: "keep.md", Content: "This source stays."},
		{Source: "drop.md", Content: "This source goes, part one."},
		{Source: "drop.md", Content: "This source goes, part two."},
	})
	if err != nil {
		t.Fatalf("Index() unexpected error: %v", err)
	}

	deleted, err := store.DeleteSource(ctx, "drop.md")
	if err != nil {
		t.Fatalf("DeleteSource() unexpected error: %v", err)
	}
	if deleted != 2 {
		t.Errorf("DeleteSource() = %d, want 2", deleted)
	}

	total, err := store.Count(ctx, "")
	if err != nil {
		t.Fatalf("Count() unexpected error: %v", err)
	}
	if total != 1 {
		t.Errorf("Count() after delete = %d, want 1", total)
	}

	if _, err := store.DeleteSource(ctx, ""); err == nil {
		t.Error("DeleteSource(\"\") expected error, got nil")
	}
}
