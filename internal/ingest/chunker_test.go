package ingest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// numberedWords builds "word0001 word0002 ..." so window boundaries are
// easy to assert.
func numberedWords(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("word%04d", i+1)
	}
	return strings.Join(words, " ")
}

func TestChunkerWindowing(t *testing.T) {
	c := NewChunker(10, 3)
	pieces := c.Chunk(numberedWords(25))

	// Stride 7 over 25 words: windows at 0, 7, 14 survive; the 4-word tail
	// window at 21 is under the size floor.
	if len(pieces) != 3 {
		t.Fatalf("Chunk() produced %d pieces, want 3", len(pieces))
	}
	for i, p := range pieces {
		if p.Index != i {
			t.Errorf("pieces[%d].Index = %d, want %d", i, p.Index, i)
		}
		if p.WordCount != 10 {
			t.Errorf("pieces[%d].WordCount = %d, want 10", i, p.WordCount)
		}
	}
	if !strings.HasPrefix(pieces[1].Content, "word0008") {
		t.Errorf("second window starts with %q, want overlap from word0008", pieces[1].Content[:8])
	}
	if !strings.HasSuffix(pieces[0].Content, "word0010") {
		t.Errorf("first window ends with %q, want word0010", pieces[0].Content)
	}
}

func TestChunkerDropsShortFragments(t *testing.T) {
	c := NewChunker(DefaultChunkSize, DefaultChunkOverlap)

	if got := c.Chunk("too short"); len(got) != 0 {
		t.Errorf("Chunk(short) = %d pieces, want 0", len(got))
	}

	long := strings.Repeat("substantial content here ", 4)
	got := c.Chunk(long)
	if len(got) != 1 {
		t.Fatalf("Chunk(long) = %d pieces, want 1", len(got))
	}
	if got[0].Page != 0 {
		t.Errorf("Page = %d, want 0 for unannotated text", got[0].Page)
	}
}

func TestChunkerPageMarkers(t *testing.T) {
	text := "[Page 3] " + numberedWords(20) + " [Page 4] trailing material on the next page"

	c := NewChunker(100, 0)
	pieces := c.Chunk(text)
	if len(pieces) != 1 {
		t.Fatalf("Chunk() produced %d pieces, want 1", len(pieces))
	}

	p := pieces[0]
	if p.Page != 3 {
		t.Errorf("Page = %d, want 3 (first marker in window)", p.Page)
	}
	if strings.Contains(p.Content, "[Page") {
		t.Errorf("markers not stripped from content: %q", p.Content)
	}
	if strings.Contains(p.Content, "  ") {
		t.Errorf("marker removal left doubled spaces: %q", p.Content)
	}
	if !strings.HasPrefix(p.Content, "word0001") {
		t.Errorf("content starts with %q, want word0001", p.Content)
	}
}

func TestChunkerDeterministic(t *testing.T) {
	text := "[Page 1] " + numberedWords(500)
	c := NewChunker(100, 20)

	first := c.Chunk(text)
	second := c.Chunk(text)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Chunk() not deterministic (-first +second):\n%s", diff)
	}
	if len(first) == 0 {
		t.Fatal("Chunk() produced no pieces")
	}
}

func TestChunkerEmptyInput(t *testing.T) {
	c := NewChunker(10, 3)
	if got := c.Chunk(""); got != nil {
		t.Errorf("Chunk(\"\") = %v, want nil", got)
	}
	if got := c.Chunk("   \n\t  "); got != nil {
		t.Errorf("Chunk(whitespace) = %v, want nil", got)
	}
}

func TestNewChunkerGuards(t *testing.T) {
	// Overlap at or above the window size would stall the stride.
	c := NewChunker(10, 10)
	pieces := c.Chunk(numberedWords(30))
	if len(pieces) == 0 {
		t.Fatal("Chunk() with clamped overlap produced no pieces")
	}

	// Non-positive size falls back to the default window.
	c = NewChunker(0, -5)
	got := c.Chunk(numberedWords(60))
	if len(got) != 1 {
		t.Fatalf("Chunk() = %d pieces, want 1 window covering all words", len(got))
	}
	if got[0].WordCount != 60 {
		t.Errorf("WordCount = %d, want 60", got[0].WordCount)
	}
}
