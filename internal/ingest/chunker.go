// Package ingest turns files, directories, URLs and crawled sites into
// document chunks and feeds them to the index.
package ingest

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	// DefaultChunkSize is the chunk window in words.
	DefaultChunkSize = 3500

	// DefaultChunkOverlap is the number of words shared between
	// consecutive windows.
	DefaultChunkOverlap = 150

	// minChunkChars drops fragments too short to be useful evidence.
	minChunkChars = 50
)

// pageMarkerRe matches page annotations of the form [Page 12] carried by
// pre-extracted documents.
var pageMarkerRe = regexp.MustCompile(`\[Page (\d+)\]`)

// Piece is one chunk of a source document.
type Piece struct {
	Content   string
	Index     int // position among kept pieces
	Page      int // 1-based page where the window begins, 0 when unknown
	WordCount int // window size in words, markers included
}

// Chunker splits text into fixed-size word windows with overlap. Splitting
// is deterministic: the same text always yields the same pieces.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a Chunker. Non-positive size falls back to
// DefaultChunkSize; the overlap is clamped so the stride stays positive.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 10
	}
	return &Chunker{size: size, overlap: overlap}
}

// Chunk splits text into overlapping word windows. A page marker tags the
// window with the page it starts on and is stripped from the emitted
// content. Windows whose remaining content is minChunkChars or shorter are
// dropped.
func (c *Chunker) Chunk(text string) []Piece {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	stride := c.size - c.overlap
	var pieces []Piece
	for i := 0; i < len(words); i += stride {
		end := min(i+c.size, len(words))
		window := strings.Join(words[i:end], " ")

		page := 0
		if m := pageMarkerRe.FindStringSubmatch(window); m != nil {
			page, _ = strconv.Atoi(m[1])
		}
		content := strings.Join(strings.Fields(pageMarkerRe.ReplaceAllString(window, " ")), " ")

		if len(content) > minChunkChars {
			pieces = append(pieces, Piece{
				Content:   content,
				Index:     len(pieces),
				Page:      page,
				WordCount: end - i,
			})
		}
	}
	return pieces
}
