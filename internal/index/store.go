// Package index stores document chunks with vector embeddings in
// PostgreSQL and serves nearest-neighbor retrieval for the pipeline.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/genai"
)

const (
	// DefaultDimensions matches the vector(768) column in the documents
	// migration. Changing one requires changing the other.
	DefaultDimensions = 768

	// EmbedTimeout bounds a single embedding call.
	EmbedTimeout = 30 * time.Second

	// DefaultTopK is the nearest-neighbor count when the caller passes none.
	DefaultTopK = 5

	// MaxTopK caps a single search.
	MaxTopK = 50

	// MaxQueryLen truncates oversized search queries before embedding.
	MaxQueryLen = 8192
)

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// insertDocumentSQL deduplicates on (source, md5(content)) so re-ingesting
// the same material is idempotent.
const insertDocumentSQL = `INSERT INTO documents (source, title, content, session_id, embedding)
	VALUES ($1, $2, $3, NULLIF($4, ''), $5)
	ON CONFLICT (source, md5(content)) DO NOTHING`

// Chunk is one ingestable piece of a source document. SessionID is empty
// for corpus-wide material.
type Chunk struct {
	Source    string
	Title     string
	Content   string
	SessionID string
}

// Document is a retrieved chunk with its cosine similarity to the query.
type Document struct {
	ID        uuid.UUID
	Source    string
	Title     string
	Content   string
	SessionID string
	Score     float64
	CreatedAt time.Time
}

// Store manages the document index backed by PostgreSQL + pgvector.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool     *pgxpool.Pool
	embedder ai.Embedder
	logger   *slog.Logger
	dims     int32
}

// Option customizes a Store.
type Option func(*Store)

// WithDimensions overrides the embedding dimensionality requested from the
// embedder. It must match the dimension of the embedding column.
func WithDimensions(dims int) Option {
	return func(s *Store) {
		if dims > 0 {
			s.dims = int32(dims)
		}
	}
}

// NewStore creates a document index Store.
func NewStore(pool *pgxpool.Pool, embedder ai.Embedder, logger *slog.Logger, opts ...Option) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{pool: pool, embedder: embedder, logger: logger, dims: DefaultDimensions}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// embed generates a vector embedding for the given text.
func (s *Store) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	dim := s.dims
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("embedding text: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, fmt.Errorf("empty embedding response")
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}

// Index embeds the chunks and inserts them in one transaction. Chunks whose
// content already exists under the same source are skipped by the dedup
// index. Returns the number of rows actually inserted.
//
// Embedding happens before the transaction so no connection is held across
// provider round trips.
func (s *Store) Index(ctx context.Context, chunks []Chunk) (int, error) {
	type embedded struct {
		chunk Chunk
		vec   pgvector.Vector
	}

	rows := make([]embedded, 0, len(chunks))
	for _, c := range chunks {
		if strings.TrimSpace(c.Content) == "" {
			continue
		}
		embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
		vec, err := s.embed(embedCtx, c.Content)
		cancel()
		if err != nil {
			return 0, fmt.Errorf("embedding chunk from %q: %w", c.Source, err)
		}
		rows = append(rows, embedded{chunk: c, vec: vec})
	}
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", rbErr)
		}
	}()

	var inserted int
	for _, r := range rows {
		n, execErr := insertChunk(ctx, tx, r.chunk, r.vec)
		if execErr != nil {
			return 0, fmt.Errorf("inserting chunk from %q: %w", r.chunk.Source, execErr)
		}
		inserted += n
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing document transaction: %w", err)
	}

	s.logger.Debug("indexed chunks",
		"requested", len(chunks), "embedded", len(rows), "inserted", inserted)
	return inserted, nil
}

// Search finds up to topK documents nearest to the query by cosine
// distance. A non-empty scope restricts results to that session's uploads
// plus corpus-wide documents; an empty scope searches everything.
// Scores are similarities clamped to [0, 1], descending.
func (s *Store) Search(ctx context.Context, query string, topK int, scope string) ([]Document, error) {
	if query == "" {
		return []Document{}, nil
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}
	if len(query) > MaxQueryLen {
		query = query[:MaxQueryLen]
	}
	if strings.ContainsRune(query, 0) {
		return []Document{}, nil
	}

	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()

	vec, err := s.embed(embedCtx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, source, title, content, COALESCE(session_id, ''), created_at,
		        1 - (embedding <=> $1) AS similarity
		 FROM documents
		 WHERE $2 = '' OR session_id IS NULL OR session_id = $2
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		vec, scope, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("searching documents: %w", err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

// insertChunk inserts one embedded chunk, reporting 0 rows when the dedup
// index suppressed it.
func insertChunk(ctx context.Context, q querier, c Chunk, vec pgvector.Vector) (int, error) {
	tag, err := q.Exec(ctx, insertDocumentSQL, c.Source, c.Title, c.Content, c.SessionID, vec)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// DeleteSource removes every chunk ingested under the given source.
// Returns the number of rows deleted.
func (s *Store) DeleteSource(ctx context.Context, source string) (int, error) {
	if source == "" {
		return 0, fmt.Errorf("source is required")
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE source = $1`, source)
	if err != nil {
		return 0, fmt.Errorf("deleting documents for %q: %w", source, err)
	}
	return int(tag.RowsAffected()), nil
}

// Count reports the number of indexed chunks, optionally for one source.
func (s *Store) Count(ctx context.Context, source string) (int, error) {
	var n int
	var err error
	if source == "" {
		err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	} else {
		err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents WHERE source = $1`, source).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

// scanDocuments reads Document rows with a trailing similarity column.
func scanDocuments(rows pgx.Rows) ([]Document, error) {
	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(
			&d.ID, &d.Source, &d.Title, &d.Content, &d.SessionID, &d.CreatedAt, &d.Score,
		); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		// Cosine distance ranges [0, 2], so similarity can go negative.
		d.Score = clampScore(d.Score)
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

func clampScore(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
