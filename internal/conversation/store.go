package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const sessionCols = `id, title, message_count, created_at, updated_at`

// Store manages sessions and messages backed by PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines. Concurrent
// AddExchange calls on the same session serialize on a row lock so sequence
// numbers never collide.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a conversation Store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// CreateSession starts a new conversation. A blank title falls back to
// DefaultTitle.
func (s *Store) CreateSession(ctx context.Context, title string) (*Session, error) {
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}
	sess, err := scanSessionRow(s.pool.QueryRow(ctx,
		`INSERT INTO sessions (title) VALUES ($1) RETURNING `+sessionCols,
		title,
	))
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	s.logger.Debug("created session", "id", sess.ID, "title", sess.Title)
	return sess, nil
}

// GetSession retrieves a session by ID. Returns ErrNotFound for unknown IDs.
func (s *Store) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	sess, err := scanSessionRow(s.pool.QueryRow(ctx,
		`SELECT `+sessionCols+` FROM sessions WHERE id = $1`, id,
	))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	case err != nil:
		return nil, fmt.Errorf("getting session %s: %w", id, err)
	}
	return sess, nil
}

// ListSessions pages sessions by most recent activity, newest first.
func (s *Store) ListSessions(ctx context.Context, limit, offset int) ([]Session, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+sessionCols+` FROM sessions ORDER BY updated_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.Title, &sess.MessageCount, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}

	s.logger.Debug("listed sessions", "count", len(sessions), "limit", limit, "offset", offset)
	return sessions, nil
}

// DeleteSession removes a session and all its messages (CASCADE). Returns
// ErrNotFound if the session does not exist.
func (s *Store) DeleteSession(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	s.logger.Debug("deleted session", "id", id)
	return nil
}

// AddExchange appends one user/assistant pair to a session. The session row
// is locked for the duration of the transaction so concurrent writers cannot
// race on sequence numbers.
func (s *Store) AddExchange(ctx context.Context, sessionID uuid.UUID, userMsg, assistantMsg string) error {
	if strings.TrimSpace(userMsg) == "" {
		return fmt.Errorf("user message is required")
	}
	if strings.TrimSpace(assistantMsg) == "" {
		return fmt.Errorf("assistant message is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", rbErr)
		}
	}()

	var locked uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM sessions WHERE id = $1 FOR UPDATE`, sessionID).Scan(&locked)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	case err != nil:
		return fmt.Errorf("locking session %s: %w", sessionID, err)
	}

	var maxSeq int
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM messages WHERE session_id = $1`, sessionID,
	).Scan(&maxSeq); err != nil {
		return fmt.Errorf("reading sequence for session %s: %w", sessionID, err)
	}

	if err := insertMessage(ctx, tx, sessionID, RoleUser, userMsg, maxSeq+1); err != nil {
		return err
	}
	if err := insertMessage(ctx, tx, sessionID, RoleAssistant, assistantMsg, maxSeq+2); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE sessions SET message_count = message_count + 2, updated_at = now() WHERE id = $1`,
		sessionID,
	); err != nil {
		return fmt.Errorf("updating session %s: %w", sessionID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing exchange: %w", err)
	}

	s.logger.Debug("added exchange", "session_id", sessionID, "seq", maxSeq+2)
	return nil
}

// RecentExchanges returns the last n user/assistant pairs in chronological
// order. Zero or negative n means DefaultExchangeWindow; n is capped at
// MaxExchangeWindow.
func (s *Store) RecentExchanges(ctx context.Context, sessionID uuid.UUID, n int) ([]Exchange, error) {
	if n <= 0 {
		n = DefaultExchangeWindow
	}
	if n > MaxExchangeWindow {
		n = MaxExchangeWindow
	}

	rows, err := s.pool.Query(ctx,
		`SELECT role, content FROM messages WHERE session_id = $1 ORDER BY seq DESC LIMIT $2`,
		sessionID, n*2,
	)
	if err != nil {
		return nil, fmt.Errorf("loading recent messages for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	type utterance struct {
		role    string
		content string
	}
	var recent []utterance
	for rows.Next() {
		var u utterance
		if err := rows.Scan(&u.role, &u.content); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		recent = append(recent, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}

	// Rows arrive newest first. Walk back to chronological order and pair
	// each user turn with the assistant reply that follows it. An assistant
	// row cut off from its user turn by the window is skipped.
	exchanges := make([]Exchange, 0, n)
	var pendingUser string
	havePending := false
	for i := len(recent) - 1; i >= 0; i-- {
		u := recent[i]
		switch u.role {
		case RoleUser:
			pendingUser, havePending = u.content, true
		case RoleAssistant:
			if havePending {
				exchanges = append(exchanges, Exchange{User: pendingUser, Assistant: u.content})
				havePending = false
			}
		}
	}
	return exchanges, nil
}

// Messages returns a page of a session's messages ordered by sequence.
func (s *Store) Messages(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]Message, error) {
	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	if limit > MaxMessageLimit {
		limit = MaxMessageLimit
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, role, content, seq, created_at
		 FROM messages
		 WHERE session_id = $1
		 ORDER BY seq
		 LIMIT $2 OFFSET $3`,
		sessionID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("loading messages for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.Seq, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}

	s.logger.Debug("retrieved messages", "session_id", sessionID, "count", len(msgs))
	return msgs, nil
}

func insertMessage(ctx context.Context, q querier, sessionID uuid.UUID, role, content string, seq int) error {
	if _, err := q.Exec(ctx,
		`INSERT INTO messages (session_id, role, content, seq) VALUES ($1, $2, $3, $4)`,
		sessionID, role, content, seq,
	); err != nil {
		return fmt.Errorf("inserting %s message: %w", role, err)
	}
	return nil
}

// scanSessionRow reads one session row in sessionCols order.
func scanSessionRow(row pgx.Row) (*Session, error) {
	var sess Session
	if err := row.Scan(&sess.ID, &sess.Title, &sess.MessageCount, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		return nil, err
	}
	return &sess, nil
}
