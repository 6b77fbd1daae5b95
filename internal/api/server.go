package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heronai/heron/internal/conversation"
	"github.com/heronai/heron/internal/pipeline"
)

// QueryRunner runs one question through the answer pipeline.
type QueryRunner interface {
	Run(ctx context.Context, req pipeline.Request) pipeline.Result
}

// SessionStore is the slice of conversation persistence the API consumes.
type SessionStore interface {
	CreateSession(ctx context.Context, title string) (*conversation.Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (*conversation.Session, error)
	ListSessions(ctx context.Context, limit, offset int) ([]conversation.Session, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error
	AddExchange(ctx context.Context, sessionID uuid.UUID, userMsg, assistantMsg string) error
	RecentExchanges(ctx context.Context, sessionID uuid.UUID, n int) ([]conversation.Exchange, error)
	Messages(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]conversation.Message, error)
}

// Ingestor feeds raw documents into the index.
type Ingestor interface {
	Text(ctx context.Context, content, title, source, sessionID string) (int, error)
}

// DocumentStore is the slice of the document index the API manages.
type DocumentStore interface {
	DeleteSource(ctx context.Context, source string) (int, error)
}

// Config contains configuration for creating the API server.
type Config struct {
	Logger   *slog.Logger
	Runner   QueryRunner  // Required
	Sessions SessionStore // Required

	Ingestor  Ingestor      // Optional: nil disables document upload
	Documents DocumentStore // Optional: nil disables document deletion
	Pool      *pgxpool.Pool // Optional: nil disables pool stats in /ready

	CORSOrigins []string // Allowed origins for CORS
	TrustProxy  bool     // Trust X-Real-IP/X-Forwarded-For (behind reverse proxy)
	RateBurst   int      // Rate limiter burst size per IP (0 = default 60)
	// HistoryWindow is the number of recent exchanges loaded as chat
	// context (0 = conversation default).
	HistoryWindow int
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates an API server with all routes configured.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Runner == nil {
		return nil, errors.New("query runner is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ch := &chatHandler{
		runner:   cfg.Runner,
		sessions: cfg.Sessions,
		window:   cfg.HistoryWindow,
		logger:   logger,
	}
	sh := &sessionHandler{store: cfg.Sessions, logger: logger}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/chat", ch.send)

	mux.HandleFunc("POST /api/v1/sessions", sh.create)
	mux.HandleFunc("GET /api/v1/sessions", sh.list)
	mux.HandleFunc("GET /api/v1/sessions/{id}", sh.get)
	mux.HandleFunc("GET /api/v1/sessions/{id}/messages", sh.messages)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", sh.delete)

	// Document routes register only when the backing components exist.
	if cfg.Ingestor != nil || cfg.Documents != nil {
		dh := &documentHandler{ingestor: cfg.Ingestor, store: cfg.Documents, logger: logger}
		if cfg.Ingestor != nil {
			mux.HandleFunc("POST /api/v1/documents", dh.upload)
		}
		if cfg.Documents != nil {
			mux.HandleFunc("DELETE /api/v1/documents", dh.deleteSource)
		}
	}

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Middleware stack, outermost first:
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID precedes Logging so request_id lands in log attributes;
	// CORS precedes RateLimit so preflight OPTIONS carries CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w)
		handler.ServeHTTP(w, r)
	})

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health(logger))
	topMux.HandleFunc("GET /ready", readiness(cfg.Pool, logger))
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
