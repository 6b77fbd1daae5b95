package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/heronai/heron/internal/index"
	"github.com/heronai/heron/internal/pipeline"
)

// QueryRunner runs one question through the answer pipeline.
type QueryRunner interface {
	Run(ctx context.Context, req pipeline.Request) pipeline.Result
}

// DocumentSearcher performs a raw semantic lookup against the document
// index. Satisfied by *index.Store.
type DocumentSearcher interface {
	Search(ctx context.Context, query string, topK int, scope string) ([]index.Document, error)
}

// Config holds MCP server configuration.
type Config struct {
	Name     string
	Version  string
	Runner   QueryRunner
	Searcher DocumentSearcher
	Logger   *slog.Logger
}

// Server wraps the MCP SDK server around heron's pipeline and index.
type Server struct {
	srv      *mcp.Server
	runner   QueryRunner
	searcher DocumentSearcher
	logger   *slog.Logger
}

// NewServer creates an MCP server with both tools registered.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("server name is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("server version is required")
	}
	if cfg.Runner == nil {
		return nil, fmt.Errorf("query runner is required")
	}
	if cfg.Searcher == nil {
		return nil, fmt.Errorf("document searcher is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		srv: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		runner:   cfg.Runner,
		searcher: cfg.Searcher,
		logger:   logger,
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("registering tools: %w", err)
	}
	return s, nil
}

// Run serves MCP protocol traffic on the transport. Blocks until the
// context is canceled or the transport closes.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.srv.Run(ctx, transport)
}
