// Package app assembles heron's components into a running application.
//
// Setup builds the dependency graph in order: telemetry first (it must
// precede Genkit initialization), then the database pool with migrations,
// Genkit with the Google AI plugin, the document index, the conversation
// store, the generation client and finally the pipeline and ingestion
// service. Every entry point (chat TUI, HTTP API, MCP server, ingest
// commands) starts from the same App.
package app

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heronai/heron/internal/config"
	"github.com/heronai/heron/internal/conversation"
	"github.com/heronai/heron/internal/index"
	"github.com/heronai/heron/internal/ingest"
	"github.com/heronai/heron/internal/llm"
	"github.com/heronai/heron/internal/log"
	"github.com/heronai/heron/internal/pipeline"
	"github.com/heronai/heron/internal/websearch"
)

// App is the assembled application.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	Pool     *pgxpool.Pool

	Index         *index.Store
	Conversations *conversation.Store
	LLM           *llm.Client
	Pipeline      *pipeline.Pipeline
	Ingest        *ingest.Service

	// Web is nil when no search API key is configured; the pipeline then
	// answers from local material only.
	Web *websearch.Client

	// cleanups run in reverse order on Close.
	cleanups []func()
}

// Close releases resources in reverse construction order. Safe to call
// after a failed Setup; only components that came up are released.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down")
	}
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
	a.cleanups = nil
	return nil
}
