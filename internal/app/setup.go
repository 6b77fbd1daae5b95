package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heronai/heron/db"
	"github.com/heronai/heron/internal/config"
	"github.com/heronai/heron/internal/conversation"
	"github.com/heronai/heron/internal/index"
	"github.com/heronai/heron/internal/ingest"
	"github.com/heronai/heron/internal/llm"
	"github.com/heronai/heron/internal/log"
	"github.com/heronai/heron/internal/observability"
	"github.com/heronai/heron/internal/pipeline"
	"github.com/heronai/heron/internal/websearch"
)

// Setup creates and initializes the application. Components come up in
// dependency order; on failure everything already initialized is released
// before the error returns.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	// Tracing registers on Genkit's TracerProvider and must precede Init.
	shutdown, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.Telemetry.Endpoint,
		Environment: cfg.Telemetry.Environment,
		ServiceName: cfg.Telemetry.ServiceName,
	})
	if err != nil {
		return nil, fmt.Errorf("setting up telemetry: %w", err)
	}
	a.cleanups = append(a.cleanups, func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	})

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Pool = pool
	a.cleanups = append(a.cleanups, pool.Close)

	g, err := provideGenkit(ctx)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}
	a.Embedder = embedder

	idx, err := index.NewStore(pool, embedder, logger,
		index.WithDimensions(cfg.EmbedderDimensions))
	if err != nil {
		return nil, fmt.Errorf("creating document index: %w", err)
	}
	a.Index = idx

	conv, err := conversation.NewStore(pool, logger)
	if err != nil {
		return nil, fmt.Errorf("creating conversation store: %w", err)
	}
	a.Conversations = conv

	a.LLM = llm.NewClient(g, qualifyModel(cfg.ModelName))

	pipeOpts := []pipeline.Option{pipeline.WithLogger(logger)}
	if cfg.WebSearch.APIKey != "" {
		web, err := provideWebSearch(cfg, logger)
		if err != nil {
			return nil, err
		}
		a.Web = web
		pipeOpts = append(pipeOpts, pipeline.WithWebSearcher(webSearcher{client: web}))
	} else {
		logger.Info("web search disabled, no api key configured")
	}

	a.Pipeline = pipeline.New(pipelineConfig(cfg), a.LLM, docSearcher{finder: idx}, pipeOpts...)

	svc, err := provideIngest(cfg, idx, logger)
	if err != nil {
		return nil, err
	}
	a.Ingest = svc

	return a, nil
}

// qualifyModel prefixes bare model names with the Google AI provider so
// config may say either "gemini-2.5-flash" or "googleai/gemini-2.5-flash".
func qualifyModel(name string) string {
	if strings.Contains(name, "/") {
		return name
	}
	return "googleai/" + name
}

// pipelineConfig maps the loaded configuration onto pipeline routing
// parameters.
func pipelineConfig(cfg *config.Config) pipeline.Config {
	p := cfg.Pipeline
	return pipeline.Config{
		CasualTemperature:    p.CasualTemperature,
		HistoryTemperature:   p.HistoryTemperature,
		RetrievalTemperature: p.RetrievalTemperature,
		RetrievalTopK:        p.RetrievalTopK,
		WebResults:           p.WebResults,
		ClassifyQueries:      p.ClassifyQueries,
		CheckHistory:         p.CheckHistory,
	}
}

// provideGenkit initializes Genkit with the Google AI plugin. The plugin
// reads GEMINI_API_KEY from the environment; config validation has already
// checked it is set.
func provideGenkit(ctx context.Context) (*genkit.Genkit, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit")
	}
	return g, nil
}

// provideDBPool runs migrations and creates a PostgreSQL connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// provideWebSearch creates the optional web search client.
func provideWebSearch(cfg *config.Config, logger log.Logger) (*websearch.Client, error) {
	ws := cfg.WebSearch
	opts := []websearch.Option{}
	if ws.BaseURL != "" {
		opts = append(opts, websearch.WithBaseURL(ws.BaseURL))
	}
	if ws.TimeoutMs > 0 {
		opts = append(opts, websearch.WithHTTPClient(&http.Client{
			Timeout: time.Duration(ws.TimeoutMs) * time.Millisecond,
		}))
	}
	client, err := websearch.New(ws.APIKey, logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating web search client: %w", err)
	}
	return client, nil
}

// provideIngest creates the ingestion service over the document index.
func provideIngest(cfg *config.Config, idx *index.Store, logger log.Logger) (*ingest.Service, error) {
	in := cfg.Ingest
	opts := []ingest.Option{
		ingest.WithChunker(ingest.NewChunker(in.ChunkSize, in.ChunkOverlap)),
	}
	if in.FetchTimeoutMs > 0 {
		opts = append(opts, ingest.WithHTTPClient(&http.Client{
			Timeout: time.Duration(in.FetchTimeoutMs) * time.Millisecond,
		}))
	}
	svc, err := ingest.NewService(idx, logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating ingest service: %w", err)
	}
	return svc, nil
}
