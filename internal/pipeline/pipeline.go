// Package pipeline implements the query orchestration at the heart of
// heron: classify an incoming message, gather evidence from conversation
// memory, the document index and optionally the web, then generate a
// grounded answer with source-appropriate sampling.
//
// A run walks an acyclic state machine:
//
//	Classify -> CasualGenerate
//	         -> CheckHistory -> MemoryGenerate
//	                         -> LocalRetrieve
//	         -> LocalRetrieve
//	LocalRetrieve -> Sufficiency -> WebSearch -> Combine
//	                             -> Combine
//	Combine -> Augment -> Generate
//
// Stages never propagate collaborator errors upward. Each one degrades to
// a documented safe default (retrieval fallback on classification errors,
// empty evidence on index errors, "insufficient" on judge errors) and the
// run records the first such failure as a diagnostic. Callers always get
// a well-formed Result.
package pipeline

import (
	"context"
	"strings"

	"github.com/heronai/heron/internal/log"
)

// Generator produces text for a prompt at a sampling temperature.
type Generator interface {
	Generate(ctx context.Context, prompt string, temperature float32) (string, error)
}

// Document is a scored chunk returned by the document index.
type Document struct {
	Content string
	Title   string
	Score   float64
}

// DocumentSearcher returns the k nearest document chunks for a query.
// A non-empty scope restricts results to one session's material.
type DocumentSearcher interface {
	SearchDocuments(ctx context.Context, query string, k int, scope string) ([]Document, error)
}

// WebResult is a single web search hit.
type WebResult struct {
	Content string
	Title   string
	URL     string
}

// WebSearcher returns ranked web snippets for a query. This collaborator
// is optional; a pipeline without one degrades to local-only answers.
type WebSearcher interface {
	SearchWeb(ctx context.Context, query string, maxResults int) ([]WebResult, error)
}

// Default routing parameters. Casual chat samples loosely; history and
// retrieval answers stay close to the provided material.
const (
	DefaultCasualTemperature    float32 = 0.7
	DefaultHistoryTemperature   float32 = 0.3
	DefaultRetrievalTemperature float32 = 0.2
	DefaultRetrievalTopK                = 5
	DefaultWebResults                   = 3
)

// webEvidenceScore is assigned to every web snippet. Web results arrive
// ranked but unscored; a fixed high value keeps them distinguishable from
// cosine-similarity scores on local evidence.
const webEvidenceScore = 0.9

// Config holds the routing parameters of a Pipeline. The zero value is
// not usable; start from DefaultConfig.
type Config struct {
	CasualTemperature    float32
	HistoryTemperature   float32
	RetrievalTemperature float32

	// RetrievalTopK is the number of document chunks requested per query.
	RetrievalTopK int
	// WebResults is the number of web snippets requested on fallback.
	WebResults int

	// ClassifyQueries toggles LLM classification. When false every query
	// takes the retrieval path.
	ClassifyQueries bool
	// CheckHistory toggles the answered-from-history shortcut for
	// history questions.
	CheckHistory bool
}

// DefaultConfig returns the standard routing parameters.
func DefaultConfig() Config {
	return Config{
		CasualTemperature:    DefaultCasualTemperature,
		HistoryTemperature:   DefaultHistoryTemperature,
		RetrievalTemperature: DefaultRetrievalTemperature,
		RetrievalTopK:        DefaultRetrievalTopK,
		WebResults:           DefaultWebResults,
		ClassifyQueries:      true,
		CheckHistory:         true,
	}
}

// normalize fills unset numeric fields so a partially populated Config
// cannot produce a pipeline that retrieves nothing.
func (c Config) normalize() Config {
	d := DefaultConfig()
	if c.CasualTemperature <= 0 {
		c.CasualTemperature = d.CasualTemperature
	}
	if c.HistoryTemperature <= 0 {
		c.HistoryTemperature = d.HistoryTemperature
	}
	if c.RetrievalTemperature <= 0 {
		c.RetrievalTemperature = d.RetrievalTemperature
	}
	if c.RetrievalTopK <= 0 {
		c.RetrievalTopK = d.RetrievalTopK
	}
	if c.WebResults <= 0 {
		c.WebResults = d.WebResults
	}
	return c
}

// Pipeline orchestrates one query through classification, evidence
// gathering and generation. Safe for concurrent use; every Run carries
// its own state.
type Pipeline struct {
	cfg    Config
	gen    Generator
	docs   DocumentSearcher
	web    WebSearcher
	logger log.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithWebSearcher enables the web search fallback. Only call this with a
// configured client; a nil-valued typed searcher would count as present.
func WithWebSearcher(w WebSearcher) Option {
	return func(p *Pipeline) { p.web = w }
}

// WithLogger overrides the no-op default logger.
func WithLogger(logger log.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a Pipeline over the given collaborators.
func New(cfg Config, gen Generator, docs DocumentSearcher, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:    cfg.normalize(),
		gen:    gen,
		docs:   docs,
		logger: log.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// stage identifies one node of the run's state machine.
type stage int

const (
	stageClassify stage = iota
	stageCasualGenerate
	stageCheckHistory
	stageMemoryGenerate
	stageLocalRetrieve
	stageSufficiency
	stageWebSearch
	stageCombine
	stageAugment
	stageGenerate
	stageDone
)

func (st stage) String() string {
	switch st {
	case stageClassify:
		return "classify"
	case stageCasualGenerate:
		return "casual_generate"
	case stageCheckHistory:
		return "check_history"
	case stageMemoryGenerate:
		return "memory_generate"
	case stageLocalRetrieve:
		return "local_retrieve"
	case stageSufficiency:
		return "sufficiency"
	case stageWebSearch:
		return "web_search"
	case stageCombine:
		return "combine"
	case stageAugment:
		return "augment"
	case stageGenerate:
		return "generate"
	default:
		return "done"
	}
}

// maxSteps bounds the driver loop. The graph is acyclic so a run can
// never take this many transitions; the bound turns a future wiring bug
// into a truncated run instead of a spin.
const maxSteps = 16

// Run executes one query through the pipeline and always returns a
// well-formed Result.
func (p *Pipeline) Run(ctx context.Context, req Request) Result {
	s := newState(req)

	if strings.TrimSpace(req.UserQuery) == "" {
		s.status = StatusError
		s.finalAnswer = "Sorry, I need a non-empty question to answer."
		s.queryType = QueryRetrieval
		s.temperature = p.cfg.RetrievalTemperature
		return s.result()
	}

	st := stageClassify
	for steps := 0; st != stageDone && steps < maxSteps; steps++ {
		p.logger.DebugContext(ctx, "pipeline stage", "stage", st.String())
		p.exec(ctx, st, s)
		st = p.next(st, s)
	}

	if s.failure != nil {
		p.logger.WarnContext(ctx, "pipeline degraded",
			"query_type", string(s.queryType),
			"status", string(s.status),
			"diagnostic", s.failure.Error())
	}
	return s.result()
}

// exec dispatches one stage against the state.
func (p *Pipeline) exec(ctx context.Context, st stage, s *state) {
	switch st {
	case stageClassify:
		p.classify(ctx, s)
	case stageCheckHistory:
		p.checkHistory(ctx, s)
	case stageLocalRetrieve:
		p.retrieveLocal(ctx, s)
	case stageSufficiency:
		p.judgeSufficiency(ctx, s)
	case stageWebSearch:
		p.searchWeb(ctx, s)
	case stageCombine:
		p.combine(s)
	case stageAugment:
		p.augment(s)
	case stageCasualGenerate:
		p.generateCasual(ctx, s)
	case stageMemoryGenerate:
		p.generateMemory(ctx, s)
	case stageGenerate:
		p.generateAnswer(ctx, s)
	}
}

// next applies the transition rules. Generation stages are terminal.
func (p *Pipeline) next(st stage, s *state) stage {
	switch st {
	case stageClassify:
		switch {
		case s.queryType == QueryCasual:
			return stageCasualGenerate
		case s.queryType == QueryHistory && p.cfg.CheckHistory:
			return stageCheckHistory
		default:
			return stageLocalRetrieve
		}
	case stageCheckHistory:
		if s.answeredFromMem {
			return stageMemoryGenerate
		}
		return stageLocalRetrieve
	case stageLocalRetrieve:
		return stageSufficiency
	case stageSufficiency:
		if !s.sufficient && p.web != nil {
			return stageWebSearch
		}
		return stageCombine
	case stageWebSearch:
		return stageCombine
	case stageCombine:
		return stageAugment
	case stageAugment:
		return stageGenerate
	default:
		return stageDone
	}
}
