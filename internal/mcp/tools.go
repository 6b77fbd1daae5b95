package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/heronai/heron/internal/pipeline"
)

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question  string `json:"question" jsonschema:"The question to answer using the indexed corpus"`
	SessionID string `json:"session_id,omitempty" jsonschema:"Optional session UUID scoping retrieval to that session's uploads"`
}

// askResult is the JSON payload returned by ask.
type askResult struct {
	Answer                 string `json:"answer"`
	Status                 string `json:"status"`
	QueryType              string `json:"query_type"`
	RetrievedEvidenceCount int    `json:"retrieved_evidence_count"`
	WebSearchUsed          bool   `json:"web_search_used"`
	AnsweredFromMemory     bool   `json:"answered_from_memory"`
}

// SearchInput is the input schema for the search_documents tool.
type SearchInput struct {
	Query     string `json:"query" jsonschema:"The semantic search query"`
	TopK      int    `json:"top_k,omitempty" jsonschema:"Number of results to return, defaults to 5"`
	SessionID string `json:"session_id,omitempty" jsonschema:"Optional session UUID scoping the search to that session's uploads"`
}

type searchHit struct {
	Title   string  `json:"title"`
	Source  string  `json:"source"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

type searchResult struct {
	Query       string      `json:"query"`
	ResultCount int         `json:"result_count"`
	Results     []searchHit `json:"results"`
}

func (s *Server) registerTools() error {
	askSchema, err := jsonschema.For[AskInput](nil)
	if err != nil {
		return fmt.Errorf("schema for ask: %w", err)
	}
	mcp.AddTool(s.srv, &mcp.Tool{
		Name: "ask",
		Description: "Answer a question using the indexed document corpus. " +
			"Runs retrieval, optional web search fallback and generation; returns the answer with run metadata.",
		InputSchema: askSchema,
	}, s.ask)

	searchSchema, err := jsonschema.For[SearchInput](nil)
	if err != nil {
		return fmt.Errorf("schema for search_documents: %w", err)
	}
	mcp.AddTool(s.srv, &mcp.Tool{
		Name: "search_documents",
		Description: "Search the indexed documents by semantic similarity. " +
			"Returns matching chunks with titles, sources and scores, without generating an answer.",
		InputSchema: searchSchema,
	}, s.search)

	return nil
}

// ask handles the ask tool call.
func (s *Server) ask(ctx context.Context, _ *mcp.CallToolRequest, in AskInput) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(in.Question) == "" {
		return errorResult("question is required"), nil, nil
	}

	res := s.runner.Run(ctx, pipeline.Request{
		UserQuery:    in.Question,
		SessionScope: in.SessionID,
	})
	if res.Diagnostic != "" {
		s.logger.Warn("degraded pipeline run", "diagnostic", res.Diagnostic)
	}

	out, err := textResult(askResult{
		Answer:                 res.FinalAnswer,
		Status:                 string(res.Status),
		QueryType:              string(res.QueryType),
		RetrievedEvidenceCount: res.RetrievedEvidence,
		WebSearchUsed:          res.WebSearchUsed,
		AnsweredFromMemory:     res.AnsweredFromMemory,
	})
	if err != nil {
		return nil, nil, err
	}
	// A degraded run is still a readable result; IsError lets the
	// calling model notice without parsing the payload.
	out.IsError = res.Status == pipeline.StatusError
	return out, nil, nil
}

// search handles the search_documents tool call.
func (s *Server) search(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(in.Query) == "" {
		return errorResult("query is required"), nil, nil
	}

	docs, err := s.searcher.Search(ctx, in.Query, in.TopK, in.SessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("searching documents: %w", err)
	}

	hits := make([]searchHit, 0, len(docs))
	for _, d := range docs {
		hits = append(hits, searchHit{
			Title:   d.Title,
			Source:  d.Source,
			Content: d.Content,
			Score:   d.Score,
		})
	}

	out, err := textResult(searchResult{
		Query:       in.Query,
		ResultCount: len(hits),
		Results:     hits,
	})
	if err != nil {
		return nil, nil, err
	}
	return out, nil, nil
}

// textResult marshals v into a single text content block.
func textResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling tool result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(b)}},
	}, nil
}

// errorResult builds a client-visible tool error. Reserved for input
// problems the calling model can correct; infrastructure failures are
// returned as protocol errors instead.
func errorResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}
