package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/heronai/heron/internal/index"
	"github.com/heronai/heron/internal/pipeline"
)

// connectServer builds a heron MCP server from cfg and an SDK client
// wired to it over in-memory transports. Both sessions close via
// t.Cleanup.
func connectServer(t *testing.T, cfg Config) *mcp.ClientSession {
	t.Helper()

	server, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	ctx := context.Background()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	serverSession, err := server.srv.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server Connect() error = %v", err)
	}
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)

	clientSession, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client Connect() error = %v", err)
	}
	t.Cleanup(func() { _ = clientSession.Close() })

	return clientSession
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("tool result has no content")
	}
	tc, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("content[0] type = %T, want *mcp.TextContent", res.Content[0])
	}
	return tc.Text
}

func TestProtocol_ListTools(t *testing.T) {
	session := connectServer(t, validConfig())

	result, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools() error = %v", err)
	}

	var names []string
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
		if tool.Description == "" {
			t.Errorf("tool %q has empty description", tool.Name)
		}
	}
	sort.Strings(names)

	want := []string{"ask", "search_documents"}
	if len(names) != len(want) {
		t.Fatalf("ListTools() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("tool[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestProtocol_Ask(t *testing.T) {
	runner := &stubRunner{res: pipeline.Result{
		FinalAnswer:         "Employees accrue 25 vacation days.",
		Status:              pipeline.StatusSuccess,
		QueryType:           pipeline.QueryRetrieval,
		SamplingTemperature: 0.2,
		RetrievedEvidence:   2,
	}}
	cfg := validConfig()
	cfg.Runner = runner
	session := connectServer(t, cfg)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name: "ask",
		Arguments: map[string]any{
			"question":   "How many vacation days do I get?",
			"session_id": "3e7c2f9a-4f7e-49a5-9d93-0f2f8a40f001",
		},
	})
	if err != nil {
		t.Fatalf("CallTool(ask) error = %v", err)
	}
	if result.IsError {
		t.Fatalf("CallTool(ask) IsError = true, content: %s", textOf(t, result))
	}

	var parsed askResult
	if err := json.Unmarshal([]byte(textOf(t, result)), &parsed); err != nil {
		t.Fatalf("parsing ask payload: %v", err)
	}
	if parsed.Answer != "Employees accrue 25 vacation days." {
		t.Errorf("answer = %q", parsed.Answer)
	}
	if parsed.QueryType != string(pipeline.QueryRetrieval) {
		t.Errorf("query_type = %q, want %q", parsed.QueryType, pipeline.QueryRetrieval)
	}
	if parsed.RetrievedEvidenceCount != 2 {
		t.Errorf("retrieved_evidence_count = %d, want 2", parsed.RetrievedEvidenceCount)
	}

	if runner.last.UserQuery != "How many vacation days do I get?" {
		t.Errorf("pipeline UserQuery = %q", runner.last.UserQuery)
	}
	if runner.last.SessionScope != "3e7c2f9a-4f7e-49a5-9d93-0f2f8a40f001" {
		t.Errorf("pipeline SessionScope = %q", runner.last.SessionScope)
	}
}

func TestProtocol_AskBlankQuestion(t *testing.T) {
	session := connectServer(t, validConfig())

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "ask",
		Arguments: map[string]any{"question": "   "},
	})
	if err != nil {
		t.Fatalf("CallTool(ask) error = %v", err)
	}
	if !result.IsError {
		t.Fatal("blank question accepted, want IsError")
	}
	if got := textOf(t, result); !strings.Contains(got, "question is required") {
		t.Errorf("error text = %q", got)
	}
}

func TestProtocol_AskDegradedRun(t *testing.T) {
	cfg := validConfig()
	cfg.Runner = &stubRunner{res: pipeline.Result{
		FinalAnswer: "I could not produce an answer.",
		Status:      pipeline.StatusError,
		Diagnostic:  "generation failed: quota exhausted",
	}}
	session := connectServer(t, cfg)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "ask",
		Arguments: map[string]any{"question": "anything"},
	})
	if err != nil {
		t.Fatalf("CallTool(ask) error = %v", err)
	}
	if !result.IsError {
		t.Error("degraded run not flagged with IsError")
	}

	// The payload stays parseable so clients can still read the answer.
	var parsed askResult
	if err := json.Unmarshal([]byte(textOf(t, result)), &parsed); err != nil {
		t.Fatalf("parsing degraded payload: %v", err)
	}
	if parsed.Status != string(pipeline.StatusError) {
		t.Errorf("status = %q, want %q", parsed.Status, pipeline.StatusError)
	}
}

func TestProtocol_SearchDocuments(t *testing.T) {
	searcher := &stubSearcher{docs: []index.Document{
		{Title: "Handbook, page 4", Source: "handbook.txt", Content: "Vacation policy text.", Score: 0.91},
		{Title: "Handbook, page 7", Source: "handbook.txt", Content: "Sick leave policy text.", Score: 0.84},
	}}
	cfg := validConfig()
	cfg.Searcher = searcher
	session := connectServer(t, cfg)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name: "search_documents",
		Arguments: map[string]any{
			"query": "vacation policy",
			"top_k": 2,
		},
	})
	if err != nil {
		t.Fatalf("CallTool(search_documents) error = %v", err)
	}
	if result.IsError {
		t.Fatalf("IsError = true, content: %s", textOf(t, result))
	}

	var parsed searchResult
	if err := json.Unmarshal([]byte(textOf(t, result)), &parsed); err != nil {
		t.Fatalf("parsing search payload: %v", err)
	}
	if parsed.Query != "vacation policy" {
		t.Errorf("query = %q", parsed.Query)
	}
	if parsed.ResultCount != 2 || len(parsed.Results) != 2 {
		t.Fatalf("result_count = %d, results = %d, want 2 each", parsed.ResultCount, len(parsed.Results))
	}
	if parsed.Results[0].Title != "Handbook, page 4" || parsed.Results[0].Score != 0.91 {
		t.Errorf("first hit = %+v", parsed.Results[0])
	}

	if searcher.lastTopK != 2 {
		t.Errorf("topK passed = %d, want 2", searcher.lastTopK)
	}
}

func TestProtocol_SearchBlankQuery(t *testing.T) {
	session := connectServer(t, validConfig())

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "search_documents",
		Arguments: map[string]any{"query": ""},
	})
	if err != nil {
		t.Fatalf("CallTool(search_documents) error = %v", err)
	}
	if !result.IsError {
		t.Fatal("blank query accepted, want IsError")
	}
}

func TestProtocol_SearchIndexOutage(t *testing.T) {
	cfg := validConfig()
	cfg.Searcher = &stubSearcher{err: errors.New("connection refused")}
	session := connectServer(t, cfg)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "search_documents",
		Arguments: map[string]any{"query": "anything"},
	})
	// Infrastructure failures surface through the protocol layer, either
	// as a JSON-RPC error or an error-flagged result depending on SDK
	// version; both must carry the cause.
	if err == nil && (result == nil || !result.IsError) {
		t.Fatal("index outage produced a success result")
	}
}

func TestProtocol_UnknownTool(t *testing.T) {
	session := connectServer(t, validConfig())

	_, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name: "no_such_tool",
	})
	if err == nil {
		t.Fatal("CallTool(no_such_tool) succeeded, want error")
	}
	if !strings.Contains(err.Error(), "no_such_tool") {
		t.Errorf("error = %q, want to name the tool", err)
	}
}
