package llm_test

import (
	"context"
	"testing"

	"github.com/firebase/genkit/go/genkit"

	"github.com/heronai/heron/internal/llm"
	"github.com/heronai/heron/internal/testutil"
)

func TestGenerate(t *testing.T) {
	ctx := context.Background()
	g := genkit.Init(ctx)

	mock := testutil.NewMockLLM("fallback answer")
	mock.AddResponse("capital of france", "Paris.")
	mock.RegisterModel(g)

	client := llm.NewClient(g, "mock/test-model")

	got, err := client.Generate(ctx, "What is the capital of France?", 0.2)
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	if got != "Paris." {
		t.Errorf("Generate() = %q, want %q", got, "Paris.")
	}

	got, err = client.Generate(ctx, "unmatched prompt", 0.7)
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	if got != "fallback answer" {
		t.Errorf("Generate() = %q, want fallback", got)
	}

	if calls := mock.Calls(); len(calls) != 2 {
		t.Errorf("expected 2 recorded calls, got %d", len(calls))
	}
}

func TestGenerateUnknownModel(t *testing.T) {
	ctx := context.Background()
	g := genkit.Init(ctx)

	client := llm.NewClient(g, "mock/not-registered")

	if _, err := client.Generate(ctx, "hello", 0.2); err == nil {
		t.Fatal("expected error for unregistered model, got nil")
	}
}
