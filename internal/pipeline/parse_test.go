package pipeline

import (
	"strings"
	"testing"
)

func TestParseQueryType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want QueryType
	}{
		{"exact casual", "casual", QueryCasual},
		{"casual with punctuation", "Casual.", QueryCasual},
		{"casual uppercase", "CASUAL", QueryCasual},
		{"casual in sentence", "This looks like a casual greeting to me", QueryCasual},
		{"exact history", "history_question", QueryHistory},
		{"history in sentence", "Category: history_question", QueryHistory},
		{"exact retrieval", "retrieval_question", QueryRetrieval},
		{"empty reply", "", QueryRetrieval},
		{"whitespace reply", "   \n", QueryRetrieval},
		{"unrecognized reply", "bananas", QueryRetrieval},
		{"history without underscore", "history question", QueryRetrieval},
		// "casual" wins when the model hedges and names both.
		{"ambiguous reply", "either casual or history_question", QueryCasual},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := parseQueryType(tt.raw); got != tt.want {
				t.Errorf("parseQueryType(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseHistoryReply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		raw        string
		wantAnswer string
		wantOK     bool
	}{
		{"answered", "YES: Alex", "Alex", true},
		{"answered with padding", "  YES:   Your name is Alex.  ", "Your name is Alex.", true},
		{"multiline answer", "YES: Alex.\nYou mentioned it earlier.", "Alex.\nYou mentioned it earlier.", true},
		{"plain no", "NO", "", false},
		{"no with explanation", "NO, the conversation never mentions a name.", "", false},
		{"lowercase prefix rejected", "yes: Alex", "", false},
		{"mixed case prefix rejected", "Yes: Alex", "", false},
		{"missing colon", "YES Alex", "", false},
		{"prefix mid-sentence rejected", "Well, YES: Alex", "", false},
		{"empty remainder", "YES:", "", false},
		{"whitespace remainder", "YES:    ", "", false},
		{"empty reply", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			answer, ok := parseHistoryReply(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("parseHistoryReply(%q) ok = %v, want %v", tt.raw, ok, tt.wantOK)
			}
			if answer != tt.wantAnswer {
				t.Errorf("parseHistoryReply(%q) answer = %q, want %q", tt.raw, answer, tt.wantAnswer)
			}
		})
	}
}

func TestRenderEvidence(t *testing.T) {
	t.Parallel()

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		got := renderEvidence(nil)
		if !strings.Contains(got, "No relevant documents found in the knowledge base.") {
			t.Errorf("renderEvidence(nil) = %q, want placeholder text", got)
		}
	})

	t.Run("local and web", func(t *testing.T) {
		t.Parallel()
		ev := []Evidence{
			{Content: "Refunds within 30 days.", Title: "policy.md", Score: 0.912345, Origin: OriginLocal},
			{Content: "Store credit only after 30 days.", Score: 0.9, Origin: OriginWeb, SourceURL: "https://example.com/faq"},
		}
		got := renderEvidence(ev)

		if !strings.Contains(got, "--- Document 1: policy.md (Relevance: 0.912) ---") {
			t.Errorf("missing local document header:\n%s", got)
		}
		if !strings.Contains(got, "Refunds within 30 days.") {
			t.Errorf("missing local content:\n%s", got)
		}
		// Untitled evidence falls back to a positional name.
		if !strings.Contains(got, "Document 2") {
			t.Errorf("missing fallback title:\n%s", got)
		}
		if !strings.Contains(got, "(Source: https://example.com/faq)") {
			t.Errorf("missing web source attribution:\n%s", got)
		}
	})
}

func TestAugmentedPrompt(t *testing.T) {
	t.Parallel()

	req := Request{
		UserQuery:           "What is the refund policy?",
		ConversationContext: "Previous conversation:\nUser: hi\nAssistant: hello",
	}
	ev := []Evidence{{Content: "30 days.", Title: "policy.md", Score: 0.9, Origin: OriginLocal}}

	got := augmentedPrompt(req, ev)

	if !strings.Contains(got, "## RETRIEVED CONTEXT:") {
		t.Error("prompt missing context section header")
	}
	if !strings.Contains(got, "## USER QUESTION:") {
		t.Error("prompt missing question section header")
	}
	if !strings.Contains(got, req.UserQuery) {
		t.Error("prompt missing the user question")
	}
	if !strings.Contains(got, req.ConversationContext) {
		t.Error("prompt missing the conversation context")
	}
	if !strings.Contains(got, "no relevant information was found") {
		t.Error("prompt missing the refusal instruction")
	}
}

func TestContextSection(t *testing.T) {
	t.Parallel()

	if got := contextSection(""); got != "" {
		t.Errorf("contextSection(\"\") = %q, want empty", got)
	}
	if got := contextSection("User: hi"); !strings.HasSuffix(got, "\n\n") {
		t.Errorf("contextSection = %q, want trailing separator", got)
	}
}

func FuzzParseQueryType(f *testing.F) {
	f.Add("casual")
	f.Add("history_question")
	f.Add("retrieval_question")
	f.Add("CASUAL history_question")
	f.Add("")
	f.Add("\x00\xff")

	f.Fuzz(func(t *testing.T, raw string) {
		got := parseQueryType(raw)
		switch got {
		case QueryCasual, QueryHistory, QueryRetrieval:
		default:
			t.Errorf("parseQueryType(%q) = %q, not a known query type", raw, got)
		}
		// "casual" outranks the other labels whenever it appears.
		if strings.Contains(strings.ToLower(raw), "casual") && got != QueryCasual {
			t.Errorf("parseQueryType(%q) = %q, want casual", raw, got)
		}
	})
}

func FuzzParseHistoryReply(f *testing.F) {
	f.Add("YES: Alex")
	f.Add("NO")
	f.Add("YES:")
	f.Add("yes: nope")
	f.Add("  YES: padded  ")

	f.Fuzz(func(t *testing.T, raw string) {
		answer, ok := parseHistoryReply(raw)
		if ok && answer == "" {
			t.Errorf("parseHistoryReply(%q) reported an answer but returned none", raw)
		}
		if ok && !strings.HasPrefix(strings.TrimSpace(raw), yesPrefix) {
			t.Errorf("parseHistoryReply(%q) accepted a reply without the %q prefix", raw, yesPrefix)
		}
		if !ok && answer != "" {
			t.Errorf("parseHistoryReply(%q) = %q without ok", raw, answer)
		}
	})
}
