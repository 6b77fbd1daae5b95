package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/heronai/heron/internal/conversation"
	"github.com/heronai/heron/internal/pipeline"
)

// askTimeout bounds a single pipeline run. A run makes several model
// calls and possibly a web search, so this is generous.
const askTimeout = 3 * time.Minute

// askDoneMsg carries the pipeline result for the question with the
// matching sequence number.
type askDoneMsg struct {
	seq int
	res pipeline.Result
}

// askFailedMsg reports a run that ended without a result, which with a
// non-erroring pipeline means cancellation, timeout or a panic.
type askFailedMsg struct {
	seq int
	err error
}

// startAsk creates a command that runs the question through the
// pipeline and persists the completed exchange.
//
// The command body runs on a Bubble Tea worker goroutine. It reads only
// values captured here, never the Model, so the UI loop stays free to
// cancel or submit again while the run is in flight.
func (m *Model) startAsk(query string) tea.Cmd {
	ctx, cancel := context.WithTimeout(m.ctx, askTimeout)
	m.askCancel = cancel

	seq := m.askSeq
	runner := m.runner
	sessions := m.sessions
	sessionID := m.sessionID

	return func() (msg tea.Msg) {
		// Release the timer on all exit paths
		defer cancel()

		// Panic recovery to prevent TUI lockup
		defer func() {
			if r := recover(); r != nil {
				msg = askFailedMsg{seq: seq, err: fmt.Errorf("ask panic: %v", r)}
			}
		}()

		// A history outage degrades to a context-free run
		var history string
		if exchanges, err := sessions.RecentExchanges(ctx, sessionID, conversation.DefaultExchangeWindow); err == nil {
			history = conversation.FormatContext(exchanges)
		}

		res := runner.Run(ctx, pipeline.Request{
			UserQuery:           query,
			ConversationContext: history,
			SessionScope:        sessionID.String(),
		})
		if err := ctx.Err(); err != nil {
			return askFailedMsg{seq: seq, err: err}
		}

		if res.Status == pipeline.StatusSuccess {
			// A persistence failure hides this exchange from future
			// context; the answer is still shown.
			_ = sessions.AddExchange(ctx, sessionID, query, res.FinalAnswer)
		}

		return askDoneMsg{seq: seq, res: res}
	}
}

// cancelAsk abandons the in-flight question, if any.
func (m *Model) cancelAsk() {
	if m.askCancel != nil {
		m.askCancel()
		m.askCancel = nil
	}
	// Replies from the abandoned run no longer match
	m.askSeq++
}

// resultMeta builds the one-line run summary shown under an answer.
func resultMeta(res pipeline.Result) string {
	parts := []string{string(res.QueryType)}
	if res.AnsweredFromMemory {
		parts = append(parts, "answered from history")
	}
	if res.RetrievedEvidence > 0 {
		parts = append(parts, fmt.Sprintf("%d documents", res.RetrievedEvidence))
	}
	if res.WebSearchUsed {
		parts = append(parts, "web search")
	}
	return strings.Join(parts, " · ")
}
