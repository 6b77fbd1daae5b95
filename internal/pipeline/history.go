package pipeline

import (
	"context"
	"strings"
)

// yesPrefix marks an affirmative history-check reply. The match is
// case-sensitive; replies that deviate from the protocol do not
// short-circuit retrieval.
const yesPrefix = "YES:"

// checkHistory decides whether the conversation alone answers the query.
// Any failure behaves as a NO and the run continues into retrieval.
func (p *Pipeline) checkHistory(ctx context.Context, s *state) {
	raw, err := p.gen.Generate(ctx, historyCheckPrompt(s.req), p.cfg.HistoryTemperature)
	if err != nil {
		s.recordFailure(ErrHistoryCheck, err)
		return
	}

	answer, ok := parseHistoryReply(raw)
	if !ok {
		return
	}
	s.memoryAnswer = answer
	s.answeredFromMem = true
	s.skipRetrieval = true
}

// parseHistoryReply extracts the answer from a "YES: <answer>" reply.
// A bare "YES:" with no remainder counts as NO, so an empty answer can
// never suppress retrieval.
func parseHistoryReply(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, yesPrefix) {
		return "", false
	}
	answer := strings.TrimSpace(strings.TrimPrefix(trimmed, yesPrefix))
	if answer == "" {
		return "", false
	}
	return answer, true
}
