package pipeline

import (
	"context"
	"strings"
)

// classify assigns the query category and its sampling temperature.
// Classification failures never abort the run: the query falls back to
// the retrieval path.
func (p *Pipeline) classify(ctx context.Context, s *state) {
	if !p.cfg.ClassifyQueries {
		s.queryType = QueryRetrieval
		s.temperature = p.cfg.RetrievalTemperature
		return
	}

	raw, err := p.gen.Generate(ctx, classifyPrompt(s.req), p.cfg.RetrievalTemperature)
	if err != nil {
		s.recordFailure(ErrClassification, err)
		s.queryType = QueryRetrieval
		s.temperature = p.cfg.RetrievalTemperature
		s.skipRetrieval = false
		return
	}

	s.queryType = parseQueryType(raw)
	switch s.queryType {
	case QueryCasual:
		s.temperature = p.cfg.CasualTemperature
		s.skipRetrieval = true
	case QueryHistory:
		s.temperature = p.cfg.HistoryTemperature
	default:
		s.temperature = p.cfg.RetrievalTemperature
	}
}

// parseQueryType maps raw classifier output to a category.
// Case-insensitive substring match, checked in priority order; anything
// unmatched or ambiguous becomes a retrieval question.
func parseQueryType(raw string) QueryType {
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, string(QueryCasual)):
		return QueryCasual
	case strings.Contains(lower, string(QueryHistory)):
		return QueryHistory
	default:
		return QueryRetrieval
	}
}
