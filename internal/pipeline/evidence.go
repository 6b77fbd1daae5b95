package pipeline

import (
	"context"
	"strings"
)

// retrieveLocal fetches the nearest document chunks for the query unless
// an earlier stage decided to skip retrieval. Index failures degrade to
// empty evidence; downstream stages tolerate that.
func (p *Pipeline) retrieveLocal(ctx context.Context, s *state) {
	if s.skipRetrieval {
		return
	}

	docs, err := p.docs.SearchDocuments(ctx, s.req.UserQuery, p.cfg.RetrievalTopK, s.req.SessionScope)
	if err != nil {
		s.recordFailure(ErrRetrieval, err)
		return
	}

	for _, d := range docs {
		s.localEvidence = append(s.localEvidence, Evidence{
			Content: d.Content,
			Title:   d.Title,
			Score:   d.Score,
			Origin:  OriginLocal,
		})
	}
}

// judgeSufficiency decides whether the local evidence resolves the query.
// Without a web searcher the verdict is trivially true (there is no
// fallback to trigger). Empty local evidence is insufficient by
// definition and skips the judge call. Judge failures default to false.
func (p *Pipeline) judgeSufficiency(ctx context.Context, s *state) {
	if p.web == nil {
		s.sufficient = true
		return
	}
	if len(s.localEvidence) == 0 {
		s.sufficient = false
		return
	}

	raw, err := p.gen.Generate(ctx, sufficiencyPrompt(s.req, s.localEvidence), p.cfg.RetrievalTemperature)
	if err != nil {
		s.recordFailure(ErrSufficiency, err)
		s.sufficient = false
		return
	}
	s.sufficient = strings.Contains(strings.ToLower(raw), "yes")
}

// searchWeb fetches ranked snippets as fallback evidence. Search failures
// degrade to empty web evidence.
func (p *Pipeline) searchWeb(ctx context.Context, s *state) {
	s.webInvoked = true

	results, err := p.web.SearchWeb(ctx, s.req.UserQuery, p.cfg.WebResults)
	if err != nil {
		s.recordFailure(ErrWebSearch, err)
		return
	}

	for _, r := range results {
		s.webEvidence = append(s.webEvidence, Evidence{
			Content:   r.Content,
			Title:     r.Title,
			Score:     webEvidenceScore,
			Origin:    OriginWeb,
			SourceURL: r.URL,
		})
	}
}

// combine concatenates local evidence before web evidence, preserving
// order within each source. No deduplication: a web result duplicating a
// local chunk passes through.
func (p *Pipeline) combine(s *state) {
	s.combined = make([]Evidence, 0, len(s.localEvidence)+len(s.webEvidence))
	s.combined = append(s.combined, s.localEvidence...)
	s.combined = append(s.combined, s.webEvidence...)
}
