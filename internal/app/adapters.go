package app

import (
	"context"

	"github.com/heronai/heron/internal/index"
	"github.com/heronai/heron/internal/pipeline"
	"github.com/heronai/heron/internal/websearch"
)

// documentFinder is the slice of the document index the retrieval adapter
// needs. *index.Store satisfies it.
type documentFinder interface {
	Search(ctx context.Context, query string, topK int, scope string) ([]index.Document, error)
}

// docSearcher adapts the document index to the pipeline's retrieval port.
type docSearcher struct {
	finder documentFinder
}

func (d docSearcher) SearchDocuments(ctx context.Context, query string, k int, scope string) ([]pipeline.Document, error) {
	docs, err := d.finder.Search(ctx, query, k, scope)
	if err != nil {
		return nil, err
	}
	out := make([]pipeline.Document, len(docs))
	for i, doc := range docs {
		title := doc.Title
		if title == "" {
			title = doc.Source
		}
		out[i] = pipeline.Document{
			Content: doc.Content,
			Title:   title,
			Score:   doc.Score,
		}
	}
	return out, nil
}

// webFinder is the slice of the web search client the fallback adapter
// needs. *websearch.Client satisfies it.
type webFinder interface {
	Search(ctx context.Context, query string, maxResults int) ([]websearch.Result, error)
}

// webSearcher adapts the web search client to the pipeline's fallback port.
type webSearcher struct {
	client webFinder
}

func (w webSearcher) SearchWeb(ctx context.Context, query string, maxResults int) ([]pipeline.WebResult, error) {
	results, err := w.client.Search(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}
	out := make([]pipeline.WebResult, len(results))
	for i, r := range results {
		out[i] = pipeline.WebResult{
			Content: r.Content,
			Title:   r.Title,
			URL:     r.URL,
		}
	}
	return out, nil
}
