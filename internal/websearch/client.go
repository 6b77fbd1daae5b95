// Package websearch implements a client for a Tavily-style web search API.
// The pipeline uses it as a fallback when local retrieval comes up short.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the hosted search API endpoint.
	DefaultBaseURL = "https://api.tavily.com"

	// DefaultTimeout bounds a single search round trip.
	DefaultTimeout = 15 * time.Second

	// DefaultMaxResults is requested when the caller passes none.
	DefaultMaxResults = 3

	// maxErrorBody caps how much of an error response is read into messages.
	maxErrorBody = 4 << 10
)

// Sentinel errors for web search operations. Check with errors.Is.
var (
	// ErrNoAPIKey indicates the client was constructed without a key.
	ErrNoAPIKey = errors.New("web search api key is required")

	// ErrAPIStatus indicates the search API returned a non-success status.
	ErrAPIStatus = errors.New("web search api error")
)

// Result is one ranked web hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

type searchRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type searchResponse struct {
	Results []Result `json:"results"`
}

// Client is a search API client. Safe for concurrent use.
type Client struct {
	apiKey  string
	baseURL string
	httpc   *http.Client
	logger  *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API host, mainly for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpc = hc
		}
	}
}

// New creates a web search client. Callers without an API key should not
// construct one; the pipeline treats a missing searcher as "web search
// disabled" and degrades to local-only answers.
func New(apiKey string, logger *slog.Logger, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		httpc:   &http.Client{Timeout: DefaultTimeout},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Search returns up to maxResults ranked snippets for the query. Responses
// carrying more results than requested are truncated.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return []Result{}, nil
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	body, err := json.Marshal(searchRequest{
		APIKey:     c.apiKey,
		Query:      query,
		MaxResults: maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searching the web: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: status %d: %s",
			ErrAPIStatus, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	results := parsed.Results
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	c.logger.Debug("web search completed", "results", len(results))
	return results, nil
}
