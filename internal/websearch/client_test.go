package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/heronai/heron/internal/testutil"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New("tvly-test-key", testutil.DiscardLogger(), WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}
	return c
}

func TestNew_NoAPIKey(t *testing.T) {
	_, err := New("", testutil.DiscardLogger())
	if !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("New(\"\") error = %v, want ErrNoAPIKey", err)
	}
}

func TestClientSearch(t *testing.T) {
	var gotReq searchRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/search" {
			t.Errorf("path = %s, want /search", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(searchResponse{Results: []Result{
			{Title: "Weather today", URL: "https://example.com/weather", Content: "Sunny, 24 degrees."},
			{Title: "Forecast", URL: "https://example.com/forecast", Content: "Rain tomorrow."},
		}})
	})

	got, err := c.Search(context.Background(), "today's weather", 3)
	if err != nil {
		t.Fatalf("Search() unexpected error: %v", err)
	}

	want := []Result{
		{Title: "Weather today", URL: "https://example.com/weather", Content: "Sunny, 24 degrees."},
		{Title: "Forecast", URL: "https://example.com/forecast", Content: "Rain tomorrow."},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Search() mismatch (-want +got):\n%s", diff)
	}

	if gotReq.APIKey != "tvly-test-key" {
		t.Errorf("request api_key = %q, want the configured key", gotReq.APIKey)
	}
	if gotReq.Query != "today's weather" {
		t.Errorf("request query = %q", gotReq.Query)
	}
	if gotReq.MaxResults != 3 {
		t.Errorf("request max_results = %d, want 3", gotReq.MaxResults)
	}
}

func TestClientSearch_DefaultsMaxResults(t *testing.T) {
	var gotReq searchRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_ = json.NewEncoder(w).Encode(searchResponse{})
	})

	if _, err := c.Search(context.Background(), "anything", 0); err != nil {
		t.Fatalf("Search() unexpected error: %v", err)
	}
	if gotReq.MaxResults != DefaultMaxResults {
		t.Errorf("request max_results = %d, want %d", gotReq.MaxResults, DefaultMaxResults)
	}
}

func TestClientSearch_TruncatesOverlongResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		results := make([]Result, 5)
		for i := range results {
			results[i] = Result{Title: "hit", URL: "https://example.com", Content: "snippet"}
		}
		_ = json.NewEncoder(w).Encode(searchResponse{Results: results})
	})

	got, err := c.Search(context.Background(), "query", 2)
	if err != nil {
		t.Fatalf("Search() unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Search() returned %d results, want 2", len(got))
	}
}

func TestClientSearch_EmptyQuerySkipsRequest(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(searchResponse{})
	})

	got, err := c.Search(context.Background(), "   ", 3)
	if err != nil {
		t.Fatalf("Search() unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Search(blank) returned %d results, want 0", len(got))
	}
	if calls != 0 {
		t.Errorf("blank query reached the API %d times, want 0", calls)
	}
}

func TestClientSearch_ErrorStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"detail": "rate limit exceeded"}`))
	})

	_, err := c.Search(context.Background(), "query", 3)
	if !errors.Is(err, ErrAPIStatus) {
		t.Fatalf("Search() error = %v, want ErrAPIStatus", err)
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error %q does not carry the status code", err)
	}
	if !strings.Contains(err.Error(), "rate limit exceeded") {
		t.Errorf("error %q does not carry the response snippet", err)
	}
}

func TestClientSearch_MalformedJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json at all"))
	})

	_, err := c.Search(context.Background(), "query", 3)
	if err == nil {
		t.Fatal("Search() error = nil, want decode error")
	}
	if !strings.Contains(err.Error(), "decoding search response") {
		t.Errorf("error = %q, want decode context", err)
	}
}
