package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/gocolly/colly/v2"

	"github.com/heronai/heron/internal/index"
)

const (
	// DefaultFetchTimeout bounds a single page fetch.
	DefaultFetchTimeout = 30 * time.Second

	// DefaultMaxBodySize caps how much of a remote page is read.
	DefaultMaxBodySize = 10 << 20

	// DefaultUserAgent identifies heron to remote servers.
	DefaultUserAgent = "heron/1.0"

	// DefaultCrawlDepth is the link depth from the start page.
	DefaultCrawlDepth = 2

	// MaxCrawlDepth caps a crawl's depth.
	MaxCrawlDepth = 5

	// DefaultCrawlPages is the page budget when the caller passes none.
	DefaultCrawlPages = 20

	// MaxCrawlPages caps a crawl's page budget.
	MaxCrawlPages = 200
)

// Indexer is the slice of the document index ingestion writes to.
type Indexer interface {
	Index(ctx context.Context, chunks []index.Chunk) (int, error)
}

// Service ingests documents from local and remote sources, chunking them
// and writing the chunks to the index.
type Service struct {
	indexer   Indexer
	chunker   *Chunker
	logger    *slog.Logger
	httpc     *http.Client
	maxBody   int64
	userAgent string
}

// Option customizes a Service.
type Option func(*Service)

// WithChunker replaces the default chunker.
func WithChunker(c *Chunker) Option {
	return func(s *Service) {
		if c != nil {
			s.chunker = c
		}
	}
}

// WithHTTPClient replaces the default HTTP client used for URL ingestion.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *Service) {
		if hc != nil {
			s.httpc = hc
		}
	}
}

// WithMaxBodySize overrides the remote page size cap.
func WithMaxBodySize(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// WithUserAgent overrides the User-Agent header sent on fetches and crawls.
func WithUserAgent(ua string) Option {
	return func(s *Service) {
		if ua != "" {
			s.userAgent = ua
		}
	}
}

// NewService creates an ingestion Service.
func NewService(indexer Indexer, logger *slog.Logger, opts ...Option) (*Service, error) {
	if indexer == nil {
		return nil, fmt.Errorf("indexer is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		indexer:   indexer,
		chunker:   NewChunker(DefaultChunkSize, DefaultChunkOverlap),
		logger:    logger,
		httpc:     &http.Client{Timeout: DefaultFetchTimeout},
		maxBody:   DefaultMaxBodySize,
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Text chunks raw text and writes it to the index under the given source.
// Returns the number of chunks actually inserted, which is lower than the
// chunk count when the dedup index suppresses re-ingested content.
func (s *Service) Text(ctx context.Context, content, title, source, sessionID string) (int, error) {
	if strings.TrimSpace(source) == "" {
		return 0, fmt.Errorf("source is required")
	}

	pieces := s.chunker.Chunk(content)
	if len(pieces) == 0 {
		return 0, nil
	}

	chunks := make([]index.Chunk, 0, len(pieces))
	for _, p := range pieces {
		t := title
		if p.Page > 0 && t != "" {
			t = fmt.Sprintf("%s, page %d", title, p.Page)
		}
		chunks = append(chunks, index.Chunk{
			Source:    source,
			Title:     t,
			Content:   p.Content,
			SessionID: sessionID,
		})
	}

	n, err := s.indexer.Index(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("indexing %q: %w", source, err)
	}
	s.logger.Info("ingested text", "source", source, "chunks", len(chunks), "inserted", n)
	return n, nil
}

// ingestibleExt reports whether a path has an ingestible extension.
func ingestibleExt(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		return true
	}
	return false
}

// File ingests one .txt or .md file. The slash-separated path becomes the
// chunk source so re-ingesting the same file is idempotent.
func (s *Service) File(ctx context.Context, path, sessionID string) (int, error) {
	if !ingestibleExt(path) {
		return 0, fmt.Errorf("unsupported file type %q (want .txt or .md)", filepath.Ext(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}
	source := filepath.ToSlash(filepath.Clean(path))
	return s.Text(ctx, string(data), filepath.Base(path), source, sessionID)
}

// Dir walks a directory and ingests every .txt and .md file in it. Files
// that fail to ingest are logged and skipped; the walk continues.
func (s *Service) Dir(ctx context.Context, dir, sessionID string) (int, error) {
	var total, files int
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !ingestibleExt(path) {
			return nil
		}
		n, ferr := s.File(ctx, path, sessionID)
		if ferr != nil {
			s.logger.Warn("skipping file", "path", path, "error", ferr)
			return nil
		}
		files++
		total += n
		return nil
	})
	if err != nil {
		return total, fmt.Errorf("walking %s: %w", dir, err)
	}
	s.logger.Info("ingested directory", "dir", dir, "files", files, "inserted", total)
	return total, nil
}

// URL fetches a page and ingests its readable text. The URL becomes the
// chunk source.
func (s *Service) URL(ctx context.Context, rawURL, sessionID string) (int, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return 0, fmt.Errorf("invalid url %q", rawURL)
	}

	body, err := s.fetch(ctx, u.String())
	if err != nil {
		return 0, err
	}

	text, title, err := extractReadable(body, u)
	if err != nil {
		return 0, fmt.Errorf("extracting %s: %w", u, err)
	}
	if title == "" {
		title = u.Host
	}
	return s.Text(ctx, text, title, u.String(), sessionID)
}

// Crawl visits same-host pages starting from startURL and ingests each
// page's readable text. Depth and page count are bounded. Pages are
// collected first so indexing never runs inside the crawler's goroutines.
func (s *Service) Crawl(ctx context.Context, startURL string, maxDepth, maxPages int, sessionID string) (int, error) {
	u, err := url.Parse(startURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return 0, fmt.Errorf("invalid url %q", startURL)
	}
	if maxDepth <= 0 {
		maxDepth = DefaultCrawlDepth
	}
	if maxDepth > MaxCrawlDepth {
		maxDepth = MaxCrawlDepth
	}
	if maxPages <= 0 {
		maxPages = DefaultCrawlPages
	}
	if maxPages > MaxCrawlPages {
		maxPages = MaxCrawlPages
	}

	type page struct {
		url  *url.URL
		body []byte
	}
	var (
		mu    sync.Mutex
		pages []page
	)

	c := colly.NewCollector(
		colly.AllowedDomains(u.Hostname()),
		colly.MaxDepth(maxDepth),
		colly.MaxBodySize(int(s.maxBody)),
		colly.UserAgent(s.userAgent),
		colly.Async(true),
		colly.StdlibContext(ctx),
	)
	if err := c.Limit(&colly.LimitRule{DomainGlob: "*", Parallelism: 2}); err != nil {
		return 0, fmt.Errorf("configuring crawler: %w", err)
	}

	c.OnRequest(func(r *colly.Request) {
		mu.Lock()
		full := len(pages) >= maxPages
		mu.Unlock()
		if full {
			r.Abort()
		}
	})
	c.OnResponse(func(r *colly.Response) {
		if !strings.Contains(r.Headers.Get("Content-Type"), "text/html") {
			return
		}
		body := make([]byte, len(r.Body))
		copy(body, r.Body)
		mu.Lock()
		if len(pages) < maxPages {
			pages = append(pages, page{url: r.Request.URL, body: body})
		}
		mu.Unlock()
	})
	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		_ = e.Request.Visit(e.Request.AbsoluteURL(e.Attr("href")))
	})
	c.OnError(func(r *colly.Response, cerr error) {
		s.logger.Warn("crawl request failed", "url", r.Request.URL, "error", cerr)
	})

	if err := c.Visit(u.String()); err != nil {
		return 0, fmt.Errorf("starting crawl at %s: %w", startURL, err)
	}
	c.Wait()

	var total int
	for _, p := range pages {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		text, title, xerr := extractReadable(p.body, p.url)
		if xerr != nil {
			s.logger.Warn("skipping page", "url", p.url, "error", xerr)
			continue
		}
		if title == "" {
			title = p.url.Host
		}
		n, terr := s.Text(ctx, text, title, p.url.String(), sessionID)
		if terr != nil {
			return total, terr
		}
		total += n
	}
	s.logger.Info("crawl finished", "start", startURL, "pages", len(pages), "inserted", total)
	return total, nil
}

// fetch GETs a URL with the service's size and timeout limits applied.
func (s *Service) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetching %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBody))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	return body, nil
}

// extractReadable pulls the main text out of an HTML page. The title comes
// from readability with a <title> tag fallback.
func extractReadable(body []byte, u *url.URL) (text, title string, err error) {
	article, err := readability.FromReader(bytes.NewReader(body), u)
	if err != nil {
		return "", "", err
	}
	title = strings.TrimSpace(article.Title)
	if title == "" {
		if doc, qerr := goquery.NewDocumentFromReader(bytes.NewReader(body)); qerr == nil {
			title = strings.TrimSpace(doc.Find("title").First().Text())
		}
	}
	return article.TextContent, title, nil
}
