package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/heronai/heron/internal/app"
	"github.com/heronai/heron/internal/config"
	"github.com/heronai/heron/internal/ingest"
)

// runIngest adds a file, directory or web page to the document index.
func runIngest(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err = cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	logger := applyLogConfig(cfg.LogLevel, cfg.LogJSON)

	ingestFlags := flag.NewFlagSet("ingest", flag.ContinueOnError)
	ingestFlags.SetOutput(os.Stderr)
	session := ingestFlags.String("session", "", "scope ingested chunks to one session (UUID)")
	crawl := ingestFlags.Bool("crawl", false, "follow same-host links when the target is a URL")
	depth := ingestFlags.Int("depth", cfg.Ingest.CrawlDepth, "link depth for -crawl")
	pages := ingestFlags.Int("pages", cfg.Ingest.CrawlMaxPages, "page cap for -crawl")

	// Positional form: heron ingest <target> [flags]
	var target string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		target = args[0]
		args = args[1:]
	}
	if err := ingestFlags.Parse(args); err != nil {
		return fmt.Errorf("parsing ingest flags: %w", err)
	}
	if target == "" {
		// Flags-first form: heron ingest -crawl <target>
		target = ingestFlags.Arg(0)
	}
	if target == "" {
		return errors.New("usage: heron ingest <path|url> [flags]")
	}
	if *session != "" {
		if _, err := uuid.Parse(*session); err != nil {
			return fmt.Errorf("invalid -session %q: %w", *session, err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// One ingest run at a time; concurrent runs would race on the
	// embedding quota and duplicate sources
	lockPath, err := ingest.LockPath()
	if err != nil {
		return fmt.Errorf("resolving lock path: %w", err)
	}
	release, err := ingest.AcquireLock(lockPath)
	if err != nil {
		return err
	}
	defer release()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	start := time.Now()
	chunks, err := ingestTarget(ctx, a.Ingest, target, *session, *crawl, *depth, *pages)
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", target, err)
	}

	fmt.Printf("Indexed %d chunks from %s in %s\n", chunks, target, time.Since(start).Round(time.Millisecond))
	return nil
}

// ingester is the slice of the ingest service the command dispatches to.
// *ingest.Service satisfies it.
type ingester interface {
	File(ctx context.Context, path, sessionID string) (int, error)
	Dir(ctx context.Context, dir, sessionID string) (int, error)
	URL(ctx context.Context, rawURL, sessionID string) (int, error)
	Crawl(ctx context.Context, startURL string, maxDepth, maxPages int, sessionID string) (int, error)
}

// ingestTarget routes the target to the matching ingest operation.
func ingestTarget(ctx context.Context, svc ingester, target, session string, crawl bool, depth, pages int) (int, error) {
	if u, err := url.Parse(target); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		if crawl {
			return svc.Crawl(ctx, target, depth, pages, session)
		}
		return svc.URL(ctx, target, session)
	}

	info, err := os.Stat(target)
	if err != nil {
		return 0, fmt.Errorf("target is neither a URL nor a readable path: %w", err)
	}
	if info.IsDir() {
		return svc.Dir(ctx, target, session)
	}
	return svc.File(ctx, target, session)
}
