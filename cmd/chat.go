package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "charm.land/bubbletea/v2"
	"github.com/google/uuid"

	"github.com/heronai/heron/internal/app"
	"github.com/heronai/heron/internal/config"
	"github.com/heronai/heron/internal/conversation"
	"github.com/heronai/heron/internal/tui"
)

// runChat initializes and starts the interactive chat TUI.
func runChat(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err = cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	logger := applyLogConfig(cfg.LogLevel, cfg.LogJSON)

	chatFlags := flag.NewFlagSet("chat", flag.ContinueOnError)
	chatFlags.SetOutput(os.Stderr)
	fresh := chatFlags.Bool("new", false, "start a fresh session instead of resuming the last one")
	if err := chatFlags.Parse(args); err != nil {
		return fmt.Errorf("parsing chat flags: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	sessionID, err := resolveSessionID(ctx, a.Conversations, *fresh)
	if err != nil {
		return fmt.Errorf("resolving session: %w", err)
	}

	model, err := tui.New(ctx, a.Pipeline, a.Conversations, sessionID)
	if err != nil {
		return fmt.Errorf("creating TUI: %w", err)
	}
	program := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err = program.Run(); err != nil {
		return fmt.Errorf("TUI exited: %w", err)
	}
	return nil
}

// sessionValidator is the slice of the conversation store session
// resolution needs. *conversation.Store satisfies it.
type sessionValidator interface {
	GetSession(ctx context.Context, id uuid.UUID) (*conversation.Session, error)
	CreateSession(ctx context.Context, title string) (*conversation.Session, error)
}

// resolveSessionID returns the session to chat in: the one recorded by
// the previous run when it still exists, otherwise a fresh one. The
// chosen session is recorded for the next run.
func resolveSessionID(ctx context.Context, store sessionValidator, fresh bool) (uuid.UUID, error) {
	if fresh {
		if err := conversation.ClearCurrentSessionID(); err != nil {
			slog.Warn("clearing saved session", "error", err)
		}
	} else {
		saved, err := conversation.LoadCurrentSessionID()
		if err != nil {
			return uuid.Nil, fmt.Errorf("loading saved session: %w", err)
		}
		if saved != nil {
			_, err = store.GetSession(ctx, *saved)
			if err == nil {
				return *saved, nil
			}
			if !errors.Is(err, conversation.ErrNotFound) {
				return uuid.Nil, fmt.Errorf("validating saved session: %w", err)
			}
			// The saved session was deleted; fall through to a fresh one
		}
	}

	sess, err := store.CreateSession(ctx, "")
	if err != nil {
		return uuid.Nil, fmt.Errorf("creating session: %w", err)
	}
	if err := conversation.SaveCurrentSessionID(sess.ID); err != nil {
		slog.Warn("saving session state", "error", err)
	}
	return sess.ID, nil
}
