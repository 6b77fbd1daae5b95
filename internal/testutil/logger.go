package testutil

import "log/slog"

// DiscardLogger returns a logger that drops everything. Same type as
// log.NewNop since log.Logger aliases *slog.Logger; this one exists so
// test files outside internal/log don't need the extra import.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
