package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked indicates another ingest run already holds the lock.
//
// Callers detect it with errors.Is:
//
//	if errors.Is(err, ingest.ErrLocked) { ... }
var ErrLocked = errors.New("another ingest run is in progress")

// LockPath returns the ingest lock file under ~/.heron, creating the
// directory if needed.
func LockPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting user home directory: %w", err)
	}
	dir := filepath.Join(home, ".heron")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating state directory: %w", err)
	}
	return filepath.Join(dir, "ingest.lock"), nil
}

// AcquireLock takes the exclusive ingest lock at path. The returned release
// func must be called when the run finishes. Concurrent runs would race the
// dedup index, so a held lock yields ErrLocked instead of blocking.
func AcquireLock(path string) (release func(), err error) {
	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring ingest lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}
	return func() { _ = fl.Unlock() }, nil
}
