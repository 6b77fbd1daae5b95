package conversation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

const (
	stateDirName  = ".heron"
	stateFileName = "current_session"
)

// StatePath returns the path of the current-session state file, creating
// ~/.heron if needed.
func StatePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting user home directory: %w", err)
	}
	dir := filepath.Join(home, stateDirName)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating state directory: %w", err)
	}
	return filepath.Join(dir, stateFileName), nil
}

// LoadCurrentSessionID reads the session recorded by the last chat run so a
// new run can resume it. A missing or empty state file returns (nil, nil).
func LoadCurrentSessionID() (*uuid.UUID, error) {
	path, err := StatePath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid session id in state file: %w", err)
	}
	return &id, nil
}

// SaveCurrentSessionID records id as the active session. The write goes
// through a temp file and rename under a file lock so concurrent runs never
// leave a partial file behind.
func SaveCurrentSessionID(id uuid.UUID) error {
	path, err := StatePath()
	if err != nil {
		return err
	}

	fl := flock.New(path + ".lock")
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("locking state file: %w", err)
	}
	defer func() { _ = fl.Unlock() }()

	tmp, err := os.CreateTemp(filepath.Dir(path), stateFileName+".*")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(id.String()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing temp state file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}

// ClearCurrentSessionID forgets the active session. Clearing when none is
// recorded is a no-op.
func ClearCurrentSessionID() error {
	path, err := StatePath()
	if err != nil {
		return err
	}

	fl := flock.New(path + ".lock")
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("locking state file: %w", err)
	}
	defer func() { _ = fl.Unlock() }()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing state file: %w", err)
	}
	return nil
}
