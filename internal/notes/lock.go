package notes

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

var ErrLocked = errors.New("notes directory is in use by another noldermd process")

// Lock takes an exclusive advisory lock in stateDir so that only one
// process writes a notes directory at a time. Release it with Unlock.
func Lock(stateDir string) (*flock.Flock, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure state dir: %w", err)
	}
	lock := flock.New(filepath.Join(stateDir, "lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", stateDir, err)
	}
	if !locked {
		return nil, ErrLocked
	}
	return lock, nil
}
