package sync

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/sdejongh/contentsync/pkg/models"
)

// RunLock is an exclusive lock held for the duration of a sync run
type RunLock struct {
	fl *flock.Flock
}

// AcquireRunLock takes the lock at path without blocking. It fails with
// models.ErrSyncInProgress when another process holds it.
func AcquireRunLock(path string) (*RunLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock %s)", models.ErrSyncInProgress, path)
	}
	return &RunLock{fl: fl}, nil
}

// Release unlocks the run lock
func (l *RunLock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
