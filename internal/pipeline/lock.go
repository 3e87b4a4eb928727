package pipeline

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/momentumsubash/ytd/internal/config"
	"github.com/momentumsubash/ytd/internal/services"
)

// RunLock serializes pipeline runs against one state directory. The progress
// and playlist files assume a single writer; a second process working the
// same directory would corrupt them.
type RunLock struct {
	path string
	lock *flock.Flock
}

// NewRunLock prepares a lock file inside the configured state directory.
func NewRunLock(cfg *config.Config) *RunLock {
	path := filepath.Join(cfg.Paths.StateDir, "ytd.lock")
	return &RunLock{path: path, lock: flock.New(path)}
}

// Acquire takes the lock without blocking. A lock held elsewhere is fatal:
// another process owns the state directory.
func (l *RunLock) Acquire() error {
	ok, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return services.Wrap(services.ErrConfiguration, "run", "acquire lock",
			fmt.Sprintf("another process holds %s", l.path), nil)
	}
	return nil
}

// Release drops the lock.
func (l *RunLock) Release() error {
	return l.lock.Unlock()
}

// Path returns the lock file location.
func (l *RunLock) Path() string {
	return l.path
}
