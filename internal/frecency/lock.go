package frecency

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// dirLock guards a db directory against two coordinators opening the same
// store concurrently. WAL tuning alone doesn't prevent two separate
// processes (not just connections) racing to create the schema.
type dirLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

func newDirLock(dir string) *dirLock {
	return &dirLock{
		path:  filepath.Join(dir, ".frecency.lock"),
		flock: flock.New(filepath.Join(dir, ".frecency.lock")),
	}
}

// TryLock acquires the lock without blocking, creating dir if needed.
func (l *dirLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("frecency: create lock directory: %w", err)
	}
	ok, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("frecency: acquire lock: %w", err)
	}
	l.locked = ok
	return ok, nil
}

func (l *dirLock) Unlock() error {
	if !l.locked {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("frecency: release lock: %w", err)
	}
	l.locked = false
	return nil
}
