package offline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/desertthunder/offline/internal/shared"
)

// LockFile is the name of the advisory lock inside the offline directory.
const LockFile = ".offline.lock"

// Lock keeps two processes from reconciling the same offline directory.
type Lock struct {
	root string
	fl   *flock.Flock
}

// NewLock creates an unheld lock for root.
func NewLock(root string) *Lock {
	return &Lock{root: root, fl: flock.New(filepath.Join(root, LockFile))}
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.fl.Path() }

// Acquire takes the lock without waiting. It returns an error wrapping [shared.ErrLocked] when another holder has it.
func (l *Lock) Acquire() error {
	if err := os.MkdirAll(l.root, 0755); err != nil {
		return fmt.Errorf("failed to create offline directory: %w", err)
	}

	ok, err := l.fl.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrLocked, l.Path())
	}
	return nil
}

// Release gives up the lock. Releasing an unheld lock is a no-op.
func (l *Lock) Release() error {
	if !l.fl.Locked() {
		return nil
	}
	return l.fl.Unlock()
}
