package offline

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// Watcher invalidates a [Disk] when track files change outside the engine.
//
// It only works on the real filesystem.
type Watcher struct {
	disk     *Disk
	fsw      *fsnotify.Watcher
	logger   *log.Logger
	onChange func()
}

// NewWatcher starts watching the root of disk. onChange may be nil.
func NewWatcher(disk *Disk, logger *log.Logger, onChange func()) (*Watcher, error) {
	if err := os.MkdirAll(disk.Root(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create offline directory: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := fsw.Add(disk.Root()); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", disk.Root(), err)
	}

	if logger == nil {
		logger = log.Default()
	}
	return &Watcher{disk: disk, fsw: fsw, logger: logger, onChange: onChange}, nil
}

// Run handles filesystem events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.disk.IsTrackFile(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				w.logger.Debug("offline directory changed", "file", event.Name, "op", event.Op.String())
				w.disk.Invalidate()
				if w.onChange != nil {
					w.onChange()
				}
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("offline watcher error", "error", err)
		case <-ctx.Done():
			return nil
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
