package offline

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"

	"github.com/desertthunder/offline/internal/shared"
)

const tempSuffix = ".part"

// Disk indexes the flat offline directory, one "<id>.<ext>" file per track.
//
// The listing is cached until [Disk.Invalidate]. Concurrent callers on a cold cache share one directory read.
type Disk struct {
	fs   afero.Fs
	root string
	ext  string

	mu     sync.Mutex
	cached map[string]struct{}
	gen    uint64
	group  singleflight.Group
}

// NewDisk creates a Disk over root on fs. ext is the track file extension without the dot.
func NewDisk(fs afero.Fs, root, ext string) *Disk {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Disk{fs: fs, root: filepath.Clean(root), ext: strings.TrimPrefix(ext, ".")}
}

// Root returns the offline directory.
func (d *Disk) Root() string { return d.root }

// Invalidate drops the cached listing; the next [Disk.TrackIDs] re-reads the directory.
func (d *Disk) Invalidate() {
	d.mu.Lock()
	d.cached = nil
	d.gen++
	d.mu.Unlock()
}

// TrackIDs returns the IDs of tracks present on disk. The returned map belongs to the caller.
//
// A listing that overlapped an [Disk.Invalidate] is returned but not cached.
func (d *Disk) TrackIDs() (map[string]struct{}, error) {
	d.mu.Lock()
	if d.cached != nil {
		ids := cloneIDs(d.cached)
		d.mu.Unlock()
		return ids, nil
	}
	gen := d.gen
	d.mu.Unlock()

	v, err, _ := d.group.Do(strconv.FormatUint(gen, 10), func() (any, error) {
		ids, err := d.list()
		if err != nil {
			return nil, err
		}

		d.mu.Lock()
		if d.gen == gen {
			d.cached = ids
		}
		d.mu.Unlock()
		return ids, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneIDs(v.(map[string]struct{})), nil
}

func (d *Disk) list() (map[string]struct{}, error) {
	if err := d.fs.MkdirAll(d.root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create offline directory: %w", err)
	}

	entries, err := afero.ReadDir(d.fs, d.root)
	if err != nil {
		return nil, fmt.Errorf("failed to list offline directory: %w", err)
	}

	ids := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if id, ok := d.parse(entry.Name()); ok {
			ids[id] = struct{}{}
		}
	}
	return ids, nil
}

// parse maps a file name back to a track ID, rejecting dot-files, temp files and foreign extensions.
func (d *Disk) parse(name string) (string, bool) {
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, tempSuffix) {
		return "", false
	}
	id, ok := strings.CutSuffix(name, "."+d.ext)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// Path returns the file path for a track ID.
func (d *Disk) Path(id string) (string, error) {
	if err := ValidateTrackID(id); err != nil {
		return "", err
	}
	return filepath.Join(d.root, id+"."+d.ext), nil
}

// Remove deletes the file for id. A file that is already gone is not an error.
func (d *Disk) Remove(id string) error {
	path, err := d.Path(id)
	if err != nil {
		return err
	}
	defer d.Invalidate()

	if err := d.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// Write streams a track into place: fn writes to a temp file in the root that is renamed to the track path
// only after fn succeeds. On failure the temp file is removed and no track file appears.
func (d *Disk) Write(id string, fn func(w io.Writer) error) error {
	path, err := d.Path(id)
	if err != nil {
		return err
	}
	if err := d.fs.MkdirAll(d.root, 0755); err != nil {
		return fmt.Errorf("failed to create offline directory: %w", err)
	}

	tmp := filepath.Join(d.root, "."+shared.GenerateID()+tempSuffix)
	f, err := d.fs.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	werr := fn(f)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = d.fs.Remove(tmp)
		return werr
	}

	defer d.Invalidate()
	if err := d.fs.Rename(tmp, path); err != nil {
		_ = d.fs.Remove(tmp)
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}

// Size returns the total bytes held by track files.
func (d *Disk) Size() (int64, error) {
	entries, err := afero.ReadDir(d.fs, d.root)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to list offline directory: %w", err)
	}

	var total int64
	for _, entry := range entries {
		if _, ok := d.parse(entry.Name()); ok && !entry.IsDir() {
			total += entry.Size()
		}
	}
	return total, nil
}

// CleanTemp removes temp files left behind by interrupted downloads and returns how many were removed.
func (d *Disk) CleanTemp() (int, error) {
	entries, err := afero.ReadDir(d.fs, d.root)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to list offline directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), tempSuffix) {
			continue
		}
		if err := d.fs.Remove(filepath.Join(d.root, entry.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("failed to remove temp file: %w", err)
		}
		removed++
	}
	return removed, nil
}

// IsTrackFile reports whether name looks like a track file this Disk manages.
func (d *Disk) IsTrackFile(name string) bool {
	_, ok := d.parse(filepath.Base(name))
	return ok
}

// ValidateTrackID rejects IDs that cannot be used as a single file name.
func ValidateTrackID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: empty", shared.ErrInvalidTrackID)
	case strings.HasPrefix(id, "."):
		return fmt.Errorf("%w: %q starts with a dot", shared.ErrInvalidTrackID, id)
	case strings.ContainsAny(id, "/\\\x00"):
		return fmt.Errorf("%w: %q contains a path separator", shared.ErrInvalidTrackID, id)
	}
	return nil
}

func cloneIDs(ids map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for id := range ids {
		out[id] = struct{}{}
	}
	return out
}
