package offline

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"

	"github.com/desertthunder/offline/internal/shared"
)

func newMemDisk(t *testing.T) (*Disk, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	return NewDisk(fs, "/offline", "m4a"), fs
}

func writeFile(t *testing.T, fs afero.Fs, name, content string) {
	t.Helper()
	if err := afero.WriteFile(fs, filepath.Join("/offline", name), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

func TestDisk(t *testing.T) {
	t.Run("TrackIDs Filters", func(t *testing.T) {
		d, fs := newMemDisk(t)
		writeFile(t, fs, "a.m4a", "a")
		writeFile(t, fs, "b.m4a", "b")
		writeFile(t, fs, ".hidden.m4a", "x")
		writeFile(t, fs, ".123.part", "x")
		writeFile(t, fs, "c.mp3", "x")
		writeFile(t, fs, ".offline.lock", "")
		if err := fs.MkdirAll("/offline/dir.m4a", 0755); err != nil {
			t.Fatalf("failed to create dir: %v", err)
		}

		ids, err := d.TrackIDs()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(ids) != 2 {
			t.Errorf("expected 2 track IDs, got %v", ids)
		}
		for _, id := range []string{"a", "b"} {
			if _, ok := ids[id]; !ok {
				t.Errorf("expected %s in listing", id)
			}
		}
	})

	t.Run("Creates Missing Root", func(t *testing.T) {
		d, fs := newMemDisk(t)

		ids, err := d.TrackIDs()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(ids) != 0 {
			t.Errorf("expected empty listing, got %v", ids)
		}
		if ok, _ := afero.DirExists(fs, "/offline"); !ok {
			t.Error("root should be created")
		}
	})

	t.Run("Cache And Invalidate", func(t *testing.T) {
		d, fs := newMemDisk(t)
		writeFile(t, fs, "a.m4a", "a")

		if ids, _ := d.TrackIDs(); len(ids) != 1 {
			t.Fatalf("expected 1 track, got %v", ids)
		}

		writeFile(t, fs, "b.m4a", "b")
		if ids, _ := d.TrackIDs(); len(ids) != 1 {
			t.Errorf("cached listing should not see external writes, got %v", ids)
		}

		d.Invalidate()
		if ids, _ := d.TrackIDs(); len(ids) != 2 {
			t.Errorf("expected fresh listing after invalidate, got %v", ids)
		}
	})

	t.Run("Returned Map Is A Copy", func(t *testing.T) {
		d, fs := newMemDisk(t)
		writeFile(t, fs, "a.m4a", "a")

		ids, _ := d.TrackIDs()
		delete(ids, "a")

		again, _ := d.TrackIDs()
		if _, ok := again["a"]; !ok {
			t.Error("mutating a result must not affect the cache")
		}
	})

	t.Run("Concurrent Listing", func(t *testing.T) {
		d, fs := newMemDisk(t)
		writeFile(t, fs, "a.m4a", "a")

		var wg sync.WaitGroup
		for range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if ids, err := d.TrackIDs(); err != nil || len(ids) != 1 {
					t.Errorf("unexpected listing %v: %v", ids, err)
				}
			}()
		}
		wg.Wait()
	})

	t.Run("Write", func(t *testing.T) {
		d, fs := newMemDisk(t)

		err := d.Write("a", func(w io.Writer) error {
			_, err := io.WriteString(w, "audio")
			return err
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data, err := afero.ReadFile(fs, "/offline/a.m4a")
		if err != nil || string(data) != "audio" {
			t.Errorf("expected file content audio, got %q (%v)", data, err)
		}
		if ids, _ := d.TrackIDs(); len(ids) != 1 {
			t.Errorf("write should invalidate the cache, got %v", ids)
		}
		assertNoTemp(t, fs)
	})

	t.Run("Write Failure Leaves Nothing", func(t *testing.T) {
		d, fs := newMemDisk(t)

		boom := errors.New("connection reset")
		err := d.Write("a", func(w io.Writer) error {
			_, _ = io.WriteString(w, "partial")
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected writer error, got %v", err)
		}

		if ok, _ := afero.Exists(fs, "/offline/a.m4a"); ok {
			t.Error("failed write must not produce a track file")
		}
		assertNoTemp(t, fs)
	})

	t.Run("Remove", func(t *testing.T) {
		d, fs := newMemDisk(t)
		writeFile(t, fs, "a.m4a", "a")
		_, _ = d.TrackIDs()

		if err := d.Remove("a"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ids, _ := d.TrackIDs(); len(ids) != 0 {
			t.Errorf("expected empty listing after remove, got %v", ids)
		}
		if err := d.Remove("a"); err != nil {
			t.Errorf("removing an absent file should succeed: %v", err)
		}
	})

	t.Run("Size", func(t *testing.T) {
		d, fs := newMemDisk(t)
		writeFile(t, fs, "a.m4a", "12345")
		writeFile(t, fs, "b.m4a", "123")
		writeFile(t, fs, ".x.part", "1234567890")

		size, err := d.Size()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if size != 8 {
			t.Errorf("expected 8 bytes, got %d", size)
		}
	})

	t.Run("CleanTemp", func(t *testing.T) {
		d, fs := newMemDisk(t)
		writeFile(t, fs, "a.m4a", "a")
		writeFile(t, fs, ".x.part", "x")
		writeFile(t, fs, ".y.part", "y")

		removed, err := d.CleanTemp()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if removed != 2 {
			t.Errorf("expected 2 temp files removed, got %d", removed)
		}
		if ok, _ := afero.Exists(fs, "/offline/a.m4a"); !ok {
			t.Error("track files must survive CleanTemp")
		}
	})
}

func TestValidateTrackID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{id: "abc123", valid: true},
		{id: "track-1_2", valid: true},
		{id: "", valid: false},
		{id: ".hidden", valid: false},
		{id: "../etc/passwd", valid: false},
		{id: "a/b", valid: false},
		{id: `a\b`, valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := ValidateTrackID(tt.id)
			if tt.valid && err != nil {
				t.Errorf("expected %q to be valid: %v", tt.id, err)
			}
			if !tt.valid && !errors.Is(err, shared.ErrInvalidTrackID) {
				t.Errorf("expected ErrInvalidTrackID for %q, got %v", tt.id, err)
			}
		})
	}

	d, _ := newMemDisk(t)
	if err := d.Remove("../x"); !errors.Is(err, shared.ErrInvalidTrackID) {
		t.Errorf("Remove should reject invalid IDs, got %v", err)
	}
}

func assertNoTemp(t *testing.T, fs afero.Fs) {
	t.Helper()
	entries, err := afero.ReadDir(fs, "/offline")
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), tempSuffix) {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}
