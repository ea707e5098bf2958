// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/offline/internal/models"
	"github.com/desertthunder/offline/internal/services"
	"github.com/desertthunder/offline/internal/shared"
)

// FakeCatalog is an in-memory [services.Catalog]. All methods are safe for concurrent use.
type FakeCatalog struct {
	mu        sync.Mutex
	favorites []models.Track
	albums    map[string][]models.Track
	playlists map[string][]models.Track
	errs      map[string]error
	calls     map[string]int

	// Gate, when set, is received from before every fetch returns. Close it to release all fetches.
	Gate chan struct{}
}

// NewFakeCatalog creates an empty catalog.
func NewFakeCatalog() *FakeCatalog {
	return &FakeCatalog{
		albums:    make(map[string][]models.Track),
		playlists: make(map[string][]models.Track),
		errs:      make(map[string]error),
		calls:     make(map[string]int),
	}
}

// FavoritesKey, AlbumKey and PlaylistKey name catalog entries for [FakeCatalog.Fail] and [FakeCatalog.Calls].
const FavoritesKey = "favorites"

func AlbumKey(id string) string    { return "album:" + id }
func PlaylistKey(id string) string { return "playlist:" + id }

func (c *FakeCatalog) SetFavorites(tracks ...models.Track) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.favorites = tracks
}

func (c *FakeCatalog) SetAlbum(id string, tracks ...models.Track) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.albums[id] = tracks
}

func (c *FakeCatalog) SetPlaylist(id string, tracks ...models.Track) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playlists[id] = tracks
}

// Fail makes fetches of key return err until cleared with a nil err.
func (c *FakeCatalog) Fail(key string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.errs, key)
		return
	}
	c.errs[key] = err
}

// Calls returns how many times key was fetched.
func (c *FakeCatalog) Calls(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[key]
}

func (c *FakeCatalog) fetch(ctx context.Context, key string, lookup func() ([]models.Track, bool)) ([]models.Track, error) {
	c.mu.Lock()
	c.calls[key]++
	gate := c.Gate
	c.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.errs[key]; err != nil {
		return nil, fmt.Errorf("%w: %s: %w", shared.ErrCatalogFetch, key, err)
	}
	tracks, ok := lookup()
	if !ok {
		return nil, fmt.Errorf("%w: %s: %w", shared.ErrCatalogFetch, key, &services.StatusError{Code: http.StatusNotFound})
	}
	return append([]models.Track{}, tracks...), nil
}

func (c *FakeCatalog) FavoriteTracks(ctx context.Context) ([]models.Track, error) {
	return c.fetch(ctx, FavoritesKey, func() ([]models.Track, bool) { return c.favorites, true })
}

func (c *FakeCatalog) AlbumTracks(ctx context.Context, albumID string) ([]models.Track, error) {
	return c.fetch(ctx, AlbumKey(albumID), func() ([]models.Track, bool) {
		tracks, ok := c.albums[albumID]
		return tracks, ok
	})
}

func (c *FakeCatalog) PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	return c.fetch(ctx, PlaylistKey(playlistID), func() ([]models.Track, bool) {
		tracks, ok := c.playlists[playlistID]
		return tracks, ok
	})
}

// FakeFetcher is an in-memory [services.Fetcher]. Media URLs are "fake://<track id>".
type FakeFetcher struct {
	mu          sync.Mutex
	media       map[string][]byte
	unavailable map[string]bool
	conflicts   map[string]int
	failures    map[string]error
	downloads   map[string]int

	// BeforeDownload, when set, runs before every download attempt with the track ID.
	BeforeDownload func(id string)
}

// NewFakeFetcher creates a fetcher that serves "audio:<id>" for every track.
func NewFakeFetcher() *FakeFetcher {
	return &FakeFetcher{
		media:       make(map[string][]byte),
		unavailable: make(map[string]bool),
		conflicts:   make(map[string]int),
		failures:    make(map[string]error),
		downloads:   make(map[string]int),
	}
}

func (f *FakeFetcher) SetMedia(id string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.media[id] = data
}

// SetUnavailable makes URL resolution for id fail with [shared.ErrTrackUnavailable].
func (f *FakeFetcher) SetUnavailable(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unavailable[id] = true
}

// SetConflicts makes the next n downloads of id fail with a transient conflict.
func (f *FakeFetcher) SetConflicts(id string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conflicts[id] = n
}

// Fail makes downloads of id fail with err. A nil err clears it.
func (f *FakeFetcher) Fail(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, id)
		return
	}
	f.failures[id] = err
}

// Downloads returns how many download attempts were made for id, conflicts included.
func (f *FakeFetcher) Downloads(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.downloads[id]
}

func (f *FakeFetcher) ResolveDownloadURL(ctx context.Context, track models.Track) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unavailable[track.ID] {
		return "", fmt.Errorf("%w: %s", shared.ErrTrackUnavailable, track.ID)
	}
	return "fake://" + track.ID, nil
}

func (f *FakeFetcher) Download(ctx context.Context, mediaURL string, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id := mediaURL[len("fake://"):]
	if f.BeforeDownload != nil {
		f.BeforeDownload(id)
	}

	f.mu.Lock()
	f.downloads[id]++
	if f.conflicts[id] > 0 {
		f.conflicts[id]--
		f.mu.Unlock()
		return &services.StatusError{Code: services.StatusTransientConflict}
	}
	if err := f.failures[id]; err != nil {
		f.mu.Unlock()
		return fmt.Errorf("%w: %w", shared.ErrDownloadFailed, err)
	}
	data, ok := f.media[id]
	if !ok {
		data = []byte("audio:" + id)
	}
	f.mu.Unlock()

	_, err := w.Write(data)
	return err
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertNoFile(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("File should not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
