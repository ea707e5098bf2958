package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/offline/internal/models"
	"github.com/desertthunder/offline/internal/offline"
	"github.com/desertthunder/offline/internal/services"
	"github.com/desertthunder/offline/internal/shared"
)

// AlbumSync fetches the tracks of newly pinned albums and attaches them to their pins.
type AlbumSync struct {
	store    *offline.Store
	catalog  services.Catalog
	queue    *Queue
	tracks   *Loop
	reporter shared.Reporter
	logger   *log.Logger
	notify   func()
	progress chan<- ProgressUpdate
}

// Pass handles every album queued when it starts. Albums unpinned or attached in the meantime are skipped;
// an album whose fetch fails stays queued for a later pass.
func (s *AlbumSync) Pass(ctx context.Context, pass *models.Pass) error {
	total := s.queue.Len()
	attached, failed := 0, 0
	defer func() { pass.SetCounts(0, 0, failed) }()

	for step := 1; step <= total; step++ {
		id, ok := s.queue.Pop()
		if !ok {
			break
		}
		if !s.pending(id) {
			continue
		}

		sendProgress(s.progress, fetchAlbumUpdate(step, total, id))
		tracks, err := s.catalog.AlbumTracks(ctx, id)
		if err != nil {
			if s.pending(id) {
				s.queue.Push(id)
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.reporter.Report("album fetch failed", fmt.Sprintf("%s: %v", id, err))
			failed++
			continue
		}

		ok, err = s.store.AttachAlbumTracks(id, tracks)
		if err != nil {
			s.reporter.Report("offline state not saved", err.Error())
		}
		if ok {
			s.logger.Info("album attached", "album", id, "tracks", len(models.StreamableTracks(tracks)))
			attached++
		}
	}

	if attached > 0 {
		s.notify()
		s.tracks.Request()
	}
	sendProgress(s.progress, completeUpdate(LoopAlbums, pass))
	return nil
}

// pending reports whether id is pinned without attached tracks.
func (s *AlbumSync) pending(id string) bool {
	for _, a := range s.store.Albums() {
		if a.Album.ID == id {
			return !a.Attached
		}
	}
	return false
}
