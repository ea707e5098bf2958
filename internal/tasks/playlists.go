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

// PlaylistSync drains a queue of playlist IDs, bringing each playlist's reference counts in step with its live
// track list. Unpinned playlists release every reference they held.
type PlaylistSync struct {
	store    *offline.Store
	catalog  services.Catalog
	queue    *Queue
	tracks   *Loop
	reporter shared.Reporter
	logger   *log.Logger
	notify   func()
	progress chan<- ProgressUpdate
}

// Pass handles every playlist queued when it starts, then requests one track pass.
// A playlist whose fetch fails stays queued for a later pass.
func (s *PlaylistSync) Pass(ctx context.Context, pass *models.Pass) error {
	total := s.queue.Len()
	handled, failed := 0, 0
	defer func() { pass.SetCounts(0, 0, failed) }()

	for step := 1; step <= total; step++ {
		id, ok := s.queue.Pop()
		if !ok {
			break
		}

		var current []models.Track
		if s.store.IsPlaylistPinned(id) {
			sendProgress(s.progress, fetchPlaylistUpdate(step, total, id))

			tracks, err := s.catalog.PlaylistTracks(ctx, id)
			if err != nil {
				if s.store.IsPlaylistPinned(id) {
					s.queue.Push(id)
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.reporter.Report("playlist fetch failed", fmt.Sprintf("%s: %v", id, err))
				failed++
				continue
			}
			current = tracks
		}

		result, err := s.store.SyncPlaylist(id, current)
		if err != nil {
			s.reporter.Report("offline state not saved", err.Error())
		}
		if result.Changed() {
			s.logger.Info("playlist synced", "playlist", id, "added", result.Added, "removed", result.Removed)
		}
		handled++
	}

	if handled > 0 {
		s.notify()
		s.tracks.Request()
	}
	sendProgress(s.progress, completeUpdate(LoopPlaylists, pass))
	return nil
}
