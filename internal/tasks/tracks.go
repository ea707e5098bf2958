package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/offline/internal/models"
	"github.com/desertthunder/offline/internal/offline"
	"github.com/desertthunder/offline/internal/services"
	"github.com/desertthunder/offline/internal/shared"
)

// Loop names
const (
	LoopTracks    = "tracks"
	LoopFavorites = "favorites"
	LoopPlaylists = "playlists"
	LoopAlbums    = "albums"
)

// TrackSync makes the offline directory match the desired tracks: it deletes files nobody wants
// and downloads desired tracks that are missing. Deletions finish before downloads start.
type TrackSync struct {
	store      *offline.Store
	disk       *offline.Disk
	fetcher    services.Fetcher
	reporter   shared.Reporter
	logger     *log.Logger
	notify     func()
	progress   chan<- ProgressUpdate
	retryDelay time.Duration
}

// Pass runs one reconciliation of disk against the store.
func (s *TrackSync) Pass(ctx context.Context, pass *models.Pass) error {
	desired := s.store.DesiredTracks()
	onDisk, err := s.disk.TrackIDs()
	if err != nil {
		s.reporter.Report("offline directory unreadable", err.Error())
		return err
	}

	wanted := make(map[string]struct{}, len(desired))
	var toAdd []models.Track
	for _, t := range desired {
		wanted[t.ID] = struct{}{}
		if _, ok := onDisk[t.ID]; !ok {
			toAdd = append(toAdd, t)
		}
	}

	var toRemove []string
	for id := range onDisk {
		if _, ok := wanted[id]; !ok {
			toRemove = append(toRemove, id)
		}
	}
	sort.Strings(toRemove)

	sendProgress(s.progress, planUpdate(len(toRemove), len(toAdd)))

	var deleted, downloaded, failed int
	defer func() { pass.SetCounts(deleted, downloaded, failed) }()

	for i, id := range toRemove {
		if err := ctx.Err(); err != nil {
			return err
		}
		// desired again since the snapshot
		if s.store.Contains(id) {
			continue
		}
		if err := s.disk.Remove(id); err != nil {
			s.reporter.Report("delete failed", fmt.Sprintf("%s: %v", id, err))
			failed++
			continue
		}
		deleted++
		sendProgress(s.progress, deleteUpdate(i+1, len(toRemove), id))
	}

	if len(toRemove) > 0 {
		s.disk.Invalidate()
		s.notify()
	}

	for i, t := range toAdd {
		if err := ctx.Err(); err != nil {
			return err
		}
		// released since the snapshot
		if !s.store.Contains(t.ID) {
			continue
		}

		err := s.download(ctx, t)
		switch {
		case err == nil:
			downloaded++
			sendProgress(s.progress, downloadUpdate(i+1, len(toAdd), t))
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, shared.ErrTrackUnavailable):
			s.reporter.Report("track unavailable", fmt.Sprintf("%s: %v", t.ID, err))
			failed++
			sendProgress(s.progress, downloadFailedUpdate(i+1, len(toAdd), t, err))
		default:
			s.reporter.Report("download failed", fmt.Sprintf("%s: %v", t.ID, err))
			failed++
			sendProgress(s.progress, downloadFailedUpdate(i+1, len(toAdd), t, err))
		}

		s.disk.Invalidate()
		s.notify()
	}

	pass.SetCounts(deleted, downloaded, failed)
	sendProgress(s.progress, completeUpdate(LoopTracks, pass))
	if deleted+downloaded+failed > 0 {
		s.logger.Info("tracks reconciled", "deleted", deleted, "downloaded", downloaded, "failed", failed)
	}
	return nil
}

// download resolves and fetches one track, retrying transient conflicts until success or cancellation.
func (s *TrackSync) download(ctx context.Context, t models.Track) error {
	url, err := s.fetcher.ResolveDownloadURL(ctx, t)
	if err != nil {
		return err
	}

	for attempt := 1; ; attempt++ {
		err := s.disk.Write(t.ID, func(w io.Writer) error {
			return s.fetcher.Download(ctx, url, w)
		})
		if !services.IsTransientConflict(err) {
			return err
		}

		s.logger.Debug("transient conflict, retrying", "track", t.ID, "attempt", attempt)
		sendProgress(s.progress, retryUpdate(t, attempt))

		timer := time.NewTimer(s.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
