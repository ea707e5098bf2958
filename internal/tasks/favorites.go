package tasks

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/offline/internal/models"
	"github.com/desertthunder/offline/internal/offline"
	"github.com/desertthunder/offline/internal/services"
	"github.com/desertthunder/offline/internal/shared"
)

// FavoritesSync keeps the favorites' reference counts in step with the catalog.
type FavoritesSync struct {
	store    *offline.Store
	catalog  services.Catalog
	tracks   *Loop
	reporter shared.Reporter
	logger   *log.Logger
	notify   func()
	progress chan<- ProgressUpdate
}

// Pass fetches the favorites (or uses an empty list while favorites-offline is disabled), moves reference counts
// by the difference from the last snapshot and requests a track pass.
// A fetch failure changes nothing and requests nothing.
func (s *FavoritesSync) Pass(ctx context.Context, pass *models.Pass) error {
	var current []models.Track
	if s.store.FavoritesEnabled() {
		sendProgress(s.progress, fetchFavoritesUpdate())

		tracks, err := s.catalog.FavoriteTracks(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.reporter.Report("favorites fetch failed", err.Error())
			pass.SetCounts(0, 0, 1)
			return err
		}
		current = tracks
	}

	result, err := s.store.SyncFavorites(current)
	if err != nil {
		s.reporter.Report("offline state not saved", err.Error())
	}
	if result.Changed() {
		s.logger.Info("favorites synced", "added", result.Added, "removed", result.Removed)
		s.notify()
	}

	sendProgress(s.progress, completeUpdate(LoopFavorites, pass))
	s.tracks.Request()
	return nil
}
