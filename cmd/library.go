package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/offline/internal/models"
	"github.com/desertthunder/offline/internal/offline"
	"github.com/desertthunder/offline/internal/shared"
	"github.com/desertthunder/offline/internal/tasks"
)

// mutate applies fn under the directory lock, then converges unless --no-sync was given.
func (r *Runner) mutate(ctx context.Context, cmd *cli.Command, fn func(*tasks.Coordinator) error) error {
	s, err := r.open(cmd, true)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := fn(s.coord); err != nil {
		return err
	}

	if cmd.Bool("no-sync") {
		return r.writePlain("✓ Saved; run 'offline sync' to apply\n")
	}
	if err := s.converge(ctx); err != nil {
		return err
	}
	return r.summarize(s)
}

// summarize prints the outcome of a converge: what is on disk and anything that failed.
func (r *Runner) summarize(s *session) error {
	st, err := s.coord.Status()
	if err != nil {
		return err
	}

	if st.Converged() {
		r.writePlain("✓ %s tracks offline (%s)\n", humanize.Comma(int64(st.OnDisk)), humanize.IBytes(uint64(max(st.Bytes, 0))))
	} else {
		r.writePlain("! %d tracks still to download, %d to delete\n", st.PendingDownloads, st.Orphans)
	}

	reports := s.reporter.Reports()
	if len(reports) == 0 {
		return nil
	}
	r.writePlain("%d problems:\n", len(reports))
	for _, rep := range reports {
		r.writePlain("  - %s: %s\n", rep.Title, rep.Detail)
	}
	return nil
}

// tracksFromArgs builds streamable tracks from positional IDs.
func tracksFromArgs(cmd *cli.Command) ([]models.Track, error) {
	ids := cmd.Args().Slice()
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: at least one track ID", shared.ErrMissingArgument)
	}

	tracks := make([]models.Track, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if err := offline.ValidateTrackID(id); err != nil {
			return nil, err
		}
		tracks = append(tracks, models.Track{ID: id, Streamable: true})
	}
	return tracks, nil
}

// idArg returns the required "id" argument.
func idArg(cmd *cli.Command) (string, error) {
	id := strings.TrimSpace(cmd.StringArg("id"))
	if id == "" {
		return "", fmt.Errorf("%w: id", shared.ErrMissingArgument)
	}
	return id, nil
}

// AddTracks keeps individually saved tracks offline.
func (r *Runner) AddTracks(ctx context.Context, cmd *cli.Command) error {
	tracks, err := tracksFromArgs(cmd)
	if err != nil {
		return err
	}
	return r.mutate(ctx, cmd, func(c *tasks.Coordinator) error {
		r.logger.Info("adding tracks", "count", len(tracks))
		return c.AddTracks(tracks...)
	})
}

// RemoveTracks releases individually saved tracks.
func (r *Runner) RemoveTracks(ctx context.Context, cmd *cli.Command) error {
	tracks, err := tracksFromArgs(cmd)
	if err != nil {
		return err
	}
	return r.mutate(ctx, cmd, func(c *tasks.Coordinator) error {
		r.logger.Info("removing tracks", "count", len(tracks))
		return c.RemoveTracks(tracks...)
	})
}

// PinAlbum pins an album by ID.
func (r *Runner) PinAlbum(ctx context.Context, cmd *cli.Command) error {
	id, err := idArg(cmd)
	if err != nil {
		return err
	}
	album := models.Album{ID: id, Title: cmd.String("title"), Artist: cmd.String("artist")}
	return r.mutate(ctx, cmd, func(c *tasks.Coordinator) error {
		r.logger.Info("pinning album", "album", id)
		return c.PinAlbum(album)
	})
}

// UnpinAlbum unpins an album by ID.
func (r *Runner) UnpinAlbum(ctx context.Context, cmd *cli.Command) error {
	id, err := idArg(cmd)
	if err != nil {
		return err
	}
	return r.mutate(ctx, cmd, func(c *tasks.Coordinator) error {
		r.logger.Info("unpinning album", "album", id)
		return c.UnpinAlbum(id)
	})
}

// PinPlaylist pins a playlist by ID.
func (r *Runner) PinPlaylist(ctx context.Context, cmd *cli.Command) error {
	id, err := idArg(cmd)
	if err != nil {
		return err
	}
	playlist := models.Playlist{ID: id, Name: cmd.String("name")}
	return r.mutate(ctx, cmd, func(c *tasks.Coordinator) error {
		r.logger.Info("pinning playlist", "playlist", id)
		return c.PinPlaylist(playlist)
	})
}

// UnpinPlaylist unpins a playlist by ID.
func (r *Runner) UnpinPlaylist(ctx context.Context, cmd *cli.Command) error {
	id, err := idArg(cmd)
	if err != nil {
		return err
	}
	return r.mutate(ctx, cmd, func(c *tasks.Coordinator) error {
		r.logger.Info("unpinning playlist", "playlist", id)
		return c.UnpinPlaylist(id)
	})
}

// EnableFavorites turns on offline favorites.
func (r *Runner) EnableFavorites(ctx context.Context, cmd *cli.Command) error {
	return r.mutate(ctx, cmd, func(c *tasks.Coordinator) error {
		return c.SetFavoritesOfflineEnabled(true)
	})
}

// DisableFavorites turns off offline favorites.
func (r *Runner) DisableFavorites(ctx context.Context, cmd *cli.Command) error {
	return r.mutate(ctx, cmd, func(c *tasks.Coordinator) error {
		return c.SetFavoritesOfflineEnabled(false)
	})
}
