package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/offline/internal/formatter"
	"github.com/desertthunder/offline/internal/shared"
	"github.com/desertthunder/offline/internal/tasks"
)

// Sync converges the offline directory on the persisted desired state.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	s, err := r.open(cmd, true)
	if err != nil {
		return err
	}
	defer s.Close()

	r.logger.Info("syncing", "root", s.config.Offline.Root)
	if err := s.converge(ctx); err != nil {
		return err
	}
	return r.summarize(s)
}

// Refresh re-fetches favorites, pinned playlists and unattached albums before converging.
func (r *Runner) Refresh(ctx context.Context, cmd *cli.Command) error {
	s, err := r.open(cmd, true)
	if err != nil {
		return err
	}
	defer s.Close()

	r.logger.Info("refreshing catalog")
	s.coord.Refresh()
	if err := s.converge(ctx); err != nil {
		return err
	}
	return r.summarize(s)
}

// RemoveAll forgets every pin and deletes every offline track.
func (r *Runner) RemoveAll(ctx context.Context, cmd *cli.Command) error {
	if !cmd.Bool("yes") {
		return fmt.Errorf("%w: pass --yes to delete every offline track", shared.ErrMissingArgument)
	}

	return r.mutate(ctx, cmd, func(c *tasks.Coordinator) error {
		r.logger.Warn("removing all offline content")
		return c.RemoveAll()
	})
}

// Status prints the desired state against the offline directory.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	s, err := r.open(cmd, false)
	if err != nil {
		return err
	}
	defer s.Close()

	st, err := s.coord.Status()
	if err != nil {
		return fmt.Errorf("failed to read offline directory: %w", err)
	}

	if cmd.Bool("json") {
		data, err := formatter.MarshalStatus(st)
		if err != nil {
			return err
		}
		return r.writeBytes(data)
	}
	return r.writePlain("%s", formatter.RenderStatus(st, formatter.ShouldColorize(r.output)))
}

// History lists recorded passes, newest first.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	s, err := r.open(cmd, false)
	if err != nil {
		return err
	}
	defer s.Close()

	passes, err := s.passes.List(map[string]any{
		"loop":   cmd.String("loop"),
		"status": cmd.String("status"),
		"limit":  int(cmd.Int("limit")),
	})
	if err != nil {
		return err
	}
	return r.writePlain("%s", formatter.RenderHistory(passes, time.Now()))
}
