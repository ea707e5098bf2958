package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/desertthunder/offline/internal/formatter"
	"github.com/desertthunder/offline/internal/offline"
	"github.com/desertthunder/offline/internal/server"
	"github.com/desertthunder/offline/internal/shared"
	"github.com/desertthunder/offline/internal/tasks"
	"github.com/desertthunder/offline/internal/ui"
)

const watchLogPath = "./tmp/offline-watch.log"

// Watch runs the loops until interrupted, refreshing on the configured interval and reacting to files changed by
// other programs. On a terminal it shows the watch view; otherwise progress is logged. When an address is
// configured the control API is served alongside.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	interactive := !cmd.Bool("plain") && formatter.ShouldColorize(r.output)
	if interactive {
		// Redirect logs to file to avoid interfering with the view
		fileLogger, err := shared.NewFileLogger(watchLogPath)
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		r.SetLogger(fileLogger)
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	notifier := ui.NewNotifier()
	progress := make(chan tasks.ProgressUpdate, 64)

	s, err := r.open(cmd, true,
		tasks.WithOnChange(notifier.Notify),
		tasks.WithProgress(progress),
		tasks.WithRefreshInterval(config.Offline.RefreshInterval.Duration),
	)
	if err != nil {
		return err
	}
	defer s.Close()

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return s.coord.Start(gctx) })

	if s.config.Offline.Watch {
		watcher, err := offline.NewWatcher(s.disk, shared.WithLogger(r.logger, "component", "watcher"), s.coord.RequestSync)
		if err != nil {
			stop()
			g.Wait()
			return err
		}
		defer watcher.Close()
		g.Go(func() error { return watcher.Run(gctx) })
	}

	listen := config.Offline.Listen
	if cmd.IsSet("listen") {
		listen = cmd.String("listen")
	}
	if listen != "" {
		logger := shared.WithLogger(r.logger, "component", "control")
		router := server.NewBasicRouter()
		router.Use(server.Recover(logger), server.Logging(logger))
		router.Handler(server.NewControlHandler(s.coord, s.passes, logger))
		g.Go(func() error { return server.Serve(gctx, listen, router, logger) })
	}

	s.coord.Refresh()

	if interactive {
		g.Go(func() error {
			defer stop()
			model := ui.NewModel(gctx, s.coord, notifier.C(), progress)
			if _, err := tea.NewProgram(model).Run(); err != nil {
				return fmt.Errorf("error running watch view: %w", err)
			}
			return nil
		})
	} else {
		r.logger.Info("watching", "root", s.config.Offline.Root, "refresh", config.Offline.RefreshInterval.Duration)
		g.Go(func() error {
			r.logProgress(gctx, progress)
			return nil
		})
	}

	return g.Wait()
}

// logProgress logs progress updates until ctx is done.
func (r *Runner) logProgress(ctx context.Context, progress <-chan tasks.ProgressUpdate) {
	for {
		select {
		case <-ctx.Done():
			return
		case update := <-progress:
			if update.Message == "" {
				continue
			}
			if update.Total > 0 {
				r.logger.Info(update.Message, "loop", update.Loop, "step", fmt.Sprintf("%d/%d", update.Step, update.Total))
			} else {
				r.logger.Info(update.Message, "loop", update.Loop)
			}
		}
	}
}
