package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/offline/internal/offline"
	"github.com/desertthunder/offline/internal/repositories"
	"github.com/desertthunder/offline/internal/shared"
	"github.com/desertthunder/offline/internal/tasks"
)

// historyKeep is how many passes survive the prune at the end of a session.
const historyKeep = 500

// session is one command's view of the engine: the database, the lock on the offline directory and a coordinator.
type session struct {
	config   *shared.Config
	db       *sql.DB
	lock     *offline.Lock
	disk     *offline.Disk
	passes   *repositories.PassRepository
	reporter *shared.RecordingReporter
	coord    *tasks.Coordinator
}

// open loads config, migrates the database and builds a coordinator over it.
//
// Exclusive sessions hold the directory lock until Close; read-only commands skip it.
func (r *Runner) open(cmd *cli.Command, exclusive bool, opts ...tasks.Option) (*session, error) {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	s := &session{config: config}

	if exclusive {
		s.lock = offline.NewLock(config.Offline.Root)
		if err := s.lock.Acquire(); err != nil {
			return nil, err
		}
	}

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.db = db
	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	store := offline.Open(
		repositories.NewAggregateRepository(db),
		shared.WithLogger(r.logger, "component", "store"),
		offline.WithFavoritesDefault(config.Offline.Favorites),
	)
	s.disk = offline.NewDisk(r.fs, config.Offline.Root, config.Offline.Extension)
	s.passes = repositories.NewPassRepository(db)
	s.reporter = shared.NewRecordingReporter(shared.NewLogReporter(r.logger))

	catalog, fetcher := r.services(config)
	s.coord = tasks.NewCoordinator(store, s.disk, catalog, fetcher, append([]tasks.Option{
		tasks.WithLogger(r.logger),
		tasks.WithReporter(s.reporter),
		tasks.WithHistory(s.passes),
		tasks.WithRetryDelay(config.Offline.RetryDelay.Duration),
	}, opts...)...)

	return s, nil
}

// Close prunes pass history, closes the database and releases the lock.
func (s *session) Close() error {
	var errs []error
	if s.passes != nil && s.lock != nil {
		if _, err := s.passes.Prune(historyKeep); err != nil {
			errs = append(errs, err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.lock != nil {
		if err := s.lock.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// converge runs the loops until every one of them is idle, then stops them.
func (s *session) converge(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.coord.RequestSync()

	done := make(chan error, 1)
	go func() { done <- s.coord.Start(ctx) }()

	waitErr := s.coord.WaitIdle(ctx)
	cancel()

	if err := <-done; err != nil {
		return err
	}
	return waitErr
}
