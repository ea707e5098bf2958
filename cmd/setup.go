package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/offline/internal/shared"
)

// Setup creates the config file when missing, initializes the database and creates the offline directory.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	config := r.config
	if !r.configSet {
		if _, err := os.Stat(configPath); err == nil {
			if config, err = shared.LoadConfig(configPath); err != nil {
				return err
			}
		} else {
			r.logger.Info("config file not found, creating from template", "path", configPath)
			if err := shared.CreateConfigFile(configPath); err != nil {
				r.logger.Warn("failed to create config file, using defaults", "error", err)
				config = shared.DefaultConfig()
			} else {
				r.logger.Info("config file created", "path", configPath)
				if config, err = shared.LoadConfig(configPath); err != nil {
					return err
				}
			}
		}
		r.config = config
	}

	if err := config.Validate(); err != nil {
		return err
	}

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := r.fs.MkdirAll(config.Offline.Root, 0755); err != nil {
		return fmt.Errorf("failed to create offline directory: %w", err)
	}

	version, err := shared.SchemaVersion(db)
	if err != nil {
		return err
	}
	r.logger.Infof("setup complete for database: %v", config.Database.Path)

	r.writePlain("✓ Database ready at %s (schema v%d)\n", config.Database.Path, version)
	r.writePlain("✓ Offline directory: %s\n", config.Offline.Root)
	r.writePlain("\nNext steps:\n")
	r.writePlain("1. Set service.base_url and service.access_token in %s\n", configPath)
	r.writePlain("2. Run 'offline playlist pin <id>' or 'offline favorites enable'\n")
	return nil
}
