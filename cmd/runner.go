package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/offline/internal/services"
	"github.com/desertthunder/offline/internal/shared"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config    *shared.Config
	configSet bool
	catalog   services.Catalog
	fetcher   services.Fetcher
	fs        afero.Fs
	logger    *log.Logger
	output    io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
//
// A nil Config is read from the --config file on each command. A nil Catalog or Fetcher is built from
// the service section of that config.
type RunnerOpts struct {
	Config  *shared.Config
	Catalog services.Catalog
	Fetcher services.Fetcher
	Fs      afero.Fs
	Logger  *log.Logger
	Output  io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	configSet := opts.Config != nil
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}

	return &Runner{
		config:    opts.Config,
		configSet: configSet,
		catalog:   opts.Catalog,
		fetcher:   opts.Fetcher,
		fs:        opts.Fs,
		logger:    opts.Logger,
		output:    opts.Output,
	}
}

// SetLogger replaces the logger, e.g. when stderr belongs to the watch view.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:     "offline",
		Usage:    "Keep tracks, albums, playlists and favorites available offline",
		Version:  "0.1.0",
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, trackCommand, albumCommand, playlistCommand, favoritesCommand,
		syncCommand, refreshCommand, removeAllCommand, statusCommand, historyCommand, watchCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig returns the injected config, or reads the --config file when it exists.
func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	if !r.configSet {
		path := cmd.String("config")
		if _, err := os.Stat(path); err == nil {
			config, err := shared.LoadConfig(path)
			if err != nil {
				return nil, err
			}
			r.config = config
		} else {
			r.logger.Debug("config file not found, using defaults", "path", path)
		}
	}

	if err := r.config.Validate(); err != nil {
		return nil, err
	}

	level, err := shared.ParseLogLevel(r.config.Log.Level)
	if err != nil {
		return nil, err
	}
	shared.SetLogLevel(r.logger, level)
	return r.config, nil
}

// services returns the catalog and fetcher, building the HTTP client for whichever was not injected.
func (r *Runner) services(config *shared.Config) (services.Catalog, services.Fetcher) {
	catalog, fetcher := r.catalog, r.fetcher
	if catalog != nil && fetcher != nil {
		return catalog, fetcher
	}

	svc := services.NewHTTPService(config.Service)
	r.logger.Debug("using streaming service", "service", svc.Name(), "base_url", config.Service.BaseURL)
	if catalog == nil {
		catalog = svc
	}
	if fetcher == nil {
		fetcher = svc
	}
	return catalog, fetcher
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	return r.writeBytes(output)
}

func (r *Runner) writeBytes(output []byte) error {
	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
