package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Offline  OfflineConfig  `toml:"offline"`
	Database DatabaseConfig `toml:"database"`
	Service  ServiceConfig  `toml:"service"`
	Log      LogConfig      `toml:"log"`
}

// OfflineConfig controls where cached tracks live and how the reconciliation loops behave.
type OfflineConfig struct {
	Root            string   `toml:"root"`             // flat directory holding <id>.<ext> files
	Extension       string   `toml:"extension"`        // file extension without the dot
	Favorites       bool     `toml:"favorites"`        // initial favorites-offline flag for a fresh store
	RetryDelay      Duration `toml:"retry_delay"`      // pause between transient-conflict retries
	RefreshInterval Duration `toml:"refresh_interval"` // background favorites/playlist refresh, 0 disables
	Watch           bool     `toml:"watch"`            // watch the root for external changes
	Listen          string   `toml:"listen"`           // control API address for `watch`, empty disables
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServiceConfig contains the streaming service API settings.
type ServiceConfig struct {
	BaseURL           string   `toml:"base_url"`
	AccessToken       string   `toml:"access_token"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	Timeout           Duration `toml:"timeout"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// Duration is a [time.Duration] that decodes from TOML strings such as "1s" or "15m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("%w: duration %q", ErrInvalidConfig, string(text))
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks values that the engine cannot run without.
func (c *Config) Validate() error {
	switch {
	case c.Offline.Root == "":
		return fmt.Errorf("%w: offline.root is required", ErrInvalidConfig)
	case c.Offline.Extension == "" || strings.ContainsAny(c.Offline.Extension, `./\`):
		return fmt.Errorf("%w: offline.extension %q", ErrInvalidConfig, c.Offline.Extension)
	case c.Offline.RetryDelay.Duration < 0 || c.Offline.RefreshInterval.Duration < 0:
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig)
	case c.Database.Path == "":
		return fmt.Errorf("%w: database.path is required", ErrInvalidConfig)
	case c.Service.RequestsPerSecond < 0:
		return fmt.Errorf("%w: service.requests_per_second must not be negative", ErrInvalidConfig)
	}
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}
