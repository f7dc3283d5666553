/*
Package config
File: config.go
Description:
    Loads server, model and level configuration from YAML.
    Embedded defaults are loaded first; a user file only overrides what it sets.
*/

package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/everforgeworks/plantsim/internal/game"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds the complete server configuration.
type Config struct {
	Server      ServerConfig        `yaml:"server"`
	Model       game.ModelParams    `yaml:"model"`
	Weather     []game.WeatherState `yaml:"weather"`
	Levels      []game.Level        `yaml:"levels"`
	Telemetry   TelemetryConfig     `yaml:"telemetry"`
	Leaderboard LeaderboardConfig   `yaml:"leaderboard"`
}

// ServerConfig holds transport and session lifecycle settings.
type ServerConfig struct {
	Port          int           `yaml:"port"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	ReapInterval  time.Duration `yaml:"reap_interval"`
	ReadLimit     int64         `yaml:"read_limit"`
	AllowedOrigin string        `yaml:"allowed_origin"`
}

// TelemetryConfig controls the CSV tick log.
type TelemetryConfig struct {
	Dir    string `yaml:"dir"`    // Output directory, empty = disabled
	Buffer int    `yaml:"buffer"` // Length of the shared tick log queue
}

// LeaderboardConfig selects the summary store.
type LeaderboardConfig struct {
	Backend    string `yaml:"backend"` // "memory" or "sqlite"
	SQLitePath string `yaml:"sqlite_path"`
	Top        int    `yaml:"top"` // Entries broadcast after a session ends
}

// Default returns the embedded defaults.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("embedded defaults: %v", err))
	}
	return cfg
}

// Load reads configuration from a YAML file, merged over the embedded defaults.
// An empty path returns the defaults alone.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only overwrites fields present in the file.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyShared()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyShared hands the shared weather table to cycle levels without their own.
func (c *Config) applyShared() {
	for i := range c.Levels {
		env := &c.Levels[i].Environment
		if env.Mode == "cycle" && len(env.Weather) == 0 {
			env.Weather = append([]game.WeatherState(nil), c.Weather...)
		}
	}
}

// Validate checks the settings the server cannot run without.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if len(c.Levels) == 0 {
		return fmt.Errorf("%w: at least one level is required", ErrInvalidConfig)
	}
	seen := make(map[string]bool, len(c.Levels))
	for _, l := range c.Levels {
		if l.Name == "" {
			return fmt.Errorf("%w: level without a name", ErrInvalidConfig)
		}
		if seen[l.Name] {
			return fmt.Errorf("%w: duplicate level %q", ErrInvalidConfig, l.Name)
		}
		seen[l.Name] = true
	}
	if c.Model.MaxRelativeGrowth < 0 || c.Model.PhotosynthesisRate < 0 || c.Model.MinPoolCapacity < 0 {
		return fmt.Errorf("%w: model rates must not be negative", ErrInvalidConfig)
	}
	switch c.Leaderboard.Backend {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("%w: unknown leaderboard backend %q", ErrInvalidConfig, c.Leaderboard.Backend)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// WriteYAML writes the config to a file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
