// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Playback PlaybackConfig `yaml:"playback"`
	Spotify  SpotifyConfig  `yaml:"spotify"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr  string      `yaml:"addr" default:":8080"`
	Hooks HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// StoreConfig represents record store configuration.
type StoreConfig struct {
	Path string `yaml:"path" default:"queuesync.db" validate:"required"`
}

// PlaybackConfig represents playback configuration.
type PlaybackConfig struct {
	ProgressIntervalMs int  `yaml:"progress_interval_ms" default:"1000" validate:"gte=100,lte=10000"`
	BufferAheadMs      int  `yaml:"buffer_ahead_ms" default:"15000" validate:"gte=0,lte=600000"`
	SaveDebounceMs     int  `yaml:"save_debounce_ms" default:"500" validate:"gte=0,lte=60000"`
	GapCorrectionMs    int  `yaml:"gap_correction_ms" validate:"gte=0,lte=5000"`
	SkipRestore        bool `yaml:"skip_restore"`
}

// SpotifyConfig represents Spotify API configuration. The catalog is
// disabled when no credentials are set.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id" validate:"required_with=ClientSecret"`
	ClientSecret string `yaml:"client_secret" validate:"required_with=ClientID"`
	Market       string `yaml:"market" validate:"omitempty,len=2" default:"JP"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses configuration from YAML.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("QUEUESYNC_DB_PATH"); v != "" {
		c.Store.Path = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// HasSpotify reports whether Spotify credentials are configured.
func (c *Config) HasSpotify() bool {
	return c.Spotify.ClientID != "" && c.Spotify.ClientSecret != ""
}

// ProgressInterval returns the progress tick interval.
func (p PlaybackConfig) ProgressInterval() time.Duration {
	return time.Duration(p.ProgressIntervalMs) * time.Millisecond
}

// BufferAhead returns the simulated read-ahead.
func (p PlaybackConfig) BufferAhead() time.Duration {
	return time.Duration(p.BufferAheadMs) * time.Millisecond
}

// SaveDebounce returns the queue persistence debounce delay.
func (p PlaybackConfig) SaveDebounce() time.Duration {
	return time.Duration(p.SaveDebounceMs) * time.Millisecond
}

// GapCorrection returns the client drift compensation.
func (p PlaybackConfig) GapCorrection() time.Duration {
	return time.Duration(p.GapCorrectionMs) * time.Millisecond
}
