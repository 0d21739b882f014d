// Package config loads introstore settings from a YAML file and the environment.
//
// Precedence, lowest first: built-in defaults, the config file, INTROSTORE_*
// environment variables. Command-line flags are applied on top by the CLI.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	EnvDatabase      = "INTROSTORE_DATABASE"
	EnvPoolSize      = "INTROSTORE_POOL_SIZE"
	EnvSweepInterval = "INTROSTORE_SWEEP_INTERVAL"
	EnvLogLevel      = "INTROSTORE_LOG_LEVEL"
)

// Config holds all introstore settings.
type Config struct {
	// Database is the path of the SQLite database file.
	Database string `yaml:"database"`

	// PoolSize is how many unsolved foreign puzzles a trim keeps.
	PoolSize int `yaml:"pool_size"`

	// SweepInterval is the time between maintenance passes.
	SweepInterval time.Duration `yaml:"sweep_interval"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Database:      "introstore.db",
		PoolSize:      100,
		SweepInterval: 10 * time.Minute,
		LogLevel:      "info",
	}
}

// Load reads the config file at path (skipped if path is empty), applies
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		// Reject unknown fields so typos in key names are caught.
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv(EnvDatabase); ok && v != "" {
		c.Database = v
	}
	if v, ok := os.LookupEnv(EnvPoolSize); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPoolSize, err)
		}
		c.PoolSize = n
	}
	if v, ok := os.LookupEnv(EnvSweepInterval); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvSweepInterval, err)
		}
		c.SweepInterval = d
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
	return nil
}

// Validate checks that every setting is usable.
func (c Config) Validate() error {
	if c.Database == "" {
		return errors.New("database is required")
	}
	if c.PoolSize < 0 {
		return fmt.Errorf("pool_size must not be negative, got %d", c.PoolSize)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep_interval must be positive, got %s", c.SweepInterval)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level converts LogLevel to a slog level.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}
