package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"angrydb/internal/logging"
)

// Storage engines understood by store.Open.
const (
	EngineBolt   = "bolt"
	EngineBadger = "badger"
)

// DefaultMinFlushIntervalMS is the minimum spacing between two flushes.
const DefaultMinFlushIntervalMS = 2000

type Config struct {
	Storage    StorageConfig    `toml:"storage"`
	Workers    WorkersConfig    `toml:"workers"`
	Durability DurabilityConfig `toml:"durability"`
	Logging    LoggingConfig    `toml:"logging"`
}

type StorageConfig struct {
	Engine string `toml:"engine"`
	Path   string `toml:"path"`
	Bucket string `toml:"bucket"` // bolt only
}

// WorkersConfig sizes the blocking-call pool. Zero values pick defaults:
// Size falls back to the available parallelism, Queue to Size*64.
type WorkersConfig struct {
	Size  int `toml:"size"`
	Queue int `toml:"queue"`
}

type DurabilityConfig struct {
	MinFlushIntervalMS int `toml:"min_flush_interval_ms"`
}

// MinFlushInterval returns the configured interval as a time.Duration.
func (d DurabilityConfig) MinFlushInterval() time.Duration {
	return time.Duration(d.MinFlushIntervalMS) * time.Millisecond
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Defaults returns a Config with sane defaults.
func Defaults() *Config {
	return &Config{
		Storage: StorageConfig{
			Engine: EngineBolt,
			Path:   "~/.angrydb/data.db",
			Bucket: "kv",
		},
		Durability: DurabilityConfig{
			MinFlushIntervalMS: DefaultMinFlushIntervalMS,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a TOML config file and returns the parsed Config.
// If path is empty, the default location is tried and defaults are
// returned when it does not exist.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = expandHome("~/.angrydb/config.toml")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Validate checks the config for values the layer cannot run with.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Engine {
	case EngineBolt:
		if c.Storage.Bucket == "" {
			errs = append(errs, errors.New("storage.bucket must not be empty for bolt"))
		}
	case EngineBadger:
	default:
		errs = append(errs, fmt.Errorf("storage.engine: unknown engine %q (want %s or %s)",
			c.Storage.Engine, EngineBolt, EngineBadger))
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		errs = append(errs, errors.New("storage.path must not be empty"))
	}
	if c.Workers.Size < 0 {
		errs = append(errs, fmt.Errorf("workers.size: must be >= 0, got %d", c.Workers.Size))
	}
	if c.Workers.Queue < 0 {
		errs = append(errs, fmt.Errorf("workers.queue: must be >= 0, got %d", c.Workers.Queue))
	}
	if c.Durability.MinFlushIntervalMS < 0 {
		errs = append(errs, fmt.Errorf("durability.min_flush_interval_ms: must be >= 0, got %d",
			c.Durability.MinFlushIntervalMS))
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format: unknown format %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// ExpandHome resolves a leading ~/ to the user's home directory.
func ExpandHome(path string) string {
	return expandHome(path)
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
