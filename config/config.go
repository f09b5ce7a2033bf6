// Package config loads locus settings from YAML or JSON files and the
// environment.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/locus/roots"
)

// Config holds all locus configuration.
type Config struct {
	// Package is the package directory name substituted for {PKGDIR}.
	Package string `yaml:"package" json:"package"`

	// LibDir is the library root substituted for {LIBDIR}.
	LibDir string `yaml:"lib_dir,omitempty" json:"lib_dir,omitempty"`

	// RootsFile is a root map loaded on top of the baseline roots.
	RootsFile string `yaml:"roots_file,omitempty" json:"roots_file,omitempty"`

	// Roots are additional roots, registered in order.
	Roots []Root `yaml:"roots,omitempty" json:"roots,omitempty"`

	Cache   CacheConfig   `yaml:"cache" json:"cache"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// Root is a named root template or alias.
type Root struct {
	Name     string `yaml:"name" json:"name"`
	Template string `yaml:"template" json:"template"`
}

// CacheConfig configures the persistence store.
type CacheConfig struct {
	// Dir holds cached artifacts. Empty means the logical var/cache/persistence.
	Dir string `yaml:"dir,omitempty" json:"dir,omitempty"`
	// LockDir holds lock files. Empty means the logical tmp/persist_locks.
	LockDir string `yaml:"lock_dir,omitempty" json:"lock_dir,omitempty"`

	MaxBackgroundWriters int64 `yaml:"max_background_writers" json:"max_background_writers"`
	IOLimitBytesPerSec   int64 `yaml:"io_limit_bytes_per_sec" json:"io_limit_bytes_per_sec"`
	MaxBuffered          int64 `yaml:"max_buffered" json:"max_buffered"`

	// MaxMemoryEntries bounds the in-process index of the memory type.
	// Zero means unbounded.
	MaxMemoryEntries int `yaml:"max_memory_entries,omitempty" json:"max_memory_entries,omitempty"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Package: "locus",
		Cache: CacheConfig{
			MaxBackgroundWriters: 8,
			MaxBuffered:          16 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from path. JSON and JSONC are recognized by
// extension and everything else is read as YAML. A missing file yields the
// defaults. Environment variables override file values.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		err = json.Unmarshal(jsonc.ToJSON(data), cfg)
	default:
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// FromEnv returns the defaults with environment overrides applied.
func FromEnv() *Config {
	cfg := DefaultConfig()
	cfg.applyEnvOverrides()
	return cfg
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("LOCUS_CACHE_DIR"); dir != "" {
		c.Cache.Dir = dir
	}
	if dir := os.Getenv("LOCUS_LOCK_DIR"); dir != "" {
		c.Cache.LockDir = dir
	}
	if path := os.Getenv("LOCUS_ROOTS_FILE"); path != "" {
		c.RootsFile = path
	}
	if pkg := os.Getenv("LOCUS_PKGDIR"); pkg != "" {
		c.Package = pkg
	}
	if lib := os.Getenv("LOCUS_LIBDIR"); lib != "" {
		c.LibDir = lib
	}
	if level := os.Getenv("LOCUS_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if format := os.Getenv("LOCUS_LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}
}

// ValidFormats lists the supported log formats.
var ValidFormats = []string{"text", "json"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Package == "" {
		return fmt.Errorf("package name not configured (set LOCUS_PKGDIR)")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}

	validFormat := false
	for _, f := range ValidFormats {
		if c.Logging.Format == f {
			validFormat = true
			break
		}
	}
	if !validFormat {
		return fmt.Errorf("invalid log format: %s (valid: %v)", c.Logging.Format, ValidFormats)
	}

	if c.Cache.MaxBackgroundWriters < 0 || c.Cache.IOLimitBytesPerSec < 0 || c.Cache.MaxBuffered < 0 || c.Cache.MaxMemoryEntries < 0 {
		return fmt.Errorf("cache limits must not be negative")
	}

	for _, r := range c.Roots {
		if !roots.ValidName(r.Name) {
			return fmt.Errorf("%w: %q", roots.ErrInvalidRootName, r.Name)
		}
	}
	return nil
}

// SlogLevel parses the configured log level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	return level, nil
}
