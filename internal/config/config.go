// Package config provides configuration loading for factlog.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file looked up in the working directory when
// no --config flag is given.
const DefaultFile = "factlog.yaml"

// Config is the complete factlog configuration.
type Config struct {
	// Rules is the rule source file.
	Rules string `yaml:"rules"`
	// Schema is an optional CUE vocabulary file.
	Schema  string        `yaml:"schema"`
	Engine  EngineConfig  `yaml:"engine"`
	Log     LogConfig     `yaml:"log"`
	Journal JournalConfig `yaml:"journal"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// EngineConfig configures evaluation.
type EngineConfig struct {
	// MaxRoundsPerStratum bounds fixpoint rounds; 0 disables the bound.
	MaxRoundsPerStratum int `yaml:"max_rounds_per_stratum"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn or error
	Format string `yaml:"format"` // json or console
}

// JournalConfig configures the batch journal.
type JournalConfig struct {
	// Path is the SQLite journal file (empty = no journal)
	Path string `yaml:"path"`
}

// MetricsConfig configures Prometheus instruments.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns a Config with defaults.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{MaxRoundsPerStratum: 10000},
		Log:    LogConfig{Level: "warn", Format: "console"},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Engine.MaxRoundsPerStratum < 0 {
		return fmt.Errorf("engine.max_rounds_per_stratum must not be negative")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	return nil
}

// LoadFromFile reads the YAML file at path over the defaults.
// Unknown keys are errors. Relative paths in the file resolve against the
// file's directory.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	cfg.Rules = resolve(dir, cfg.Rules)
	cfg.Schema = resolve(dir, cfg.Schema)
	cfg.Journal.Path = resolve(dir, cfg.Journal.Path)
	return cfg, nil
}

// Load returns the validated configuration. An empty path loads DefaultFile
// if it exists and the defaults otherwise; an explicit path must exist.
func Load(path string) (*Config, error) {
	if path == "" {
		if _, err := os.Stat(DefaultFile); err != nil {
			return Default(), nil
		}
		path = DefaultFile
	}
	cfg, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// NewLogger builds a zap logger writing to stderr. verbose forces the
// debug level.
func (c LogConfig) NewLogger(verbose bool) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = zapcore.DebugLevel
	}

	var zc zap.Config
	if c.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.DisableStacktrace = true
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}
