package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rshade/corpusfork/internal/engine"
	"github.com/rshade/corpusfork/internal/engine/batch"
	"github.com/rshade/corpusfork/internal/engine/merge"
	"github.com/rshade/corpusfork/internal/engine/pool"
	"github.com/rshade/corpusfork/internal/logging"
)

// ErrInvalidConfig is wrapped by every validation error.
var ErrInvalidConfig = errors.New("invalid configuration")

// ConfigFileName is the name of the config file inside the config directory.
const ConfigFileName = "config.yaml"

// Config is the corpusfork configuration.
type Config struct {
	Pipeline PipelineConfig `yaml:"pipeline"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`

	// Requires is an optional semver constraint the running binary must satisfy.
	Requires string `yaml:"requires,omitempty"`

	configPath string
}

// PipelineConfig sizes the batch pipeline.
type PipelineConfig struct {
	Workers         int           `yaml:"workers"`
	BatchSize       int           `yaml:"batch_size"`
	QueueCapacity   int           `yaml:"queue_capacity"`
	ChannelCapacity int           `yaml:"channel_capacity"`
	Ordered         bool          `yaml:"ordered"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			Workers:         runtime.NumCPU(),
			BatchSize:       batch.DefaultBatchSize,
			QueueCapacity:   0,
			ChannelCapacity: merge.DefaultChannelCapacity,
			IdleTimeout:     pool.DefaultIdleTimeout,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: logging.FormatConsole,
		},
	}
}

// Load returns the defaults overlaid with the file at path.
func Load(path string) (*Config, error) {
	cfg := New()
	if err := ShallowMergeYAML(cfg, path); err != nil {
		return nil, err
	}
	cfg.configPath = path
	return cfg, nil
}

// LoadDefault loads the config file from the config directory. A missing file
// yields the defaults.
func LoadDefault() (*Config, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		cfg := New()
		cfg.configPath = path
		return cfg, nil
	}
	return Load(path)
}

// ConfigPath returns the file this config was loaded from or will be saved to.
func (c *Config) ConfigPath() string {
	return c.configPath
}

// SetConfigPath sets the file Save writes to.
func (c *Config) SetConfigPath(path string) {
	c.configPath = path
}

// Save writes the config as YAML to its config path.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.New("config path not set")
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err = os.MkdirAll(filepath.Dir(c.configPath), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err = os.WriteFile(c.configPath, data, 0o600); err != nil {
		return fmt.Errorf("writing config file %s: %w", c.configPath, err)
	}
	return nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.ToEngineConfig().Validate(); err != nil {
		return fmt.Errorf("%w: pipeline: %w", ErrInvalidConfig, err)
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if c.Requires != "" {
		if _, err := parseConstraint(c.Requires); err != nil {
			return err
		}
	}
	return nil
}

// ToEngineConfig converts the pipeline section to engine sizing.
func (c *Config) ToEngineConfig() engine.Config {
	return engine.Config{
		Workers:         c.Pipeline.Workers,
		QueueCapacity:   c.Pipeline.QueueCapacity,
		BatchSize:       c.Pipeline.BatchSize,
		ChannelCapacity: c.Pipeline.ChannelCapacity,
		Ordered:         c.Pipeline.Ordered,
		IdleTimeout:     c.Pipeline.IdleTimeout,
	}
}

// Validate checks the logging section.
func (lc LoggingConfig) Validate() error {
	if lc.Level != "" {
		if _, err := zerologLevel(lc.Level); err != nil {
			return fmt.Errorf("%w: logging.level %q: %w", ErrInvalidConfig, lc.Level, err)
		}
	}
	switch lc.Format {
	case "", logging.FormatConsole, logging.FormatJSON:
	default:
		return fmt.Errorf("%w: logging.format must be %q or %q, got %q",
			ErrInvalidConfig, logging.FormatConsole, logging.FormatJSON, lc.Format)
	}
	return nil
}

// DefaultConfigPath returns the config file inside the config directory.
func DefaultConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}
