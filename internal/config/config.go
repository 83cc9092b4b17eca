// Package config loads cssbuilder.yaml, applies defaults and validates the result.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/cssbuilder/internal/foundation/errors"
)

// DefaultPath is the configuration file looked up when none is given.
const DefaultPath = "cssbuilder.yaml"

// Config represents the application configuration.
type Config struct {
	Roots      []string       `yaml:"roots"`
	Extensions []string       `yaml:"extensions,omitempty"`
	Exclude    []string       `yaml:"exclude,omitempty"`
	Pipeline   PipelineConfig `yaml:"pipeline"`
	Watch      WatchConfig    `yaml:"watch"`
	Logging    LoggingConfig  `yaml:"logging"`
	Metrics    MetricsConfig  `yaml:"metrics"`
}

// PipelineConfig configures the transformation stages.
type PipelineConfig struct {
	Targets       []string `yaml:"targets,omitempty"`        // Browser targets for prefixing, e.g. "safari14"
	KeepComments  []string `yaml:"keep_comments,omitempty"`  // Comment prefixes that survive compilation
	LowerFeatures []string `yaml:"lower_features,omitempty"` // Features lowered regardless of targets
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	Debounce       time.Duration `yaml:"debounce"`
	ResyncInterval time.Duration `yaml:"resync_interval,omitempty"` // 0 disables periodic resync
}

// LoggingConfig configures diagnostics output.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// MetricsConfig configures the Prometheus endpoint served in watch mode.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen,omitempty"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads, expands, defaults and validates the configuration at configPath.
// A missing file is a classified not-found error.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ferrors.WrapError(err, ferrors.CategoryNotFound, "configuration file not found").
				WithContext("path", configPath).Build()
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to read config file").
			WithContext("path", configPath).Build()
	}
	return Parse(data)
}

// LoadOptional is Load, but a missing file yields the defaults.
func LoadOptional(configPath string) (*Config, error) {
	cfg, err := Load(configPath)
	if ferrors.HasCategory(err, ferrors.CategoryNotFound) {
		slog.Debug("No configuration file, using defaults", slog.String("path", configPath))
		cfg = Default()
		applyEnvOverrides(cfg)
		if err := ValidateConfig(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return cfg, err
}

// Parse builds a Config from YAML, expanding ${VAR} references from the environment.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to unmarshal config").Build()
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return ferrors.ValidationError(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", configPath)).Build()
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "failed to marshal config").Build()
	}
	content := append([]byte(exampleHeader), data...)

	if err := os.WriteFile(configPath, content, 0o644); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to write config file").
			WithContext("path", configPath).Build()
	}
	return nil
}

const exampleHeader = `# cssbuilder configuration.
#
# Style sheets in <root>/**/source/<name>.css compile to <root>/**/<name>.css.
# Values may reference environment variables as ${VAR}; .env and .env.local are
# loaded first without overriding the process environment.
`
