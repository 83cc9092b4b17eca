package config

import (
	"slices"
	"time"

	"git.home.luguber.info/inful/cssbuilder/internal/discovery"
	"git.home.luguber.info/inful/cssbuilder/internal/pipeline"
)

// DefaultRoots are the directories scanned when none are configured.
var DefaultRoots = []string{"styles", "blocks"}

const (
	DefaultDebounce      = 200 * time.Millisecond
	DefaultMetricsListen = "127.0.0.1:9464"
)

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config)
	Domain() string
}

// appliers run in order on every loaded configuration.
var appliers = []DefaultApplier{
	discoveryDefaults{},
	pipelineDefaults{},
	watchDefaults{},
	loggingDefaults{},
	metricsDefaults{},
}

func applyDefaults(cfg *Config) {
	for _, a := range appliers {
		a.ApplyDefaults(cfg)
	}
}

type discoveryDefaults struct{}

func (discoveryDefaults) Domain() string { return "discovery" }

func (discoveryDefaults) ApplyDefaults(cfg *Config) {
	if len(cfg.Roots) == 0 {
		cfg.Roots = slices.Clone(DefaultRoots)
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = slices.Clone(discovery.DefaultExtensions)
	}
	if len(cfg.Exclude) == 0 {
		cfg.Exclude = slices.Clone(discovery.DefaultExclude)
	}
}

type pipelineDefaults struct{}

func (pipelineDefaults) Domain() string { return "pipeline" }

func (pipelineDefaults) ApplyDefaults(cfg *Config) {
	if len(cfg.Pipeline.Targets) == 0 {
		cfg.Pipeline.Targets = slices.Clone(pipeline.DefaultTargets)
	}
	if len(cfg.Pipeline.KeepComments) == 0 {
		cfg.Pipeline.KeepComments = slices.Clone(pipeline.DefaultKeepPrefixes)
	}
	if len(cfg.Pipeline.LowerFeatures) == 0 {
		cfg.Pipeline.LowerFeatures = slices.Clone(pipeline.DefaultLowerFeatures)
	}
}

type watchDefaults struct{}

func (watchDefaults) Domain() string { return "watch" }

func (watchDefaults) ApplyDefaults(cfg *Config) {
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = DefaultDebounce
	}
}

type loggingDefaults struct{}

func (loggingDefaults) Domain() string { return "logging" }

func (loggingDefaults) ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = LogLevelInfo
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = LogFormatText
	}
}

type metricsDefaults struct{}

func (metricsDefaults) Domain() string { return "metrics" }

func (metricsDefaults) ApplyDefaults(cfg *Config) {
	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = DefaultMetricsListen
	}
}
