package config

import (
	"fmt"
	"strings"

	ferrors "git.home.luguber.info/inful/cssbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/cssbuilder/internal/pipeline"
)

// ValidateConfig checks a defaulted configuration and normalizes enum fields in place.
func ValidateConfig(cfg *Config) error {
	for _, check := range []func(*Config) error{
		validateRoots,
		validatePipeline,
		validateWatch,
		validateLogging,
		validateMetrics,
	} {
		if err := check(cfg); err != nil {
			return err
		}
	}
	return nil
}

func validateRoots(cfg *Config) error {
	for i, r := range cfg.Roots {
		if strings.TrimSpace(r) == "" {
			return ferrors.ConfigError(fmt.Sprintf("roots[%d] is empty", i)).Build()
		}
	}
	for _, ext := range cfg.Extensions {
		if strings.TrimSpace(ext) == "" || strings.ContainsAny(ext, `/\`) {
			return ferrors.ConfigError(fmt.Sprintf("invalid extension %q", ext)).Build()
		}
	}
	return nil
}

func validatePipeline(cfg *Config) error {
	if _, err := pipeline.ParseTargets(cfg.Pipeline.Targets); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid pipeline.targets").Build()
	}
	if err := pipeline.ValidateLowerFeatures(cfg.Pipeline.LowerFeatures); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid pipeline.lower_features").Build()
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce < 0 {
		return ferrors.ConfigError("watch.debounce must be positive").
			WithContext("debounce", cfg.Watch.Debounce.String()).Build()
	}
	if cfg.Watch.ResyncInterval < 0 {
		return ferrors.ConfigError("watch.resync_interval must not be negative").
			WithContext("resync_interval", cfg.Watch.ResyncInterval.String()).Build()
	}
	return nil
}

func validateLogging(cfg *Config) error {
	level, err := logLevelNormalizer.NormalizeWithError(string(cfg.Logging.Level))
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid logging.level").Build()
	}
	format, err := logFormatNormalizer.NormalizeWithError(string(cfg.Logging.Format))
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid logging.format").Build()
	}
	cfg.Logging.Level, cfg.Logging.Format = level, format
	return nil
}

func validateMetrics(cfg *Config) error {
	if cfg.Metrics.Enabled && !strings.Contains(cfg.Metrics.Listen, ":") {
		return ferrors.ConfigError(fmt.Sprintf("metrics.listen must be host:port, got %q", cfg.Metrics.Listen)).Build()
	}
	return nil
}
