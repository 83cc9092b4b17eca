package config

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// envFiles are loaded in order. godotenv never overrides a variable that is
// already set, so earlier files win.
var envFiles = []string{".env.local", ".env"}

// loadEnvFiles loads the env files that exist and ignores the rest.
func loadEnvFiles() {
	for _, path := range envFiles {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			slog.Warn("Failed to load env file", slog.String("path", path), slog.String("error", err.Error()))
			continue
		}
		slog.Debug("Loaded environment variables", slog.String("path", path))
	}
}

const (
	envLogLevel  = "CSSBUILDER_LOG_LEVEL"
	envLogFormat = "CSSBUILDER_LOG_FORMAT"
)

// applyEnvOverrides lets the environment override logging settings.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.Logging.Level = NormalizeLogLevel(v)
	}
	if v := os.Getenv(envLogFormat); v != "" {
		cfg.Logging.Format = LogFormat(v)
	}
}
