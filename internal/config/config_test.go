package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/cssbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/cssbuilder/internal/pipeline"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, []string{"styles", "blocks"}, cfg.Roots)
	assert.Equal(t, []string{".css"}, cfg.Extensions)
	assert.Equal(t, []string{"node_modules", ".git", "__dropins__"}, cfg.Exclude)
	assert.Equal(t, pipeline.DefaultTargets, cfg.Pipeline.Targets)
	assert.Equal(t, pipeline.DefaultKeepPrefixes, cfg.Pipeline.KeepComments)
	assert.Equal(t, 200*time.Millisecond, cfg.Watch.Debounce)
	assert.Zero(t, cfg.Watch.ResyncInterval)
	assert.Equal(t, LogLevelInfo, cfg.Logging.Level)
	assert.Equal(t, LogFormatText, cfg.Logging.Format)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestParse(t *testing.T) {
	t.Setenv("CSSB_TEST_ROOT", "themes")
	data := []byte(`
roots: ["${CSSB_TEST_ROOT}", "blocks"]
exclude: [vendor]
pipeline:
  targets: [safari15]
  keep_comments: ["keep"]
watch:
  debounce: 350ms
  resync_interval: 1m
logging:
  level: DEBUG
  format: Pretty
metrics:
  enabled: true
  listen: ":9000"
`)

	cfg, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"themes", "blocks"}, cfg.Roots)
	assert.Equal(t, []string{"vendor"}, cfg.Exclude)
	assert.Equal(t, []string{".css"}, cfg.Extensions)
	assert.Equal(t, []string{"safari15"}, cfg.Pipeline.Targets)
	assert.Equal(t, []string{"keep"}, cfg.Pipeline.KeepComments)
	assert.Equal(t, pipeline.DefaultLowerFeatures, cfg.Pipeline.LowerFeatures)
	assert.Equal(t, 350*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, time.Minute, cfg.Watch.ResyncInterval)
	assert.Equal(t, LogLevelDebug, cfg.Logging.Level)
	assert.Equal(t, LogFormatPretty, cfg.Logging.Format)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9000", cfg.Metrics.Listen)
}

func TestParseValidation(t *testing.T) {
	cases := map[string]string{
		"bad target":    "pipeline:\n  targets: [mosaic1]\n",
		"bad feature":   "pipeline:\n  lower_features: [warp-drive]\n",
		"bad level":     "logging:\n  level: loud\n",
		"bad format":    "logging:\n  format: xml\n",
		"neg debounce":  "watch:\n  debounce: -1s\n",
		"neg resync":    "watch:\n  resync_interval: -1s\n",
		"empty root":    "roots: [\"\"]\n",
		"bad listen":    "metrics:\n  enabled: true\n  listen: nowhere\n",
		"invalid yaml":  "roots: [\n",
		"bad extension": "extensions: [\"a/b\"]\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(data))
			require.Error(t, err)
			assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig), "got %v", err)
		})
	}
}

func TestEnvOverridesLogLevel(t *testing.T) {
	t.Setenv(envLogLevel, "error")

	cfg, err := Parse([]byte("logging:\n  level: debug\n"))
	require.NoError(t, err)
	assert.Equal(t, LogLevelError, cfg.Logging.Level)
}

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))

	cfg, err := LoadOptional(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultRoots, cfg.Roots)
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	require.NoError(t, os.WriteFile(".env", []byte("CSSB_DOTENV_ROOT=from-dotenv\n"), 0o644))
	require.NoError(t, os.WriteFile("cssbuilder.yaml", []byte("roots: [\"${CSSB_DOTENV_ROOT}\"]\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv("CSSB_DOTENV_ROOT") })

	cfg, err := Load("cssbuilder.yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{"from-dotenv"}, cfg.Roots)
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultPath)

	require.NoError(t, Init(path, false))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Roots, cfg.Roots)
	assert.Equal(t, DefaultDebounce, cfg.Watch.Debounce)

	err = Init(path, false)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
	require.NoError(t, Init(path, true))
}

func TestLogLevelSlog(t *testing.T) {
	assert.Equal(t, "DEBUG", LogLevelDebug.Slog().String())
	assert.Equal(t, "WARN", LogLevel("warning").Slog().String())
	assert.Equal(t, "INFO", LogLevel("").Slog().String())
}
