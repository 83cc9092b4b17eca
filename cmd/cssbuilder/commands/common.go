// Package commands implements the cssbuilder CLI commands on top of kong.
package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/cssbuilder/internal/compiler"
	"git.home.luguber.info/inful/cssbuilder/internal/config"
	"git.home.luguber.info/inful/cssbuilder/internal/discovery"
	"git.home.luguber.info/inful/cssbuilder/internal/metrics"
	"git.home.luguber.info/inful/cssbuilder/internal/observability"
	"git.home.luguber.info/inful/cssbuilder/internal/pipeline"
)

// Global carries state shared by all commands.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config    string           `short:"c" help:"Configuration file path" default:"cssbuilder.yaml"`
	Verbose   bool             `short:"v" help:"Enable verbose logging"`
	Version   kong.VersionFlag `name:"version" help:"Show version and exit"`
	Roots     []string         `short:"r" name:"root" help:"Root directory to scan (repeatable; overrides config roots)"`
	LogFormat string           `name:"log-format" help:"Log output format (text|json|pretty)"`

	Build    BuildCmd    `cmd:"" default:"withargs" help:"Compile every source style sheet (default command)"`
	Discover DiscoverCmd `cmd:"" help:"List source style sheets and their output targets without compiling"`
	Init     InitCmd     `cmd:"" help:"Write an example configuration file"`

	stderr io.Writer `kong:"-"`
}

// AfterApply runs after flag parsing; sets up logging from flags and environment
// until the configuration is loaded.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := config.NormalizeLogLevel(os.Getenv("CSSBUILDER_LOG_LEVEL")).Slog()
	if c.Verbose {
		level = slog.LevelDebug
	}
	format := observability.Format(config.NormalizeLogFormat(c.LogFormat))
	slog.SetDefault(observability.Setup(c.errWriter(), level, format))
	return nil
}

func (c *CLI) errWriter() io.Writer {
	if c.stderr != nil {
		return c.stderr
	}
	return os.Stderr
}

// loadConfig loads the configuration file (optional when it is the default
// path), applies CLI overrides and reconfigures logging.
func (c *CLI) loadConfig(g *Global) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if c.Config == config.DefaultPath {
		cfg, err = config.LoadOptional(c.Config)
	} else {
		cfg, err = config.Load(c.Config)
	}
	if err != nil {
		return nil, err
	}

	if len(c.Roots) > 0 {
		cfg.Roots = c.Roots
	}
	if c.LogFormat != "" {
		cfg.Logging.Format = config.LogFormat(c.LogFormat)
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	level := cfg.Logging.Level.Slog()
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := observability.Setup(c.errWriter(), level, observability.Format(cfg.Logging.Format))
	slog.SetDefault(logger)
	if g != nil {
		g.Logger = logger
	}
	return cfg, nil
}

func newDiscovery(cfg *config.Config) *discovery.Discovery {
	return discovery.New(discovery.Options{Extensions: cfg.Extensions, Exclude: cfg.Exclude})
}

func newCompiler(cfg *config.Config, rec metrics.Recorder) (*compiler.Compiler, error) {
	p, err := pipeline.Default(pipeline.Options{
		Targets:       cfg.Pipeline.Targets,
		LowerFeatures: cfg.Pipeline.LowerFeatures,
		KeepComments:  cfg.Pipeline.KeepComments,
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("Pipeline ready", slog.Any("stages", p.StageNames()))
	return compiler.New(p, compiler.WithRecorder(rec)), nil
}
