package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/cssbuilder/internal/build"
	"git.home.luguber.info/inful/cssbuilder/internal/config"
	ferrors "git.home.luguber.info/inful/cssbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/cssbuilder/internal/logfields"
	"git.home.luguber.info/inful/cssbuilder/internal/metrics"
	"git.home.luguber.info/inful/cssbuilder/internal/watch"
)

// BuildCmd implements the default command: a batch build, or watch mode with --watch.
type BuildCmd struct {
	Watch bool `short:"w" help:"Watch source files and recompile on change until interrupted"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if b.Watch {
		return RunWatch(ctx, cfg)
	}
	return RunBuild(ctx, cfg)
}

// RunBuild compiles every discovered file once. It returns a build error when
// any file failed.
func RunBuild(ctx context.Context, cfg *config.Config) error {
	c, err := newCompiler(cfg, nil)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid pipeline configuration").Build()
	}
	report := build.NewRunner(newDiscovery(cfg), c).RunAll(ctx, cfg.Roots)
	return report.Err()
}

// RunWatch builds once and then recompiles changed files until ctx is cancelled.
func RunWatch(ctx context.Context, cfg *config.Config) error {
	var rec metrics.Recorder = metrics.NoopRecorder{}
	if cfg.Metrics.Enabled {
		reg := prom.NewRegistry()
		rec = metrics.NewPrometheusRecorder(reg)
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Listen, reg); err != nil {
				slog.Error("Metrics endpoint failed", slog.String("addr", cfg.Metrics.Listen), logfields.Error(err))
			}
		}()
	}

	c, err := newCompiler(cfg, rec)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid pipeline configuration").Build()
	}
	engine := watch.New(watch.Options{
		Roots:          cfg.Roots,
		Debounce:       cfg.Watch.Debounce,
		ResyncInterval: cfg.Watch.ResyncInterval,
		Recorder:       rec,
	}, newDiscovery(cfg), c)
	defer engine.Close()

	return engine.Run(ctx)
}
