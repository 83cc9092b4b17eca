package build

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/cssbuilder/internal/discovery"
	ferrors "git.home.luguber.info/inful/cssbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/cssbuilder/internal/logfields"
	"git.home.luguber.info/inful/cssbuilder/internal/metrics"
	"git.home.luguber.info/inful/cssbuilder/internal/observability"
)

// FileCompiler compiles one source file. *compiler.Compiler implements it.
type FileCompiler interface {
	CompileFile(ctx context.Context, path string) bool
}

// Report is the outcome of a batch build.
type Report struct {
	Succeeded int
	Failed    int
	// Skipped counts files left uncompiled because the context was cancelled.
	Skipped  int
	Duration time.Duration
	RunID    string
	// Collisions lists the output collisions refused by the batch.
	Collisions []discovery.Collision

	interrupt error
}

// Total is the number of files the batch considered.
func (r Report) Total() int {
	return r.Succeeded + r.Failed + r.Skipped
}

// Err returns a classified build error when any file failed or was skipped,
// nil otherwise. An interrupted batch also matches the context error that
// stopped it.
func (r Report) Err() error {
	switch {
	case r.Failed > 0:
		msg := fmt.Sprintf("%d of %d files failed to compile", r.Failed, r.Total())
		if r.Skipped > 0 {
			msg += fmt.Sprintf(", %d skipped", r.Skipped)
		}
		return ferrors.WrapError(ErrBuildFailed, ferrors.CategoryBuild, msg).
			WithContext("run_id", r.RunID).
			Build()
	case r.Skipped > 0:
		cause := r.interrupt
		if cause == nil {
			cause = context.Canceled
		}
		return ferrors.WrapError(fmt.Errorf("%w: %w", ErrBuildInterrupted, cause), ferrors.CategoryBuild,
			fmt.Sprintf("build interrupted, %d of %d files not compiled", r.Skipped, r.Total())).
			WithContext("run_id", r.RunID).
			Build()
	}
	return nil
}

// Runner executes batch builds.
type Runner struct {
	discovery *discovery.Discovery
	compiler  FileCompiler
	recorder  metrics.Recorder
	newRunID  func() string
}

// NewRunner creates a Runner that discovers with d and compiles with c.
func NewRunner(d *discovery.Discovery, c FileCompiler) *Runner {
	return &Runner{
		discovery: d,
		compiler:  c,
		recorder:  metrics.NoopRecorder{},
		newRunID:  uuid.NewString,
	}
}

// WithRecorder sets the metrics recorder.
func (r *Runner) WithRecorder(rec metrics.Recorder) *Runner {
	r.recorder = metrics.OrNoop(rec)
	return r
}

// RunAll discovers once over roots and compiles every file in discovery order.
// Files whose outputs collide are counted as failed without being compiled.
func (r *Runner) RunAll(ctx context.Context, roots []string) Report {
	start := time.Now()
	report := Report{RunID: r.newRunID()}
	ctx = observability.WithRunID(ctx, report.RunID)

	files := r.discovery.Discover(roots)
	if len(files) == 0 {
		logNothingFound(ctx, roots)
		report.Duration = time.Since(start)
		r.record(report)
		return report
	}

	observability.InfoContext(ctx, fmt.Sprintf("Found %d source file(s)", len(files)), logfields.Count(len(files)))
	for _, f := range files {
		observability.InfoContext(ctx, "Source file", logfields.Path(f.RelativePath), logfields.Root(f.Root))
	}

	report.Collisions = discovery.FindCollisions(files)
	colliding := CollidingPaths(report.Collisions)
	for _, c := range report.Collisions {
		observability.ErrorContext(ctx, "Output collision, refusing to compile", logfields.Output(c.Target), logfields.Error(c.Err()))
	}
	for _, c := range discovery.FindCaseConflicts(files) {
		observability.WarnContext(ctx, "Output targets differ only by case and overwrite each other on case-insensitive filesystems",
			logfields.Output(c.Target), slog.Any("sources", c.Paths()))
	}

	for i, f := range files {
		if colliding[f.Path] {
			report.Failed++
			continue
		}
		if err := ctx.Err(); err != nil {
			report.Skipped = len(files) - i
			report.interrupt = err
			observability.WarnContext(ctx, "Batch build interrupted", logfields.Count(report.Skipped))
			break
		}
		if r.compiler.CompileFile(ctx, f.Path) {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}

	report.Duration = time.Since(start)
	r.record(report)
	logSummary(ctx, report)
	return report
}

// CollidingPaths returns the set of source paths involved in any collision.
func CollidingPaths(collisions []discovery.Collision) map[string]bool {
	paths := make(map[string]bool)
	for _, c := range collisions {
		for _, s := range c.Sources {
			paths[s.Path] = true
		}
	}
	return paths
}

func (r *Runner) record(report Report) {
	r.recorder.ObserveBatchDuration(report.Duration)
	r.recorder.SetBatchFiles(report.Succeeded, report.Failed)
}

func logNothingFound(ctx context.Context, roots []string) {
	observability.WarnContext(ctx, "No source style sheets found", slog.Any("roots", roots))
	observability.InfoContext(ctx, "Expected layouts: styles/source/<name>.css -> styles/<name>.css")
	observability.InfoContext(ctx, "Expected layouts: blocks/<block>/source/<block>.css -> blocks/<block>/<block>.css")
}

func logSummary(ctx context.Context, report Report) {
	attrs := []slog.Attr{
		slog.Int("succeeded", report.Succeeded),
		slog.Int("failed", report.Failed),
		logfields.Duration(report.Duration),
	}
	if report.Skipped > 0 {
		attrs = append(attrs, slog.Int("skipped", report.Skipped))
	}
	msg := fmt.Sprintf("Build complete: %d compiled, %d failed", report.Succeeded, report.Failed)
	if report.Failed > 0 {
		observability.WarnContext(ctx, msg, attrs...)
		return
	}
	observability.InfoContext(ctx, msg, attrs...)
}
