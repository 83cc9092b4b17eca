// Package compiler turns one source style sheet into its compiled sibling. It is
// the only writer of output files; batch builds and the watcher both go through it.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/cssbuilder/internal/discovery"
	ferrors "git.home.luguber.info/inful/cssbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/cssbuilder/internal/logfields"
	"git.home.luguber.info/inful/cssbuilder/internal/metrics"
	"git.home.luguber.info/inful/cssbuilder/internal/observability"
	"git.home.luguber.info/inful/cssbuilder/internal/pipeline"
)

// Transformer is the text pipeline a Compiler runs. *pipeline.Pipeline implements it.
type Transformer interface {
	Compile(ctx context.Context, src, from, to string) (string, error)
}

// Compiler compiles single files.
type Compiler struct {
	pipeline Transformer
	recorder metrics.Recorder
}

// Option customizes a Compiler.
type Option func(*Compiler)

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(c *Compiler) { c.recorder = metrics.OrNoop(r) }
}

// New returns a Compiler running p.
func New(p Transformer, opts ...Option) *Compiler {
	c := &Compiler{pipeline: p, recorder: metrics.NoopRecorder{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CompileFile compiles path and writes its output target. Every failure is logged
// with the file path and reported as false; it never panics.
func (c *Compiler) CompileFile(ctx context.Context, path string) bool {
	return c.run(ctx, path, func(ctx context.Context) (string, error) {
		return c.Compile(ctx, path)
	})
}

// CompileSource is CompileFile for contents the caller already read, so the
// compiled text is exactly what the caller checked.
func (c *Compiler) CompileSource(ctx context.Context, path string, src []byte) bool {
	return c.run(ctx, path, func(ctx context.Context) (string, error) {
		return c.compileSource(ctx, filepath.Clean(path), src)
	})
}

func (c *Compiler) run(ctx context.Context, path string, compile func(context.Context) (string, error)) (ok bool) {
	start := time.Now()
	ctx = observability.WithPath(ctx, path)

	defer func() {
		if r := recover(); r != nil {
			observability.ErrorContext(ctx, "Compile panicked", slog.Any("panic", r))
			c.recorder.IncCompileResult(metrics.ResultFailed)
			ok = false
		}
	}()

	output, err := compile(ctx)
	elapsed := time.Since(start)
	c.recorder.ObserveCompileDuration(elapsed)

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			c.recorder.IncCompileResult(metrics.ResultCanceled)
			observability.DebugContext(ctx, "Compile canceled")
			return false
		}
		c.recorder.IncCompileResult(metrics.ResultFailed)
		c.logFailure(ctx, err)
		return false
	}

	c.recorder.IncCompileResult(metrics.ResultSuccess)
	observability.InfoContext(ctx, "Compiled", logfields.Output(output), logfields.Duration(elapsed))
	return true
}

// Compile does the work of CompileFile and returns the output path written, or a
// classified error.
func (c *Compiler) Compile(ctx context.Context, path string) (string, error) {
	path = filepath.Clean(path)

	// Re-stat right before reading: the file may have vanished since it was queued.
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ferrors.WrapError(err, ferrors.CategoryNotFound, "source file not found").
				WithContext("path", path).Build()
		}
		return "", ferrors.WrapError(err, ferrors.CategoryFileSystem, "cannot stat source file").
			WithContext("path", path).Build()
	}
	if info.IsDir() {
		return "", ferrors.FileSystemError("source path is a directory").WithContext("path", path).Build()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to read source file").
			WithContext("path", path).Build()
	}
	return c.compileSource(ctx, path, data)
}

func (c *Compiler) compileSource(ctx context.Context, path string, data []byte) (string, error) {
	target := discovery.OutputTarget(path)
	out, err := c.pipeline.Compile(ctx, string(data), path, target)
	if err != nil {
		var te *pipeline.TransformError
		if errors.As(err, &te) {
			c.recorder.IncStageFailure(te.Stage)
			return "", ferrors.WrapError(err, ferrors.CategoryTransform, "transform failed").
				WithContext("path", path).
				WithContext("stage", te.Stage).
				WithContext("line", te.Line).
				WithContext("column", te.Column).
				Build()
		}
		return "", err
	}

	if err := writeAtomic(target, []byte(out)); err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to write output").
			WithContext("path", path).
			WithContext("output", target).
			Build()
	}
	return target, nil
}

func (c *Compiler) logFailure(ctx context.Context, err error) {
	attrs := []slog.Attr{logfields.Error(err)}
	var te *pipeline.TransformError
	if errors.As(err, &te) {
		attrs = append(attrs, logfields.Stage(te.Stage))
		if te.Line > 0 {
			attrs = append(attrs, logfields.Line(te.Line), logfields.Column(te.Column))
		}
	}
	msg := "Compile failed"
	if ce, ok := ferrors.AsClassified(err); ok {
		msg = fmt.Sprintf("Compile failed: %s", ce.Message())
		if out, ok := ce.Context().GetString("output"); ok {
			attrs = append(attrs, logfields.Output(out))
		}
	}
	observability.ErrorContext(ctx, msg, attrs...)
}

// writeAtomic writes data next to target and renames it into place, so readers
// never observe a partially written file.
func writeAtomic(target string, data []byte) (err error) {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}
