// Package watch keeps compiled style sheets current: after one batch build it
// watches every root recursively and recompiles each changed source file once
// its events have settled.
package watch

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"git.home.luguber.info/inful/cssbuilder/internal/build"
	"git.home.luguber.info/inful/cssbuilder/internal/discovery"
	ferrors "git.home.luguber.info/inful/cssbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/cssbuilder/internal/logfields"
	"git.home.luguber.info/inful/cssbuilder/internal/metrics"
	"git.home.luguber.info/inful/cssbuilder/internal/observability"
)

// DefaultDebounce is the quiet period a path needs before it is recompiled.
const DefaultDebounce = 200 * time.Millisecond

// Options configures an Engine.
type Options struct {
	Roots          []string
	Debounce       time.Duration
	ResyncInterval time.Duration // 0 disables periodic resync
	Recorder       metrics.Recorder
}

// Compiler compiles sources for the engine. Rebuilds pass the contents the
// engine already checked. *compiler.Compiler implements it.
type Compiler interface {
	build.FileCompiler
	CompileSource(ctx context.Context, path string, src []byte) bool
}

// Engine runs watch mode. All mutable watch state belongs to one Engine.
type Engine struct {
	roots     []string
	discovery *discovery.Discovery
	compiler  Compiler
	runner    *build.Runner
	debouncer *Debouncer
	resync    time.Duration
	recorder  metrics.Recorder

	ctx   context.Context
	ready chan struct{}

	mu        sync.Mutex
	watchers  []*rootWatcher
	scheduler *resyncScheduler
	colliding map[string]bool
	closeOnce sync.Once
}

type rootWatcher struct {
	root    string
	watcher *fsnotify.Watcher
}

// New creates an Engine. It does nothing until Run.
func New(opts Options, d *discovery.Discovery, c Compiler) *Engine {
	window := opts.Debounce
	if window <= 0 {
		window = DefaultDebounce
	}
	rec := metrics.OrNoop(opts.Recorder)
	e := &Engine{
		roots:     opts.Roots,
		discovery: d,
		compiler:  c,
		runner:    build.NewRunner(d, c).WithRecorder(rec),
		resync:    opts.ResyncInterval,
		recorder:  rec,
		ctx:       context.Background(),
		ready:     make(chan struct{}),
	}
	e.debouncer = NewDebouncer(window, e.rebuild, rec)
	return e
}

// Ready is closed once the startup build is done and watches are armed.
func (e *Engine) Ready() <-chan struct{} {
	return e.ready
}

// Run builds everything once, then watches until ctx is cancelled. It fails fast
// when no root exists or none can be watched.
func (e *Engine) Run(ctx context.Context) error {
	ctx = observability.WithRunID(ctx, uuid.NewString())
	e.ctx = ctx

	roots := existingRoots(ctx, e.roots)
	if len(roots) == 0 {
		return ferrors.WatchError("no configured root directory exists").
			WithContext("roots", e.roots).
			Fatal().
			Build()
	}

	report := e.runner.RunAll(ctx, e.roots)
	e.setColliding(build.CollidingPaths(report.Collisions))
	observability.InfoContext(ctx, "Initial build finished",
		slog.Int("succeeded", report.Succeeded), slog.Int("failed", report.Failed))

	if err := e.armWatchers(ctx, roots); err != nil {
		return err
	}
	defer e.Close()

	if e.resync > 0 {
		s, err := newResyncScheduler(e.resync, e.resyncAll)
		if err != nil {
			observability.WarnContext(ctx, "Periodic resync disabled", logfields.Error(err))
		} else {
			e.mu.Lock()
			e.scheduler = s
			e.mu.Unlock()
			s.Start()
		}
	}

	close(e.ready)
	observability.InfoContext(ctx, "Watching for changes. Press Ctrl+C to stop.")

	<-ctx.Done()
	observability.InfoContext(ctx, "Stopping watch mode")
	return nil
}

// Close stops pending rebuilds, the resync job and every watcher. Compiles
// already running are not awaited. Safe to call more than once.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.debouncer.Close()

		e.mu.Lock()
		defer e.mu.Unlock()
		if e.scheduler != nil {
			if err := e.scheduler.Stop(); err != nil {
				slog.Warn("Failed to stop resync scheduler", logfields.Error(err))
			}
		}
		for _, rw := range e.watchers {
			if err := rw.watcher.Close(); err != nil {
				slog.Warn("Failed to close watcher", logfields.Root(rw.root), logfields.Error(err))
			}
		}
		e.watchers = nil
	})
}

func existingRoots(ctx context.Context, roots []string) []string {
	var out []string
	for _, r := range roots {
		abs, err := filepath.Abs(r)
		if err != nil {
			continue
		}
		if info, err := os.Stat(abs); err == nil && info.IsDir() {
			out = append(out, abs)
			continue
		}
		observability.WarnContext(ctx, "Directory not found, skipping watch", logfields.Root(abs))
	}
	return out
}

// armWatchers creates one recursive watcher per root. Roots that cannot be
// watched are skipped; it is fatal when none can be.
func (e *Engine) armWatchers(ctx context.Context, roots []string) error {
	var armed []*rootWatcher
	for _, root := range roots {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			observability.ErrorContext(ctx, "Failed to watch", logfields.Root(root), logfields.Error(err))
			continue
		}
		if err := e.addDirsRecursive(w, root); err != nil {
			_ = w.Close()
			observability.ErrorContext(ctx, "Failed to watch", logfields.Root(root), logfields.Error(err))
			continue
		}
		rw := &rootWatcher{root: root, watcher: w}
		armed = append(armed, rw)
		observability.InfoContext(ctx, "Watching", logfields.Root(root))
	}

	if len(armed) == 0 {
		return ferrors.WatchError("no directories could be watched").
			WithContext("roots", roots).
			Fatal().
			Build()
	}

	e.mu.Lock()
	e.watchers = armed
	e.mu.Unlock()
	for _, rw := range armed {
		go e.loop(ctx, rw)
	}
	return nil
}

// addDirsRecursive watches root and every non-excluded directory below it. Only a
// failure on root itself is reported. A symlinked root is followed, symlinked
// directories below it are not, matching discovery.
func (e *Engine) addDirsRecursive(w *fsnotify.Watcher, root string) error {
	if err := w.Add(root); err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}
	e.addSubdirs(w, root)
	return nil
}

func (e *Engine) addSubdirs(w *fsnotify.Watcher, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		slog.Warn("Cannot list directory", logfields.Path(dir), logfields.Error(err))
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() || e.discovery.IsExcludedDir(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := w.Add(path); err != nil {
			slog.Warn("Watch add failed", logfields.Path(path), logfields.Error(err))
			continue
		}
		e.addSubdirs(w, path)
	}
}

func (e *Engine) loop(ctx context.Context, rw *rootWatcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-rw.watcher.Events:
			if !ok {
				return
			}
			e.handleEvent(ctx, rw, ev)
		case err, ok := <-rw.watcher.Errors:
			if !ok {
				return
			}
			observability.WarnContext(ctx, "Watcher error", logfields.Root(rw.root), logfields.Error(err))
		}
	}
}

func (e *Engine) handleEvent(ctx context.Context, rw *rootWatcher, ev fsnotify.Event) {
	if shouldIgnoreEvent(ev.Name) || ev.Op == fsnotify.Chmod {
		return
	}
	rel, err := filepath.Rel(rw.root, ev.Name)
	if err != nil {
		return
	}

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			e.watchNewDir(ctx, rw, ev.Name)
			return
		}
	}

	if !e.discovery.IsSourceFile(rel) {
		return
	}
	observability.DebugContext(ctx, "File event", logfields.Path(rel), logfields.Op(ev.Op.String()))
	e.debouncer.Trigger(filepath.Clean(ev.Name))
}

// watchNewDir arms a directory created after startup and queues source files
// that landed in it before the watch was in place.
func (e *Engine) watchNewDir(ctx context.Context, rw *rootWatcher, dir string) {
	rel, err := filepath.Rel(rw.root, dir)
	if err != nil {
		return
	}
	for _, seg := range strings.Split(rel, string(filepath.Separator)) {
		if e.discovery.IsExcludedDir(seg) {
			return
		}
	}
	if err := e.addDirsRecursive(rw.watcher, dir); err != nil {
		observability.WarnContext(ctx, "Failed to watch new directory", logfields.Path(dir), logfields.Error(err))
		return
	}
	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if r, err := filepath.Rel(rw.root, path); err == nil && e.discovery.IsSourceFile(r) {
			e.debouncer.Trigger(path)
		}
		return nil
	})
}

// rebuild runs when a path's debounce window elapses.
func (e *Engine) rebuild(path string) {
	ctx := observability.WithPath(e.ctx, path)
	if ctx.Err() != nil {
		return
	}

	if e.isColliding(path) {
		observability.ErrorContext(ctx, "Output collision, refusing to compile",
			logfields.Output(discovery.OutputTarget(path)), logfields.Error(discovery.ErrOutputCollision))
		return
	}
	if _, err := os.Stat(path); err != nil {
		e.recorder.IncWatchEvent(metrics.WatchMissing)
		observability.WarnContext(ctx, "File deleted or moved")
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		observability.WarnContext(ctx, "Cannot read changed file", logfields.Error(err))
		return
	}
	if len(bytes.TrimSpace(data)) == 0 {
		e.recorder.IncWatchEvent(metrics.WatchEmpty)
		observability.WarnContext(ctx, "Skipping empty source file (likely mid-save)")
		return
	}

	observability.InfoContext(ctx, "Change detected, recompiling")
	e.compiler.CompileSource(ctx, path, data)
}

// resyncAll refreshes the collision set and re-queues every other discovered
// file through the debouncer.
func (e *Engine) resyncAll() {
	files := e.discovery.Discover(e.roots)
	colliding := build.CollidingPaths(discovery.FindCollisions(files))
	e.setColliding(colliding)
	observability.DebugContext(e.ctx, "Periodic resync", logfields.Count(len(files)), slog.Int("colliding", len(colliding)))
	for _, f := range files {
		if !colliding[f.Path] {
			e.debouncer.Trigger(f.Path)
		}
	}
}

func (e *Engine) setColliding(paths map[string]bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.colliding = paths
}

func (e *Engine) isColliding(path string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.colliding[path]
}
