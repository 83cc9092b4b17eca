package watch

import (
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/cssbuilder/internal/logfields"
	"git.home.luguber.info/inful/cssbuilder/internal/metrics"
)

// pathState is the per-path entry of the debouncer. A path with no timer that is
// not running is idle and has no entry at all.
type pathState struct {
	timer   *time.Timer
	gen     uint64 // identifies the live timer; stale callbacks compare and bail
	running bool
	rerun   bool
}

// Debouncer coalesces bursts of events per path into a single call of fire,
// issued once the path has been quiet for the window. At most one call per path
// is in flight; a timer that fires during a call marks a rerun, armed for a full
// window when the call returns. Distinct paths are independent.
type Debouncer struct {
	window   time.Duration
	fire     func(path string)
	recorder metrics.Recorder

	mu     sync.Mutex
	paths  map[string]*pathState
	seq    uint64
	closed bool
}

// NewDebouncer returns a Debouncer calling fire for each settled path.
func NewDebouncer(window time.Duration, fire func(path string), recorder metrics.Recorder) *Debouncer {
	return &Debouncer{
		window:   window,
		fire:     fire,
		recorder: metrics.OrNoop(recorder),
		paths:    make(map[string]*pathState),
	}
}

// Trigger records an event for path, starting or restarting its window.
func (d *Debouncer) Trigger(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	st, ok := d.paths[path]
	if !ok {
		st = &pathState{}
		d.paths[path] = st
	}
	if st.timer != nil {
		st.timer.Stop()
		d.recorder.IncWatchEvent(metrics.WatchCoalesced)
	} else {
		d.recorder.IncWatchEvent(metrics.WatchQueued)
	}
	d.arm(path, st)
}

// arm starts a fresh window for path. Callers hold d.mu.
func (d *Debouncer) arm(path string, st *pathState) {
	d.seq++
	gen := d.seq
	st.gen = gen
	st.timer = time.AfterFunc(d.window, func() { d.onFire(path, gen) })
}

func (d *Debouncer) onFire(path string, gen uint64) {
	d.mu.Lock()
	st, ok := d.paths[path]
	if d.closed || !ok || st.gen != gen || st.timer == nil {
		d.mu.Unlock()
		return
	}
	st.timer = nil
	if st.running {
		st.rerun = true
		d.recorder.IncWatchEvent(metrics.WatchRerun)
		d.mu.Unlock()
		return
	}
	st.running = true
	d.mu.Unlock()

	d.call(path)

	d.mu.Lock()
	defer d.mu.Unlock()
	st.running = false
	if st.rerun && !d.closed {
		st.rerun = false
		if st.timer == nil {
			d.arm(path, st)
		}
		return
	}
	st.rerun = false
	if st.timer == nil && d.paths[path] == st {
		delete(d.paths, path)
	}
}

// call runs fire; a panic is contained so the path returns to idle.
func (d *Debouncer) call(path string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Rebuild panicked", logfields.Path(path), slog.Any("panic", r))
		}
	}()
	d.fire(path)
}

// Pending returns the number of paths with an armed timer.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, st := range d.paths {
		if st.timer != nil {
			n++
		}
	}
	return n
}

// Close stops every pending timer and rejects further triggers. Calls already
// in flight are not awaited.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	for path, st := range d.paths {
		if st.timer != nil {
			st.timer.Stop()
		}
		delete(d.paths, path)
	}
}
