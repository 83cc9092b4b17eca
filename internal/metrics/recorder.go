package metrics

import "time"

// ResultLabel enumerates compile outcomes for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultFailed   ResultLabel = "failed"
	ResultCanceled ResultLabel = "canceled"
)

// WatchEventLabel enumerates what the watch engine did with a file event.
type WatchEventLabel string

const (
	WatchQueued    WatchEventLabel = "queued"    // new pending rebuild
	WatchCoalesced WatchEventLabel = "coalesced" // restarted an existing debounce window
	WatchRerun     WatchEventLabel = "rerun"     // deferred behind a running compile
	WatchEmpty     WatchEventLabel = "empty"     // skipped, file was empty
	WatchMissing   WatchEventLabel = "missing"   // skipped, file vanished
)

// Recorder defines observability hooks for compile, watch and batch metrics.
// Implementations may forward to Prometheus or similar backends.
type Recorder interface {
	ObserveCompileDuration(d time.Duration)
	IncCompileResult(result ResultLabel)
	IncStageFailure(stage string)
	IncWatchEvent(event WatchEventLabel)
	ObserveBatchDuration(d time.Duration)
	SetBatchFiles(succeeded, failed int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveCompileDuration(time.Duration) {}
func (NoopRecorder) IncCompileResult(ResultLabel)         {}
func (NoopRecorder) IncStageFailure(string)               {}
func (NoopRecorder) IncWatchEvent(WatchEventLabel)        {}
func (NoopRecorder) ObserveBatchDuration(time.Duration)   {}
func (NoopRecorder) SetBatchFiles(int, int)               {}

// OrNoop returns r, or a NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
