package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "cssbuilder"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	compileDuration prom.Histogram
	compileResults  *prom.CounterVec
	stageFailures   *prom.CounterVec
	watchEvents     *prom.CounterVec
	batchDuration   prom.Histogram
	batchFiles      *prom.GaugeVec
}

// NewPrometheusRecorder constructs the metrics and registers them with reg.
// A nil reg gets a fresh private registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		compileDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "compile_duration_seconds",
			Help:      "Duration of single file compiles",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		compileResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "compile_results_total",
			Help:      "File compile outcomes",
		}, []string{"result"}),
		stageFailures: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Transform failures by pipeline stage",
		}, []string{"stage"}),
		watchEvents: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "watch_events_total",
			Help:      "File events handled by the watch engine, by disposition",
		}, []string{"event"}),
		batchDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Total batch build duration",
			Buckets:   prom.DefBuckets,
		}),
		batchFiles: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "batch_files",
			Help:      "Files compiled by the last batch build, by outcome",
		}, []string{"result"}),
	}
	reg.MustRegister(pr.compileDuration, pr.compileResults, pr.stageFailures, pr.watchEvents, pr.batchDuration, pr.batchFiles)
	return pr
}

func (p *PrometheusRecorder) ObserveCompileDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.compileDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncCompileResult(result ResultLabel) {
	if p == nil {
		return
	}
	p.compileResults.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) IncStageFailure(stage string) {
	if p == nil {
		return
	}
	p.stageFailures.WithLabelValues(stage).Inc()
}

func (p *PrometheusRecorder) IncWatchEvent(event WatchEventLabel) {
	if p == nil {
		return
	}
	p.watchEvents.WithLabelValues(string(event)).Inc()
}

func (p *PrometheusRecorder) ObserveBatchDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.batchDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) SetBatchFiles(succeeded, failed int) {
	if p == nil {
		return
	}
	p.batchFiles.WithLabelValues(string(ResultSuccess)).Set(float64(succeeded))
	p.batchFiles.WithLabelValues(string(ResultFailed)).Set(float64(failed))
}
