package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findFamily(t *testing.T, reg *prom.Registry, name string) *dto.MetricFamily {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("metric family %s not found", name)
	return nil
}

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.ObserveCompileDuration(15 * time.Millisecond)
	pr.IncCompileResult(ResultSuccess)
	pr.IncCompileResult(ResultSuccess)
	pr.IncCompileResult(ResultFailed)
	pr.IncStageFailure("nesting")
	pr.IncWatchEvent(WatchCoalesced)
	pr.ObserveBatchDuration(time.Second)
	pr.SetBatchFiles(3, 1)

	results := findFamily(t, reg, "cssbuilder_compile_results_total")
	counts := map[string]float64{}
	for _, m := range results.GetMetric() {
		counts[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
	}
	assert.Equal(t, map[string]float64{"success": 2, "failed": 1}, counts)

	hist := findFamily(t, reg, "cssbuilder_compile_duration_seconds")
	assert.Equal(t, uint64(1), hist.GetMetric()[0].GetHistogram().GetSampleCount())

	findFamily(t, reg, "cssbuilder_stage_failures_total")
	findFamily(t, reg, "cssbuilder_watch_events_total")
	findFamily(t, reg, "cssbuilder_batch_files")
}

func TestPrometheusRecorderNilSafe(t *testing.T) {
	var pr *PrometheusRecorder
	assert.NotPanics(t, func() {
		pr.IncCompileResult(ResultSuccess)
		pr.ObserveBatchDuration(time.Second)
	})
}

func TestHTTPHandler(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).IncCompileResult(ResultSuccess)

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cssbuilder_compile_results_total")
}
