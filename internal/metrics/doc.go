// Package metrics provides optional observability for compiles, watch events and
// batch builds.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so call sites never check for nil:
//
//	c := compiler.New(p, compiler.WithRecorder(metrics.NewPrometheusRecorder(reg)))
//
// PrometheusRecorder registers its collectors on the given registry; HTTPHandler
// and Serve expose that registry for scraping in watch mode.
package metrics
