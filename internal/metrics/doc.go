// Package metrics records rebuild and process observations for slimpack.
//
// Components receive a Recorder by injection and default to NoopRecorder, so
// call sites never check for nil. When a metrics listener is configured the
// CLI swaps in a PrometheusRecorder and serves its registry over HTTP.
package metrics
