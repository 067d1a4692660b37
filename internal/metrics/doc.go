// Package metrics records build-cycle observations.
//
// Components receive a Recorder through injection and default to
// NoopRecorder, so call sites never check for nil. The watch command swaps
// in a PrometheusRecorder when a metrics listen address is configured.
package metrics
