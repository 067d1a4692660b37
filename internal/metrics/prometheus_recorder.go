package metrics

import (
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "corpusbuild"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	phaseDuration  *prom.HistogramVec
	cycleDuration  *prom.HistogramVec
	fileResults    *prom.CounterVec
	diagnostics    *prom.CounterVec
	normalizeRuns  *prom.CounterVec
	normalizeSaved *prom.CounterVec
	buildOutcome   *prom.CounterVec
	concurrency    prom.Gauge
}

// NewPrometheusRecorder constructs the metrics and registers them on reg.
// A nil reg selects a fresh registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		phaseDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Duration of build cycle phases",
			Buckets:   prom.DefBuckets,
		}, []string{"phase"}),
		cycleDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Total build cycle duration",
			Buckets:   prom.DefBuckets,
		}, []string{"full"}),
		fileResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "files_processed_total",
			Help:      "Files processed by processor and result",
		}, []string{"processor", "result"}),
		diagnostics: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostics_total",
			Help:      "Diagnostic messages emitted by kind",
		}, []string{"kind"}),
		normalizeRuns: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "normalize_runs_total",
			Help:      "Normalizer runs by normalizer and whether the output changed",
		}, []string{"normalizer", "applied"}),
		normalizeSaved: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "normalize_saved_bytes_total",
			Help:      "Bytes removed from outputs by normalizers",
		}, []string{"normalizer"}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "build_outcomes_total",
			Help:      "Build cycle outcomes",
		}, []string{"outcome"}),
		concurrency: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "concurrency",
			Help:      "Configured per-file concurrency limit",
		}),
	}
	reg.MustRegister(pr.phaseDuration, pr.cycleDuration, pr.fileResults, pr.diagnostics,
		pr.normalizeRuns, pr.normalizeSaved, pr.buildOutcome, pr.concurrency)
	return pr
}

func (p *PrometheusRecorder) ObservePhaseDuration(phase string, d time.Duration) {
	if p == nil {
		return
	}
	p.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveCycleDuration(d time.Duration, full bool) {
	if p == nil {
		return
	}
	p.cycleDuration.WithLabelValues(strconv.FormatBool(full)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncFileResult(processor string, result ResultLabel) {
	if p == nil {
		return
	}
	p.fileResults.WithLabelValues(processor, string(result)).Inc()
}

func (p *PrometheusRecorder) AddDiagnostics(kind string, n int) {
	if p == nil || n <= 0 {
		return
	}
	p.diagnostics.WithLabelValues(kind).Add(float64(n))
}

func (p *PrometheusRecorder) ObserveNormalize(normalizer string, before, after int, applied bool) {
	if p == nil {
		return
	}
	p.normalizeRuns.WithLabelValues(normalizer, strconv.FormatBool(applied)).Inc()
	if applied && before > after {
		p.normalizeSaved.WithLabelValues(normalizer).Add(float64(before - after))
	}
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome BuildOutcomeLabel) {
	if p == nil {
		return
	}
	p.buildOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) SetConcurrency(n int) {
	if p == nil {
		return
	}
	p.concurrency.Set(float64(n))
}
