package metrics

import "time"

// ResultLabel enumerates per-file result categories.
type ResultLabel string

const (
	ResultClean      ResultLabel = "clean"
	ResultDiagnostic ResultLabel = "diagnostic"
	ResultError      ResultLabel = "error"
)

// BuildOutcomeLabel enumerates cycle outcomes.
type BuildOutcomeLabel string

const (
	BuildOutcomeSuccess     BuildOutcomeLabel = "success"
	BuildOutcomeDiagnostics BuildOutcomeLabel = "diagnostics"
	BuildOutcomeFailed      BuildOutcomeLabel = "failed"
	BuildOutcomeCanceled    BuildOutcomeLabel = "canceled"
)

// Recorder defines observability hooks for build cycles.
type Recorder interface {
	ObservePhaseDuration(phase string, d time.Duration)
	ObserveCycleDuration(d time.Duration, full bool)
	IncFileResult(processor string, result ResultLabel)
	AddDiagnostics(kind string, n int)
	ObserveNormalize(normalizer string, before, after int, applied bool)
	IncBuildOutcome(outcome BuildOutcomeLabel)
	SetConcurrency(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObservePhaseDuration(string, time.Duration) {}
func (NoopRecorder) ObserveCycleDuration(time.Duration, bool)   {}
func (NoopRecorder) IncFileResult(string, ResultLabel)          {}
func (NoopRecorder) AddDiagnostics(string, int)                 {}
func (NoopRecorder) ObserveNormalize(string, int, int, bool)    {}
func (NoopRecorder) IncBuildOutcome(BuildOutcomeLabel)          {}
func (NoopRecorder) SetConcurrency(int)                         {}
