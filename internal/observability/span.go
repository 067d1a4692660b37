package observability

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/corpusbuild/internal/logfields"
	"git.home.luguber.info/inful/corpusbuild/internal/metrics"
)

// Span times one phase of a build cycle.
type Span struct {
	name     string
	start    time.Time
	log      *slog.Logger
	ctx      context.Context
	recorder metrics.Recorder
	err      error
}

// StartPhase opens a span for phase and returns a context carrying the phase
// name for log records. recorder may be nil.
func StartPhase(ctx context.Context, log *slog.Logger, recorder metrics.Recorder, phase string) (context.Context, *Span) {
	if log == nil {
		log = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	ctx = WithPhase(ctx, phase)
	s := &Span{name: phase, start: time.Now(), log: log, ctx: ctx, recorder: recorder}
	log.DebugContext(ctx, "Phase started")
	return ctx, s
}

// RecordError remembers the first error observed during the span.
func (s *Span) RecordError(err error) {
	if s == nil || err == nil || s.err != nil {
		return
	}
	s.err = err
}

// End closes the span, records its duration and returns it.
func (s *Span) End() time.Duration {
	if s == nil {
		return 0
	}
	d := time.Since(s.start)
	s.recorder.ObservePhaseDuration(s.name, d)
	attrs := []any{logfields.DurationMS(float64(d.Microseconds()) / 1000)}
	if s.err != nil {
		attrs = append(attrs, logfields.Error(s.err))
	}
	s.log.DebugContext(s.ctx, "Phase ended", attrs...)
	return d
}

// EndSpan records err on span and ends it.
func EndSpan(span *Span, err error) time.Duration {
	span.RecordError(err)
	return span.End()
}
