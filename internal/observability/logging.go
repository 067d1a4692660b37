// Package observability wires structured logging for build sessions and
// carries per-cycle log context through context.Context.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"

	"git.home.luguber.info/inful/corpusbuild/internal/logfields"
)

// LogContext holds structured logging context information.
type LogContext struct {
	CycleID   string
	Phase     string
	Processor string
}

type logContextKeyType string

const logContextKey logContextKeyType = "log-context"

// WithCycleID adds a build cycle id to the context.
func WithCycleID(ctx context.Context, id string) context.Context {
	lc := extractLogContext(ctx)
	lc.CycleID = id
	return context.WithValue(ctx, logContextKey, lc)
}

// WithPhase adds the current cycle phase to the context.
func WithPhase(ctx context.Context, phase string) context.Context {
	lc := extractLogContext(ctx)
	lc.Phase = phase
	return context.WithValue(ctx, logContextKey, lc)
}

// WithProcessor adds the active processor name to the context.
func WithProcessor(ctx context.Context, name string) context.Context {
	lc := extractLogContext(ctx)
	lc.Processor = name
	return context.WithValue(ctx, logContextKey, lc)
}

// GetContext returns the structured log context from the provided context.
func GetContext(ctx context.Context) LogContext {
	return extractLogContext(ctx)
}

func extractLogContext(ctx context.Context) LogContext {
	if ctx == nil {
		return LogContext{}
	}
	if lc, ok := ctx.Value(logContextKey).(LogContext); ok {
		return lc
	}
	return LogContext{}
}

func getLogAttrs(ctx context.Context) []slog.Attr {
	lc := extractLogContext(ctx)
	var attrs []slog.Attr
	if lc.CycleID != "" {
		attrs = append(attrs, logfields.CycleID(lc.CycleID))
	}
	if lc.Phase != "" {
		attrs = append(attrs, logfields.Phase(lc.Phase))
	}
	if lc.Processor != "" {
		attrs = append(attrs, logfields.Processor(lc.Processor))
	}
	return attrs
}

// ContextHandler decorates records with the LogContext carried by the
// context passed to the *Context logging methods.
type ContextHandler struct {
	next slog.Handler
}

// NewContextHandler wraps next.
func NewContextHandler(next slog.Handler) *ContextHandler {
	return &ContextHandler{next: next}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs := getLogAttrs(ctx); len(attrs) > 0 {
		r = r.Clone()
		r.AddAttrs(attrs...)
	}
	return h.next.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{next: h.next.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{next: h.next.WithGroup(name)}
}

// Options configures Setup.
type Options struct {
	Level slog.Level
	// JSON selects the JSON handler for the console stream.
	JSON bool
	// File, when set, receives a JSON copy of every record.
	File   string
	Stderr io.Writer
}

// Setup builds the session logger: console output in the chosen format,
// fanned out to an optional JSON log file. The returned cleanup closes the
// file.
func Setup(opts Options) (*slog.Logger, func() error) {
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	ho := &slog.HandlerOptions{Level: opts.Level}
	var console slog.Handler = slog.NewTextHandler(stderr, ho)
	if opts.JSON {
		console = slog.NewJSONHandler(stderr, ho)
	}
	if opts.File == "" {
		return slog.New(NewContextHandler(console)), func() error { return nil }
	}

	file, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger := slog.New(NewContextHandler(console))
		logger.Error("failed to open log file, using stderr only", logfields.Path(opts.File), logfields.Error(err))
		return logger, func() error { return nil }
	}
	fileHandler := slog.NewJSONHandler(file, ho)
	logger := slog.New(NewContextHandler(slogmulti.Fanout(console, fileHandler)))
	return logger, file.Close
}

// SetupWithWriters creates a fanout logger over custom writers (for tests).
func SetupWithWriters(console, file io.Writer, level slog.Level) *slog.Logger {
	ho := &slog.HandlerOptions{Level: level}
	return slog.New(NewContextHandler(slogmulti.Fanout(
		slog.NewTextHandler(console, ho),
		slog.NewJSONHandler(file, ho),
	)))
}
