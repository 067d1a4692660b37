package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/corpusbuild/internal/metrics"
)

func TestLogContextRoundTrip(t *testing.T) {
	ctx := WithCycleID(context.Background(), "c-1")
	ctx = WithPhase(ctx, "processing")
	ctx = WithProcessor(ctx, "structured")

	assert.Equal(t, LogContext{CycleID: "c-1", Phase: "processing", Processor: "structured"}, GetContext(ctx))
	assert.Equal(t, LogContext{}, GetContext(context.Background()))
}

func TestContextHandlerAddsAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewContextHandler(slog.NewJSONHandler(&buf, nil)))
	ctx := WithPhase(WithCycleID(context.Background(), "c-9"), "collecting")

	logger.InfoContext(ctx, "hello", "k", "v")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "c-9", rec["cycle_id"])
	assert.Equal(t, "collecting", rec["phase"])
	assert.Equal(t, "v", rec["k"])
}

func TestSetupWithWritersFansOut(t *testing.T) {
	var console, file bytes.Buffer
	logger := SetupWithWriters(&console, &file, slog.LevelInfo)
	logger.Debug("hidden")
	logger.Info("shown", "n", 1)

	assert.Contains(t, console.String(), "msg=shown")
	assert.NotContains(t, console.String(), "hidden")
	assert.Contains(t, file.String(), `"msg":"shown"`)
}

func TestSetupWithFile(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "build.log")
	logger, cleanup := Setup(Options{Level: slog.LevelInfo, File: path, Stderr: &console})
	logger.Warn("to both")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"to both"`)
	assert.Contains(t, console.String(), "to both")
}

func TestSetupUnwritableFileFallsBack(t *testing.T) {
	var console bytes.Buffer
	logger, cleanup := Setup(Options{Level: slog.LevelInfo, File: filepath.Join(t.TempDir(), "missing", "x.log"), Stderr: &console, JSON: true})
	logger.Info("still logged")
	require.NoError(t, cleanup())
	assert.Contains(t, console.String(), "failed to open log file")
	assert.Contains(t, console.String(), `"msg":"still logged"`)
}

type phaseRecorder struct {
	metrics.NoopRecorder
	phases map[string]time.Duration
}

func (r *phaseRecorder) ObservePhaseDuration(phase string, d time.Duration) { r.phases[phase] = d }

func TestStartPhase(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewContextHandler(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	rec := &phaseRecorder{phases: map[string]time.Duration{}}

	ctx, span := StartPhase(context.Background(), logger, rec, "discovering")
	assert.Equal(t, "discovering", GetContext(ctx).Phase)
	d := EndSpan(span, errors.New("boom"))

	assert.Equal(t, d, rec.phases["discovering"])
	assert.Contains(t, buf.String(), "phase=discovering")
	assert.Contains(t, buf.String(), "error=boom")
}
