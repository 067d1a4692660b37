package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObservePhaseDuration("processing", 150*time.Millisecond)
	pr.ObserveCycleDuration(500*time.Millisecond, true)
	pr.IncFileResult("structured", ResultClean)
	pr.IncFileResult("structured", ResultDiagnostic)
	pr.AddDiagnostics("parse-invalid", 2)
	pr.ObserveNormalize("markup", 100, 60, true)
	pr.ObserveNormalize("svg", 10, 10, false)
	pr.IncBuildOutcome(BuildOutcomeDiagnostics)
	pr.SetConcurrency(4)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `corpusbuild_files_processed_total{processor="structured",result="clean"} 1`)
	assert.Contains(t, body, `corpusbuild_normalize_saved_bytes_total{normalizer="markup"} 40`)
	assert.Contains(t, body, "corpusbuild_concurrency 4")
	assert.Contains(t, body, `corpusbuild_diagnostics_total{kind="parse-invalid"} 2`)
}

func TestHTTPHandler(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).IncBuildOutcome(BuildOutcomeSuccess)

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "corpusbuild_build_outcomes_total")
}

func TestServeMuxHealth(t *testing.T) {
	mux := NewServeMux(prom.NewRegistry())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/other", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNilRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	assert.NotPanics(t, func() {
		pr.AddDiagnostics("x", 1)
		pr.SetConcurrency(1)
	})
	var r Recorder = NoopRecorder{}
	r.IncBuildOutcome(BuildOutcomeFailed)
}
