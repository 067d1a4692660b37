package commands

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"git.home.luguber.info/inful/corpusbuild/internal/build"
	"git.home.luguber.info/inful/corpusbuild/internal/diag"
)

func sampleResult() *build.Result {
	set := diag.NewSet()
	set.Put(diag.NewRecord("index.md"))
	set.Put(diag.NewRecord("docs/guide/b.toml").Add(diag.KindParseInvalid, "line 1: expected value\nat column 5"))
	set.Put(diag.NewRecord("docs/a.md").
		Add(diag.KindBrokenReference, "link to /missing").
		Add(diag.KindNormalizeSkipped, "markup: unbalanced"))
	return &build.Result{
		Status:   build.StatusDiagnostics,
		Full:     true,
		Touched:  []string{"docs/a.md", "docs/guide/b.toml", "index.md"},
		Records:  set,
		Duration: 1500 * time.Millisecond,
	}
}

func TestWriteSummaryFlat(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	WriteSummary(&buf, sampleResult(), SummaryOptions{})
	out := buf.String()

	assert.Contains(t, out, "diagnostics full build: 3 processed, 3 files, 2 problems in 1.5s")
	assert.Contains(t, out, "parse-invalid")
	assert.Contains(t, out, "line 1: expected value ...")
	assert.NotContains(t, out, "at column 5")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("docs/a.md")), bytes.Index(buf.Bytes(), []byte("docs/guide/b.toml")))
	assert.NotContains(t, out, "index.md  ")
}

func TestWriteSummaryLimit(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	WriteSummary(&buf, sampleResult(), SummaryOptions{Limit: 1})
	assert.Contains(t, buf.String(), "... 2 more")
	assert.NotContains(t, buf.String(), "b.toml")
}

func TestWriteSummaryTree(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	WriteSummary(&buf, sampleResult(), SummaryOptions{Tree: true})
	out := buf.String()

	assert.Contains(t, out, "docs/")
	assert.Contains(t, out, "guide/")
	assert.Contains(t, out, "b.toml")
	assert.Contains(t, out, "broken-reference: link to /missing")
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("docs/\n")))
}

func TestWriteSummaryFailedAndCollectionErrors(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	WriteSummary(&buf, &build.Result{
		Status:           build.StatusFailed,
		Removed:          []string{"old.md"},
		Swept:            []string{"old.html"},
		CollectionErrors: []error{fmt.Errorf("catalog: disk full")},
	}, SummaryOptions{})
	out := buf.String()
	assert.Contains(t, out, "failed scoped build")
	assert.Contains(t, out, "1 removed, 1 stale outputs swept")
	assert.Contains(t, out, "collection error: catalog: disk full")
}
