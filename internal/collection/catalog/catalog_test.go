package catalog

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/corpusbuild/internal/diag"
	"git.home.luguber.info/inful/corpusbuild/internal/processor"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
}

func TestCollect(t *testing.T) {
	out := t.TempDir()
	writeFile(t, out, "zeta/SUMMARY.html",
		`<title>Zeta</title><meta name="author" content="Ada"><meta name="keywords" content="a,b">`)
	writeFile(t, out, "alpha/SUMMARY.html", `<title>Alpha</title><meta name="author" content="Grace">`)
	writeFile(t, out, "untitled/SUMMARY.html", `<meta name="author" content="Nobody">`)
	writeFile(t, out, "noindex/page.html", `<title>Page</title>`)
	writeFile(t, out, "alpha/nested/SUMMARY.html", `<title>Nested</title><meta name="author" content="X">`)
	writeFile(t, out, "SUMMARY.html", `<title>Root</title><meta name="author" content="X">`)

	var logs bytes.Buffer
	p := New(processor.Env{Logger: slog.New(slog.NewTextHandler(&logs, nil))})
	set := diag.NewSet()
	require.NoError(t, p.Collect(t.Context(), processor.CollectionRequest{OutputRoot: out, Records: set}))

	data, err := os.ReadFile(filepath.Join(out, "_corpus", File))
	require.NoError(t, err)
	var entries []Entry
	require.NoError(t, json.Unmarshal(data, &entries))

	assert.Equal(t, []Entry{
		{Title: "Alpha", Authors: []string{"Grace"}, Tags: []string{}, Href: "/alpha/"},
		{Title: "Zeta", Authors: []string{"Ada"}, Tags: []string{"a", "b"}, Href: "/zeta/"},
	}, entries)
	assert.Contains(t, logs.String(), "untitled/SUMMARY.html")
	assert.Zero(t, set.Len(), "catalog warnings never become diagnostics")
}

func TestEntriesEmptyOutput(t *testing.T) {
	entries, err := New(processor.Env{}).Entries(t.Context(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NotNil(t, entries)
}
