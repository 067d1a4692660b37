package collection

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/corpusbuild/internal/diag"
	"git.home.luguber.info/inful/corpusbuild/internal/processor"
)

func TestWriteJSON(t *testing.T) {
	out := t.TempDir()
	require.NoError(t, WriteJSON(out, "_corpus/x.json", map[string]any{"b": 1, "a": "<x>"}))

	data, err := os.ReadFile(filepath.Join(out, "_corpus", "x.json"))
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": \"<x>\",\n  \"b\": 1\n}\n", string(data))
}

func TestWalkOutputsSkipsArtifacts(t *testing.T) {
	out := t.TempDir()
	for _, rel := range []string{"a.html", "d/b.html", "_corpus/graph.json", ".corpusbuild/manifest.db"} {
		p := filepath.Join(out, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, nil, 0o600))
	}

	var seen []string
	require.NoError(t, WalkOutputs(out, []string{"_corpus/"}, func(rel string) error {
		seen = append(seen, rel)
		return nil
	}))
	assert.Equal(t, []string{"a.html", "d/b.html"}, seen)
}

type locator map[string]string

func (l locator) OutputPath(rel string) (string, bool) {
	out, ok := l[rel]
	return out, ok
}

func TestSourceIndex(t *testing.T) {
	set := diag.NewSet()
	set.Put(diag.NewRecord("a.md"))
	set.Put(diag.NewRecord("orphan.bin"))

	idx := SourceIndex(processor.CollectionRequest{Records: set, Outputs: locator{"a.md": "a.html"}})
	assert.Equal(t, map[string]string{"a.html": "a.md"}, idx)
	assert.Empty(t, SourceIndex(processor.CollectionRequest{}))
}
