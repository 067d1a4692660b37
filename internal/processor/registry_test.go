package processor

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/corpusbuild/internal/diag"
)

type suffixProcessor struct {
	name   string
	suffix string
	ext    string
}

func (s suffixProcessor) Name() string { return s.name }
func (s suffixProcessor) Handles(rel string) bool {
	return s.suffix == "" || strings.HasSuffix(rel, s.suffix)
}
func (s suffixProcessor) OutputPath(rel string) string {
	if s.ext == "" {
		return rel
	}
	return ReplaceExt(rel, s.ext)
}
func (s suffixProcessor) Process(context.Context, Request) (*diag.Record, error) { return nil, nil }

type fakeCollection struct {
	name string
	arts []string
}

func (f fakeCollection) Name() string                                      { return f.name }
func (f fakeCollection) Artifacts() []string                               { return f.arts }
func (f fakeCollection) Collect(context.Context, CollectionRequest) error { return nil }

func TestRegistry_FirstMatchWins(t *testing.T) {
	r := NewRegistry(
		suffixProcessor{name: "toml", suffix: ".toml", ext: ".json"},
		suffixProcessor{name: "also-toml", suffix: ".toml", ext: ".txt"},
		suffixProcessor{name: "catch-all"},
	)

	p, ok := r.Match("data/a.toml")
	require.True(t, ok)
	assert.Equal(t, "toml", p.Name())

	p, ok = r.Match("img/logo.png")
	require.True(t, ok)
	assert.Equal(t, "catch-all", p.Name())

	out, ok := r.OutputPath("data/a.toml")
	require.True(t, ok)
	assert.Equal(t, "data/a.json", out)
}

func TestRegistry_InsertAtPriority(t *testing.T) {
	r := NewRegistry(
		suffixProcessor{name: "toml", suffix: ".toml", ext: ".json"},
		suffixProcessor{name: "catch-all"},
	)
	r.Insert(0, suffixProcessor{name: "special", suffix: "special.toml", ext: ".bin"})
	require.NoError(t, r.InsertBefore("catch-all", suffixProcessor{name: "png", suffix: ".png", ext: ".webp"}))
	require.Error(t, r.InsertBefore("missing", suffixProcessor{name: "x"}))

	assert.Equal(t, []string{"special", "toml", "png", "catch-all"}, r.Names())

	out, _ := r.OutputPath("a/special.toml")
	assert.Equal(t, "a/special.bin", out)
	out, _ = r.OutputPath("a/logo.png")
	assert.Equal(t, "a/logo.webp", out)
}

func TestRegistry_NoMatch(t *testing.T) {
	r := NewRegistry(suffixProcessor{name: "toml", suffix: ".toml"})
	_, ok := r.OutputPath("a.md")
	assert.False(t, ok)
}

func TestCollectionRegistry_RejectsSharedArtifact(t *testing.T) {
	c := NewCollectionRegistry()
	require.NoError(t, c.Register(fakeCollection{name: "xref", arts: []string{"_corpus/graph.json", "_corpus/backlinks.json"}}))
	err := c.Register(fakeCollection{name: "rogue", arts: []string{"_corpus/./graph.json"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xref")

	require.NoError(t, c.Register(fakeCollection{name: "catalog", arts: []string{"_corpus/catalog.json"}}))
	names := []string{}
	for _, p := range c.Processors() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"xref", "catalog"}, names)
	assert.Equal(t, []string{"_corpus/backlinks.json", "_corpus/catalog.json", "_corpus/graph.json"}, c.Artifacts())
}

func TestReplaceExt(t *testing.T) {
	assert.Equal(t, "a/b.json", ReplaceExt("a/b.toml", ".json"))
	assert.Equal(t, "a.b/c.html", ReplaceExt("a.b/c", ".html"))
	assert.True(t, HasExt("X.TOML", ".toml"))
	assert.False(t, HasExt("x.tomlx", ".toml"))
}
