package template

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/corpusbuild/internal/config"
	"git.home.luguber.info/inful/corpusbuild/internal/diag"
	"git.home.luguber.info/inful/corpusbuild/internal/processor"
)

type fixture struct {
	src, out string
	proc     *Processor
}

func newFixture(t *testing.T, templateRoot string, files map[string]string) fixture {
	t.Helper()
	src := t.TempDir()
	for rel, body := range files {
		p := filepath.Join(src, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	}
	cfg, err := config.Default(src)
	require.NoError(t, err)
	if templateRoot != "" {
		cfg.Paths.TemplateRoot = filepath.Join(src, templateRoot)
		require.NoError(t, os.MkdirAll(cfg.Paths.TemplateRoot, 0o750))
	}
	return fixture{src: src, out: t.TempDir(), proc: New(processor.Env{Config: cfg})}
}

func (f fixture) run(t *testing.T, rel string) *diag.Record {
	t.Helper()
	rec, err := f.proc.Process(t.Context(), processor.Request{InputRoot: f.src, OutputRoot: f.out, Path: rel})
	require.NoError(t, err)
	require.NotNil(t, rec)
	return rec
}

func (f fixture) output(t *testing.T, rel string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(f.out, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(b)
}

func TestIncludeRawInlinesBytesUnescaped(t *testing.T) {
	raw := "title = \"<A & B>\"\n"
	f := newFixture(t, "", map[string]string{
		"a.toml":    raw,
		"index.njk": `<pre>{{ includeRaw("a.toml") }}</pre>`,
	})

	rec := f.run(t, "index.njk")

	assert.Empty(t, rec.Messages)
	assert.Equal(t, "<pre>"+raw+"</pre>", f.output(t, "index.html"))
	assert.Equal(t, []string{"index.njk"}, f.proc.Dependents([]string{"a.toml"}))
}

func TestIncludeRawResolutionOrder(t *testing.T) {
	f := newFixture(t, "templates", map[string]string{
		"templates/shared.txt":  "from-root",
		"docs/shared.txt":       "from-caller",
		"docs/only-here.txt":    "caller-fallback",
		"docs/page.njk":         `{{ includeRaw("shared.txt") }}|{{ includeRaw("./shared.txt") }}|{{ includeRaw("only-here.txt") }}`,
	})

	rec := f.run(t, "docs/page.njk")

	assert.Empty(t, rec.Messages)
	assert.Equal(t, "from-root|from-caller|caller-fallback", f.output(t, "docs/page.html"))
}

func TestRenderFailureIsCompileFailed(t *testing.T) {
	f := newFixture(t, "", map[string]string{
		"broken.njk":  `{% if %}`,
		"missing.njk": `{{ includeRaw("nope.txt") }}`,
	})

	for _, rel := range []string{"broken.njk", "missing.njk"} {
		rec := f.run(t, rel)
		assert.Equal(t, 1, rec.Count(diag.KindCompileFailed), rel)
		_, err := os.Stat(filepath.Join(f.out, processor.ReplaceExt(rel, ".html")))
		assert.True(t, os.IsNotExist(err), rel)
	}
	// A later-created include target re-renders the template that wanted it.
	assert.Equal(t, []string{"missing.njk"}, f.proc.Dependents([]string{"nope.txt"}))
}

func TestTemplateIncludeFromRoot(t *testing.T) {
	f := newFixture(t, "templates", map[string]string{
		"templates/header.njk": `<h1>{{ path }}</h1>`,
		"pages/p.njk":          `{% include "header.njk" %}body`,
	})

	rec := f.run(t, "pages/p.njk")

	assert.Empty(t, rec.Messages)
	assert.Equal(t, "<h1>pages/p.njk</h1>body", f.output(t, "pages/p.html"))

	assert.Equal(t, []string{"pages/p.njk"}, f.proc.Dependents([]string{"templates/header.njk"}))
	assert.Empty(t, f.proc.Dependents([]string{"pages/other.txt"}))

	f.proc.Forget("pages/p.njk")
	assert.Empty(t, f.proc.Dependents([]string{"templates/header.njk"}))
}

func TestHandlesAndOutputPath(t *testing.T) {
	f := newFixture(t, "", nil)
	assert.True(t, f.proc.Handles("a/b.njk"))
	assert.False(t, f.proc.Handles("a/b.html"))
	assert.Equal(t, "a/b.html", f.proc.OutputPath("a/b.njk"))
	assert.True(t, processor.IsVerbatim(f.proc))
}
