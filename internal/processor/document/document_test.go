package document

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/corpusbuild/internal/diag"
	"git.home.luguber.info/inful/corpusbuild/internal/processor"
)

func run(t *testing.T, rel, content string) (*diag.Record, string) {
	t.Helper()
	in, out := t.TempDir(), t.TempDir()
	p := filepath.Join(in, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))

	proc := New()
	rec, err := proc.Process(t.Context(), processor.Request{InputRoot: in, OutputRoot: out, Path: rel})
	require.NoError(t, err)
	require.NotNil(t, rec)

	b, err := os.ReadFile(filepath.Join(out, filepath.FromSlash(proc.OutputPath(rel))))
	if err != nil {
		return rec, ""
	}
	return rec, string(b)
}

func TestProcess_HeadCarriesMetadata(t *testing.T) {
	rec, page := run(t, "series/SUMMARY.md", `---
title: Series & More
authors: [Ada, Grace]
tags: [math, intro]
links: [x, /y]
---
# Heading

See [the other page](other.md#part) and [external](https://example.com/a.md).
`)

	assert.Empty(t, rec.Messages)
	assert.Contains(t, page, "<title>Series &amp; More</title>")
	assert.Contains(t, page, `<meta name="author" content="Ada">`)
	assert.Contains(t, page, `<meta name="author" content="Grace">`)
	assert.Contains(t, page, `<meta name="keywords" content="math,intro">`)
	assert.Contains(t, page, `<meta name="fingerprint" content="`)
	assert.Contains(t, page, `<link rel="x-ref" href="/x">`)
	assert.Contains(t, page, `<link rel="x-ref" href="/y">`)
	assert.Contains(t, page, `<link rel="x-ref" href="/series/other">`)
	assert.NotContains(t, page, `href="/example.com`)
	assert.Contains(t, page, `href="other.html#part"`)
	assert.Contains(t, page, `href="https://example.com/a.md"`)
	assert.Contains(t, page, `<h1 id="heading">Heading</h1>`)
}

func TestProcess_TitleFallsBackToFirstHeading(t *testing.T) {
	rec, page := run(t, "plain.md", "Intro\n\n# First *Title*\n\n# Second\n")
	assert.Empty(t, rec.Messages)
	assert.Contains(t, page, "<title>First Title</title>")
}

func TestProcess_BadFrontmatterIsParseInvalid(t *testing.T) {
	for name, src := range map[string]string{
		"unclosed": "---\ntitle: x\n# body\n",
		"bad yaml": "---\ntitle: [x\n---\nbody\n",
	} {
		t.Run(name, func(t *testing.T) {
			rec, page := run(t, "bad.md", src)
			assert.Len(t, rec.Messages, 1)
			assert.True(t, rec.Has(diag.KindParseInvalid))
			assert.Empty(t, page)
		})
	}
}

func TestProcess_Deterministic(t *testing.T) {
	src := "---\ntitle: T\nlinks: [b, a, b]\n---\nbody\n"
	_, first := run(t, "d.md", src)
	_, second := run(t, "d.md", src)
	assert.Equal(t, first, second)
	assert.Regexp(t, `href="/a">\n<link rel="x-ref" href="/b">\n</head>`, first)
}
