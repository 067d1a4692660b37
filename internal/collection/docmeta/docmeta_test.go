package docmeta

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	page := `<!DOCTYPE html><html><head>
<title> Getting started </title>
<meta name="author" content="Ada">
<meta name="author" content="Grace">
<meta name="keywords" content="intro, setup,,">
<meta name="fingerprint" content="abc">
<link rel="x-ref" href="/guide/b">
<link rel="x-ref" href="/guide/SUMMARY">
<link rel="x-ref" href="/guide/b">
<link rel="stylesheet" href="/site.css">
</head><body><title>ignored</title></body></html>`

	m, err := Extract(strings.NewReader(page))
	require.NoError(t, err)
	assert.Equal(t, "Getting started", m.Title)
	assert.Equal(t, []string{"Ada", "Grace"}, m.Authors)
	assert.Equal(t, []string{"intro", "setup"}, m.Tags)
	assert.Equal(t, "abc", m.Fingerprint)
	assert.Equal(t, []string{"guide", "guide/b"}, m.Refs)
}

func TestExtractEmpty(t *testing.T) {
	m, err := Extract(strings.NewReader("<p>no head</p>"))
	require.NoError(t, err)
	assert.Empty(t, m.Title)
	assert.Empty(t, m.Authors)
	assert.Empty(t, m.Refs)
}

func TestReadFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "a.html")
	require.NoError(t, os.WriteFile(p, []byte(`<title>A</title><link rel="x-ref" href="/">`), 0o600))
	m, err := ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "A", m.Title)
	assert.Equal(t, []string{""}, m.Refs)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.html"))
	assert.Error(t, err)
}
