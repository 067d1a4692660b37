package frontmatter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_NoFrontmatter_ReturnsBodyOnly(t *testing.T) {
	input := []byte("# Title\n\nHello\n")

	fm, body, had, err := Split(input)
	require.NoError(t, err)
	require.False(t, had)
	require.Empty(t, fm)
	require.Equal(t, input, body)
}

func TestSplit_YAMLFrontmatter_SplitsFrontmatterAndBody(t *testing.T) {
	fm, body, had, err := Split([]byte("---\nkey: value\n---\n# Title\n"))
	require.NoError(t, err)
	require.True(t, had)
	require.Equal(t, []byte("key: value\n"), fm)
	require.Equal(t, []byte("# Title\n"), body)
}

func TestSplit_MissingClosingDelimiter_ReturnsError(t *testing.T) {
	_, _, had, err := Split([]byte("---\nkey: value\n# Title\n"))
	require.ErrorIs(t, err, ErrMissingClosingDelimiter)
	require.False(t, had)
}

func TestSplit_CRLF_SplitsFrontmatterAndBody(t *testing.T) {
	fm, body, had, err := Split([]byte("---\r\nkey: value\r\n---\r\n# Title\r\n"))
	require.NoError(t, err)
	require.True(t, had)
	require.Equal(t, []byte("key: value\r\n"), fm)
	require.Equal(t, []byte("# Title\r\n"), body)
}

func TestSplit_EmptyBlockAndBodylessDocument(t *testing.T) {
	fm, body, had, err := Split([]byte("---\n---\n# Title\n"))
	require.NoError(t, err)
	require.True(t, had)
	require.Empty(t, fm)
	require.Equal(t, []byte("# Title\n"), body)

	fm, body, had, err = Split([]byte("---\ntitle: x\n---"))
	require.NoError(t, err)
	require.True(t, had)
	require.Equal(t, []byte("title: x\n"), fm)
	require.Empty(t, body)
}

func TestParse_Metadata(t *testing.T) {
	src := []byte("---\ntitle: Series One\nauthor: Ada\ntags: [math, intro]\nlinks:\n  - other/doc\n---\nBody\n")

	meta, body, err := Parse(src)
	require.NoError(t, err)

	assert.Equal(t, "Series One", meta.Title)
	assert.Equal(t, []string{"Ada"}, meta.Authors)
	assert.Equal(t, []string{"math", "intro"}, meta.Tags)
	assert.Equal(t, []string{"other/doc"}, meta.Links)
	assert.Equal(t, []byte("Body\n"), body)
	assert.NotEmpty(t, meta.Fingerprint)

	again, _, err := Parse(src)
	require.NoError(t, err)
	assert.Equal(t, meta.Fingerprint, again.Fingerprint)

	changed, _, err := Parse([]byte("---\ntitle: Series One\nauthor: Ada\ntags: [math, intro]\nlinks:\n  - other/doc\n---\nBody changed\n"))
	require.NoError(t, err)
	assert.NotEqual(t, meta.Fingerprint, changed.Fingerprint)
}

func TestParse_Errors(t *testing.T) {
	tests := map[string]string{
		"bad yaml":        "---\ntitle: [unterminated\n---\n",
		"non-string list": "---\nauthors: [1, 2]\n---\n",
		"wrong type":      "---\ntags: {a: b}\n---\n",
		"missing close":   "---\ntitle: x\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := Parse([]byte(src))
			require.Error(t, err)
		})
	}
}
