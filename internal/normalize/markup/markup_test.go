package markup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandles(t *testing.T) {
	n := New()
	assert.True(t, n.Handles("a/b.html"))
	assert.True(t, n.Handles("legacy.HTM"))
	assert.False(t, n.Handles("fig.svg"))
	assert.False(t, n.Handles("data.json"))
}

func TestNormalizeFragment(t *testing.T) {
	n := New()

	out, err := n.Normalize([]byte(`<div  id="" class="a" class="b">  text  <span>x</span>  </div>`))
	require.NoError(t, err)
	assert.Equal(t, `<div class="a">text <span>x</span></div>`, string(out))

	out, err = n.Normalize([]byte("<p><b>a</b>   \n <i>b</i></p>"))
	require.NoError(t, err)
	assert.Equal(t, `<p><b>a</b> <i>b</i></p>`, string(out))
}

func TestNormalizeDocument(t *testing.T) {
	in := "<!DOCTYPE html>\n<html>\n<head>\n<title>T</title>\n</head>\n<body>\n<!-- note -->\n" +
		"<p class=\"\">Hello    world</p>\n<pre>  keep\n  this</pre>\n</body>\n</html>\n"

	out, err := New().Normalize([]byte(in))
	require.NoError(t, err)
	s := string(out)

	assert.NotContains(t, s, "<!--")
	assert.Contains(t, s, "<p>Hello world</p>")
	assert.Contains(t, s, "<pre>  keep\n  this</pre>")
	assert.Contains(t, s, "<head><title>T</title></head>")
	assert.Less(t, len(out), len(in))
}

func TestNormalizeIdempotent(t *testing.T) {
	n := New()
	inputs := []string{
		"<!DOCTYPE html><html><head><meta charset=\"utf-8\"></head><body>\n<h1 id=\"x\">Title</h1>\n<p>a  b</p></body></html>",
		"<ul>\n  <li>one</li>\n  <li>two</li>\n</ul>",
		"<p>unclosed <em>tags",
	}
	for _, in := range inputs {
		once, err := n.Normalize([]byte(in))
		require.NoError(t, err)
		twice, err := n.Normalize(once)
		require.NoError(t, err)
		assert.Equal(t, string(once), string(twice), in)
	}
}

func TestNormalizeKeepsScriptText(t *testing.T) {
	out, err := New().Normalize([]byte("<script>var a =   1;\n</script>"))
	require.NoError(t, err)
	assert.Equal(t, "<script>var a =   1;\n</script>", string(out))
}
