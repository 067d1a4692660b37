package normalize

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type upper struct{ fail bool }

func (upper) Name() string                { return "upper" }
func (upper) Handles(outRel string) bool { return strings.HasSuffix(outRel, ".txt") }
func (u upper) Normalize(in []byte) ([]byte, error) {
	if u.fail {
		return nil, errors.New("optimizer exploded")
	}
	return []byte(strings.ToUpper(string(in))), nil
}

type panicky struct{}

func (panicky) Name() string                   { return "panicky" }
func (panicky) Handles(string) bool            { return true }
func (panicky) Normalize([]byte) ([]byte, error) { panic("boom") }

func writeTemp(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o640))
	return p
}

func TestApply_Rewrites(t *testing.T) {
	p := writeTemp(t, "a.txt", "hello")

	res, err := Apply(p, "a.txt", []Normalizer{upper{}})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, "upper", res.Normalizer)

	got, _ := os.ReadFile(p)
	assert.Equal(t, "HELLO", string(got))
	info, _ := os.Stat(p)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())

	entries, _ := os.ReadDir(filepath.Dir(p))
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestApply_NoMatch(t *testing.T) {
	p := writeTemp(t, "a.svg", "x")
	res, err := Apply(p, "a.svg", []Normalizer{upper{}})
	require.NoError(t, err)
	assert.Empty(t, res.Normalizer)
}

func TestApply_FailOpenKeepsOutput(t *testing.T) {
	for name, n := range map[string]Normalizer{"error": upper{fail: true}, "panic": panicky{}} {
		t.Run(name, func(t *testing.T) {
			p := writeTemp(t, "a.txt", "original")
			res, err := Apply(p, "a.txt", []Normalizer{n})
			require.Error(t, err)
			assert.False(t, res.Applied)
			got, _ := os.ReadFile(p)
			assert.Equal(t, "original", string(got))
		})
	}
}
