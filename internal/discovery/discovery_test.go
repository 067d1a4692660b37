package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/corpusbuild/internal/config"
	ferrors "git.home.luguber.info/inful/corpusbuild/internal/foundation/errors"
)

func touch(t *testing.T, root string, rels ...string) {
	t.Helper()
	for _, rel := range rels {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))
	}
}

func newConfig(t *testing.T, root string, mutate func(*config.Config)) *config.Config {
	t.Helper()
	cfg, err := config.Default(root)
	require.NoError(t, err)
	if mutate != nil {
		mutate(cfg)
	}
	return cfg
}

func TestDiscoverSkipsIgnored(t *testing.T) {
	root := t.TempDir()
	touch(t, root,
		"a.toml", "docs/x.md", "drafts/wip.md", "notes.bak", "deep/dir/old.bak",
		"_build/a.json", ".git/HEAD", ".env", "corpusbuild.yaml", "img/logo.png",
	)
	cfg := newConfig(t, root, func(c *config.Config) { c.Ignore = []string{"drafts/", "*.bak"} })

	d, err := New(cfg)
	require.NoError(t, err)
	files, err := d.Discover(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.toml", "docs/x.md", "img/logo.png"}, files)
}

func TestDiscoverRespectsGitignore(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "keep.md", "tmp/cache.bin", "sub/skip.log", "sub/keep.txt")
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("tmp/\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", ".gitignore"), []byte("*.log\n"), 0o600))

	cfg := newConfig(t, root, func(c *config.Config) { c.RespectGitignore = true })
	d, err := New(cfg)
	require.NoError(t, err)
	files, err := d.Discover(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.md", "sub/keep.txt"}, files)
}

func TestFilterAndRel(t *testing.T) {
	root := t.TempDir()
	cfg := newConfig(t, root, func(c *config.Config) { c.Ignore = []string{"drafts/**"} })
	d, err := New(cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.md", "docs/b.md"},
		d.Filter([]string{"a.md", "drafts/x.md", "_build/a.html", "docs/b.md", ".git/index"}))

	rel, ok := d.Rel(filepath.Join(root, "docs", "b.md"))
	assert.True(t, ok)
	assert.Equal(t, "docs/b.md", rel)
	_, ok = d.Rel(filepath.Dir(root))
	assert.False(t, ok)
}

func TestDiscoverMissingRootIsFatal(t *testing.T) {
	cfg := newConfig(t, t.TempDir(), nil)
	cfg.Paths.SourceRoot = filepath.Join(t.TempDir(), "missing")
	d, err := New(cfg)
	require.NoError(t, err)

	_, err = d.Discover(t.Context())
	require.Error(t, err)
	assert.True(t, ferrors.IsFatal(err))
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryFileSystem))
}
