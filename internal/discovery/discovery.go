// Package discovery enumerates the source files of a project, honoring the
// configured ignore patterns.
package discovery

import (
	"context"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"git.home.luguber.info/inful/corpusbuild/internal/config"
	ferrors "git.home.luguber.info/inful/corpusbuild/internal/foundation/errors"
)

// builtinIgnores are never treated as sources.
var builtinIgnores = []string{".git/", ".gitignore", ".env", ".env.local", ".DS_Store"}

// Discoverer walks a source root and filters ignored paths.
type Discoverer struct {
	root    string
	matcher gitignore.Matcher
}

// New builds a discoverer from the session configuration. The output root
// and the settings file are ignored when they lie inside the source root.
func New(cfg *config.Config) (*Discoverer, error) {
	root := cfg.Paths.SourceRoot
	var patterns []gitignore.Pattern
	for _, p := range builtinIgnores {
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}
	if cfg.RespectGitignore {
		found, err := gitignore.ReadPatterns(osfs.New(root), nil)
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "read .gitignore files").
				WithContext("root", root).Fatal().Build()
		}
		patterns = append(patterns, found...)
	}
	// Configured globs come after .gitignore so they take precedence.
	for _, g := range cfg.Ignore {
		patterns = append(patterns, gitignore.ParsePattern(g, nil))
	}
	if rel, ok := cfg.Paths.OutputWithinSource(); ok && rel != "" {
		patterns = append(patterns, gitignore.ParsePattern("/"+rel+"/", nil))
	}
	if settings := cfg.Paths.SettingsFile; settings != "" {
		if rel, ok := cfg.Paths.SourceRel(settings); ok && rel != "" {
			patterns = append(patterns, gitignore.ParsePattern("/"+rel, nil))
		}
	}
	return &Discoverer{root: root, matcher: gitignore.NewMatcher(patterns)}, nil
}

// Root returns the absolute source root.
func (d *Discoverer) Root() string { return d.root }

// Ignored reports whether rel, or any directory above it, is excluded.
func (d *Discoverer) Ignored(rel string, isDir bool) bool {
	rel = strings.Trim(filepath.ToSlash(rel), "/")
	if rel == "" || rel == "." {
		return false
	}
	parts := strings.Split(rel, "/")
	for i := 1; i <= len(parts); i++ {
		dir := i < len(parts) || isDir
		if d.matcher.Match(parts[:i], dir) {
			return true
		}
	}
	return false
}

// Discover returns every non-ignored regular file under the source root as
// sorted, slash-separated relative paths. Failing to read the tree is fatal
// to the cycle.
func (d *Discoverer) Discover(ctx context.Context) ([]string, error) {
	var files []string
	err := filepath.WalkDir(d.root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(d.root, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if entry.IsDir() {
			if d.Ignored(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() || d.Ignored(rel, false) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "source tree unreadable").
			WithContext("root", d.root).Fatal().Build()
	}
	slices.Sort(files)
	return files, nil
}

// Filter drops ignored entries from a list of relative paths, such as the
// paths reported by a watch event. Order is preserved.
func (d *Discoverer) Filter(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if !d.Ignored(p, false) {
			out = append(out, filepath.ToSlash(p))
		}
	}
	return out
}

// Rel converts an absolute path under the source root to a relative one.
func (d *Discoverer) Rel(abs string) (string, bool) {
	rel, err := filepath.Rel(d.root, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
