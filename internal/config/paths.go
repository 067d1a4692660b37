package config

import (
	"path/filepath"
	"strings"
)

// Paths holds the absolute locations derived from the settings.
type Paths struct {
	ProjectRoot   string
	SourceRoot    string
	OutputRoot    string
	TemplateRoot  string
	ArtifactsRoot string
	SettingsFile  string
}

func resolvePaths(cfg *Config, root string) Paths {
	abs := func(p string) string {
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Join(root, filepath.FromSlash(p))
	}
	out := abs(cfg.Output)
	return Paths{
		ProjectRoot:   root,
		SourceRoot:    root,
		OutputRoot:    out,
		TemplateRoot:  abs(cfg.TemplateRoot),
		ArtifactsRoot: filepath.Join(out, filepath.FromSlash(cfg.Build.ArtifactsDir)),
		SettingsFile:  filepath.Join(root, FileName),
	}
}

// OutputWithinSource returns the output root relative to the source root
// (slash separated) when it is nested inside it.
func (p Paths) OutputWithinSource() (string, bool) {
	return within(p.SourceRoot, p.OutputRoot)
}

// SourceRel returns abs relative to the source root when it lies inside it.
func (p Paths) SourceRel(abs string) (string, bool) {
	return within(p.SourceRoot, abs)
}

// TemplateRel returns the template root relative to the source root.
func (p Paths) TemplateRel() (string, bool) {
	return within(p.SourceRoot, p.TemplateRoot)
}

func within(base, target string) (string, bool) {
	rel, err := filepath.Rel(base, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	if rel == "." {
		return "", true
	}
	return filepath.ToSlash(rel), true
}
