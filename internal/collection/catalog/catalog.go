// Package catalog aggregates the index documents of top-level collections
// into the corpus catalog.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"git.home.luguber.info/inful/corpusbuild/internal/collection"
	"git.home.luguber.info/inful/corpusbuild/internal/collection/docmeta"
	"git.home.luguber.info/inful/corpusbuild/internal/docid"
	"git.home.luguber.info/inful/corpusbuild/internal/logfields"
	"git.home.luguber.info/inful/corpusbuild/internal/processor"
)

// Name identifies the processor in logs and metrics.
const Name = "catalog"

// File is the artifact name under the artifacts directory.
const File = "catalog.json"

// Entry describes one collection root.
type Entry struct {
	Title   string   `json:"title"`
	Authors []string `json:"authors"`
	Tags    []string `json:"tags"`
	Href    string   `json:"href"`
}

// Processor is the catalog collection pass.
type Processor struct {
	artifactsDir string
	log          *slog.Logger
}

// New returns the processor writing into the configured artifacts directory.
func New(env processor.Env) *Processor {
	dir := "_corpus"
	if env.Config != nil && env.Config.Build.ArtifactsDir != "" {
		dir = env.Config.Build.ArtifactsDir
	}
	return &Processor{artifactsDir: path.Clean(filepath.ToSlash(dir)), log: env.Log()}
}

func (p *Processor) Name() string { return Name }

func (p *Processor) Artifacts() []string { return []string{path.Join(p.artifactsDir, File)} }

func (p *Processor) Collect(ctx context.Context, req processor.CollectionRequest) error {
	entries, err := p.Entries(ctx, req.OutputRoot)
	if err != nil {
		return err
	}
	rel := path.Join(p.artifactsDir, File)
	if err := collection.WriteJSON(req.OutputRoot, rel, entries); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	p.log.Debug("Catalog written", logfields.Processor(Name), logfields.Count(len(entries)))
	return nil
}

// Entries scans the immediate subdirectories of outputRoot. Entries are
// sorted by href so the artifact is stable across filesystems.
func (p *Processor) Entries(ctx context.Context, outputRoot string) ([]Entry, error) {
	dirs, err := os.ReadDir(outputRoot)
	if err != nil {
		return nil, fmt.Errorf("list output root: %w", err)
	}
	top := strings.SplitN(p.artifactsDir, "/", 2)[0]

	entries := []Entry{}
	for _, d := range dirs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !d.IsDir() || d.Name() == top || d.Name() == collection.StateDir {
			continue
		}
		index := path.Join(d.Name(), docid.IndexName+docid.DocumentExt)
		meta, err := docmeta.ReadFile(filepath.Join(outputRoot, filepath.FromSlash(index)))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", index, err)
		}
		if missing := missingFields(meta); len(missing) > 0 {
			p.log.Warn("Collection index lacks required metadata; excluded from catalog",
				logfields.Path(index), slog.String("missing", strings.Join(missing, ",")))
			continue
		}
		tags := meta.Tags
		if tags == nil {
			tags = []string{}
		}
		entries = append(entries, Entry{
			Title:   meta.Title,
			Authors: meta.Authors,
			Tags:    tags,
			Href:    docid.Href(index),
		})
	}
	slices.SortFunc(entries, func(a, b Entry) int { return strings.Compare(a.Href, b.Href) })
	return entries, nil
}

func missingFields(m docmeta.Meta) []string {
	var missing []string
	if m.Title == "" {
		missing = append(missing, "title")
	}
	if len(m.Authors) == 0 {
		missing = append(missing, "authors")
	}
	return missing
}
