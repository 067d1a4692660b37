// Package collection holds helpers shared by the corpus-wide passes that
// run after every per-file task of a cycle has finished.
package collection

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"git.home.luguber.info/inful/corpusbuild/internal/normalize"
	"git.home.luguber.info/inful/corpusbuild/internal/processor"
	"git.home.luguber.info/inful/corpusbuild/internal/processor/structured"
)

// StateDir is the hidden output subdirectory holding build bookkeeping.
const StateDir = ".corpusbuild"

// WriteJSON atomically writes v as indented JSON to rel under outputRoot.
func WriteJSON(outputRoot, rel string, v any) error {
	data, err := structured.Encode(v)
	if err != nil {
		return err
	}
	abs := filepath.Join(outputRoot, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o750); err != nil {
		return err
	}
	return normalize.WriteAtomic(abs, data)
}

// SourceIndex maps output paths back to the source paths that produced them.
func SourceIndex(req processor.CollectionRequest) map[string]string {
	idx := make(map[string]string)
	if req.Outputs == nil || req.Records == nil {
		return idx
	}
	for _, src := range req.Records.Paths() {
		if out, ok := req.Outputs.OutputPath(src); ok {
			idx[out] = src
		}
	}
	return idx
}

// WalkOutputs visits every regular file under outputRoot in lexical order,
// skipping the given output-relative directories and the state directory.
// fn receives slash-separated relative paths.
func WalkOutputs(outputRoot string, skip []string, fn func(rel string) error) error {
	skipped := make([]string, 0, len(skip)+1)
	for _, s := range append(slices.Clone(skip), StateDir) {
		skipped = append(skipped, path.Clean(strings.Trim(filepath.ToSlash(s), "/")))
	}
	return filepath.WalkDir(outputRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(outputRoot, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel != "." && slices.Contains(skipped, rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return fn(rel)
	})
}
