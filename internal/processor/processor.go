// Package processor defines the per-file and corpus-wide processor contracts
// and the ordered registries the build orchestrator dispatches through.
package processor

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/corpusbuild/internal/config"
	"git.home.luguber.info/inful/corpusbuild/internal/diag"
)

// Request identifies one file to process. Path is slash separated and
// relative to both InputRoot and OutputRoot.
type Request struct {
	InputRoot  string
	OutputRoot string
	Path       string
}

// InputPath returns the absolute source path.
func (r Request) InputPath() string {
	return filepath.Join(r.InputRoot, filepath.FromSlash(r.Path))
}

// OutputFile returns the absolute path of outRel under the output root.
func (r Request) OutputFile(outRel string) string {
	return filepath.Join(r.OutputRoot, filepath.FromSlash(outRel))
}

// FileProcessor transforms one source file into at most one output artifact.
//
// Process returns (nil, nil) when the call has no per-file output to report,
// a record describing the file, or an error that fails that file only.
// OutputPath must be pure: it may be called without running Process.
type FileProcessor interface {
	Name() string
	Handles(rel string) bool
	OutputPath(rel string) string
	Process(ctx context.Context, req Request) (*diag.Record, error)
}

// Verbatim is implemented by processors whose output bytes must not be
// rewritten after Process: plain copies, and rendered templates that inline
// raw source bytes. Normalizers never run on it.
type Verbatim interface {
	Verbatim() bool
}

// IsVerbatim reports whether p opts out of normalization.
func IsVerbatim(p FileProcessor) bool {
	v, ok := p.(Verbatim)
	return ok && v.Verbatim()
}

// OutputLocator maps a source path onto the output path of the processor that claims it.
type OutputLocator interface {
	OutputPath(rel string) (string, bool)
}

// CollectionRequest is handed to each collection processor after the per-file barrier.
type CollectionRequest struct {
	InputRoot  string
	OutputRoot string
	// Records holds every per-file record of the cycle. Collection processors
	// may only append to it.
	Records *diag.Set
	Outputs OutputLocator
}

// CollectionProcessor performs one corpus-wide pass.
type CollectionProcessor interface {
	Name() string
	// Artifacts lists the output-root-relative artifact paths this processor owns.
	Artifacts() []string
	Collect(ctx context.Context, req CollectionRequest) error
}

// Env carries the read-only session state handed to processor constructors.
type Env struct {
	Config *config.Config
	Logger *slog.Logger
}

// Log returns the environment logger, falling back to the default logger.
func (e Env) Log() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// ReplaceExt swaps the extension of a slash-separated path.
func ReplaceExt(rel, ext string) string {
	if i := strings.LastIndex(rel, "."); i > strings.LastIndex(rel, "/") {
		return rel[:i] + ext
	}
	return rel + ext
}

// HasExt reports whether rel carries one of exts, compared case-insensitively.
func HasExt(rel string, exts ...string) bool {
	lower := strings.ToLower(rel)
	for _, e := range exts {
		if strings.HasSuffix(lower, e) {
			return true
		}
	}
	return false
}

// WriteFile writes data to dest, creating parent directories.
func WriteFile(dest string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}
