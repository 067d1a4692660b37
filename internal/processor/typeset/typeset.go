// Package typeset compiles .tex sources into SVG through an external toolchain.
package typeset

import (
	"context"
	"fmt"
	"os"
	"path"

	"git.home.luguber.info/inful/corpusbuild/internal/diag"
	"git.home.luguber.info/inful/corpusbuild/internal/processor"
)

// Name identifies the processor in logs and metrics.
const Name = "typeset"

// workDirName holds one work directory per source; each is removed after its run.
const workDirName = ".typeset"

// Processor runs Compile then Convert for each source, each in its own work directory.
type Processor struct {
	toolchain Toolchain
}

// New returns a typeset processor using tc.
func New(tc Toolchain) *Processor {
	return &Processor{toolchain: tc}
}

// NewFromEnv builds the processor around the configured commands.
func NewFromEnv(env processor.Env) *Processor {
	t := env.Config.Typeset
	return New(CommandToolchain{Compiler: t.Compiler, Converter: t.Converter, Timeout: t.Timeout})
}

func (p *Processor) Name() string { return Name }

func (p *Processor) Handles(rel string) bool { return processor.HasExt(rel, ".tex") }

func (p *Processor) OutputPath(rel string) string { return processor.ReplaceExt(rel, ".svg") }

// WorkDir returns the output-root-relative working directory for rel.
func WorkDir(rel string) string {
	base := path.Base(rel)
	return path.Join(path.Dir(rel), workDirName, base[:len(base)-len(path.Ext(base))])
}

func (p *Processor) Process(ctx context.Context, req processor.Request) (*diag.Record, error) {
	source := req.InputPath()
	if _, err := os.Stat(source); err != nil {
		return nil, err
	}
	workDir := req.OutputFile(WorkDir(req.Path))
	if err := os.MkdirAll(workDir, 0o750); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	// The shared .typeset parent stays; siblings may be creating their own work dirs in it.
	defer func() { _ = os.RemoveAll(workDir) }()

	rec := diag.NewRecord(req.Path)
	intermediate, err := p.toolchain.Compile(ctx, workDir, source)
	if err != nil {
		return rec.Add(diag.KindCompileFailed, err.Error()), nil
	}
	artifact, err := p.toolchain.Convert(ctx, workDir, intermediate)
	if err != nil {
		return rec.Add(diag.KindImageConversionFailed, err.Error()), nil
	}

	data, err := os.ReadFile(artifact)
	if err != nil {
		return nil, fmt.Errorf("read converted artifact: %w", err)
	}
	if err := processor.WriteFile(req.OutputFile(p.OutputPath(req.Path)), data); err != nil {
		return nil, fmt.Errorf("write %s: %w", p.OutputPath(req.Path), err)
	}
	return rec, nil
}
