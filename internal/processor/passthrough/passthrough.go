// Package passthrough copies files no other processor claims.
package passthrough

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/corpusbuild/internal/diag"
	"git.home.luguber.info/inful/corpusbuild/internal/processor"
)

// Name identifies the processor in logs and metrics.
const Name = "passthrough"

// Processor is the catch-all: it claims every path and copies bytes unchanged.
type Processor struct{}

// New returns the catch-all processor.
func New() *Processor { return &Processor{} }

func (p *Processor) Name() string { return Name }

func (p *Processor) Handles(string) bool { return true }

func (p *Processor) OutputPath(rel string) string { return rel }

// Verbatim marks copies as exempt from normalization.
func (p *Processor) Verbatim() bool { return true }

func (p *Processor) Process(ctx context.Context, req processor.Request) (*diag.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := copyFile(req.InputPath(), req.OutputFile(req.Path)); err != nil {
		return nil, fmt.Errorf("copy %s: %w", req.Path, err)
	}
	return diag.NewRecord(req.Path), nil
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm()|0o200)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = io.Copy(out, in)
	return err
}
