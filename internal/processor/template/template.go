// Package template renders .njk templates with pongo2 in an environment
// rooted at the configured template directory.
package template

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"

	"git.home.luguber.info/inful/corpusbuild/internal/diag"
	"git.home.luguber.info/inful/corpusbuild/internal/processor"
)

// Name identifies the processor in logs and metrics.
const Name = "template"

// templateExts are the extensions treated as template sources when they change under the template root.
var templateExts = []string{".njk", ".html", ".jinja", ".j2"}

// Processor renders templates and records which files each template inlined.
type Processor struct {
	templateRoot string // absolute
	templateRel  string // relative to the source root, "" when equal or outside
	insideSource bool

	mu   sync.RWMutex
	deps map[string][]string // template rel -> source-relative raw includes
}

// New returns a template processor rooted at the configured template directory.
func New(env processor.Env) *Processor {
	paths := env.Config.Paths
	rel, inside := paths.TemplateRel()
	return &Processor{
		templateRoot: paths.TemplateRoot,
		templateRel:  rel,
		insideSource: inside,
		deps:         make(map[string][]string),
	}
}

func (p *Processor) Name() string { return Name }

func (p *Processor) Handles(rel string) bool { return processor.HasExt(rel, ".njk") }

func (p *Processor) OutputPath(rel string) string { return processor.ReplaceExt(rel, ".html") }

// Verbatim keeps includeRaw output byte-exact; markup normalization would
// re-escape and re-flow the inlined text.
func (p *Processor) Verbatim() bool { return true }

func (p *Processor) Process(ctx context.Context, req processor.Request) (*diag.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec := diag.NewRecord(req.Path)
	r := &render{proc: p, req: req}

	out, err := r.execute()
	p.setDeps(req.Path, r.deps)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && r.sourceMissing {
			return nil, err
		}
		return rec.Add(diag.KindCompileFailed, err.Error()), nil
	}
	if err := processor.WriteFile(req.OutputFile(p.OutputPath(req.Path)), out); err != nil {
		return nil, fmt.Errorf("write %s: %w", p.OutputPath(req.Path), err)
	}
	return rec, nil
}

// Dependents returns the templates that must be re-rendered when changed
// source-relative paths change. A changed template under the template root
// invalidates every known template; a changed raw include invalidates the
// templates that inlined it.
func (p *Processor) Dependents(changed []string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	all := false
	changedSet := make(map[string]struct{}, len(changed))
	for _, c := range changed {
		changedSet[c] = struct{}{}
		if p.underTemplateRoot(c) && processor.HasExt(c, templateExts...) {
			all = true
		}
	}

	var out []string
	for tpl, deps := range p.deps {
		if all || slices.ContainsFunc(deps, func(d string) bool { _, ok := changedSet[d]; return ok }) {
			out = append(out, tpl)
		}
	}
	slices.Sort(out)
	return out
}

// Forget drops dependency tracking for a removed template.
func (p *Processor) Forget(rel string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.deps, rel)
}

func (p *Processor) setDeps(rel string, deps []string) {
	slices.Sort(deps)
	deps = slices.Compact(deps)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deps[rel] = deps
}

func (p *Processor) underTemplateRoot(rel string) bool {
	if !p.insideSource {
		return false
	}
	return p.templateRel == "" || rel == p.templateRel || strings.HasPrefix(rel, p.templateRel+"/")
}

// render holds the state of a single template execution.
type render struct {
	proc          *Processor
	req           processor.Request
	deps          []string
	sourceMissing bool
}

func (r *render) execute() ([]byte, error) {
	src := r.req.InputPath()
	if _, err := os.Stat(src); err != nil {
		r.sourceMissing = true
		return nil, err
	}
	loader, err := pongo2.NewLocalFileSystemLoader(r.proc.templateRoot)
	if err != nil {
		return nil, fmt.Errorf("template root %s: %w", r.proc.templateRoot, err)
	}
	set := pongo2.NewSet("corpusbuild:"+r.req.Path, loader)
	set.Globals["includeRaw"] = r.includeRaw

	tpl, err := set.FromFile(src)
	if err != nil {
		return nil, err
	}
	return tpl.ExecuteBytes(pongo2.Context{
		"path":        r.req.Path,
		"output_path": r.proc.OutputPath(r.req.Path),
	})
}

// includeRaw inlines another file's bytes unescaped. Names are resolved
// against the template root first; names starting with ./ or ../, and
// template-root misses, resolve against the calling template's directory.
func (r *render) includeRaw(name string) (*pongo2.Value, error) {
	candidates := r.candidates(name)
	for _, c := range candidates {
		data, err := os.ReadFile(c)
		if err == nil {
			r.track(c)
			return pongo2.AsSafeValue(string(data)), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			r.track(c)
			return nil, fmt.Errorf("includeRaw(%q): %w", name, err)
		}
	}
	for _, c := range candidates {
		r.track(c)
	}
	return nil, fmt.Errorf("includeRaw(%q): file not found", name)
}

func (r *render) candidates(name string) []string {
	name = filepath.FromSlash(name)
	if filepath.IsAbs(name) {
		return []string{filepath.Clean(name)}
	}
	callerDir := filepath.Dir(r.req.InputPath())
	caller := filepath.Join(callerDir, name)
	slashed := filepath.ToSlash(name)
	if strings.HasPrefix(slashed, "./") || strings.HasPrefix(slashed, "../") {
		return []string{caller}
	}
	rooted := filepath.Join(r.proc.templateRoot, name)
	if rooted == caller {
		return []string{rooted}
	}
	return []string{rooted, caller}
}

// track records abs as a dependency when it lies inside the source root.
func (r *render) track(abs string) {
	rel, err := filepath.Rel(r.req.InputRoot, abs)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return
	}
	r.deps = append(r.deps, path.Clean(rel))
}
