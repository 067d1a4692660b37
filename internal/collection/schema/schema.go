// Package schema validates compiled structured-data outputs against the JSON
// Schemas bound to their source paths.
package schema

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"git.home.luguber.info/inful/corpusbuild/internal/config"
	"git.home.luguber.info/inful/corpusbuild/internal/diag"
	"git.home.luguber.info/inful/corpusbuild/internal/logfields"
	"git.home.luguber.info/inful/corpusbuild/internal/processor"
)

// Name identifies the processor in logs and metrics.
const Name = "schema"

// Binding pairs a path glob with a schema file.
type Binding struct {
	Glob    string
	Schema  string
	pattern gitignore.Pattern
}

// Matches reports whether a source path falls under the binding's glob.
func (b Binding) Matches(rel string) bool {
	return b.pattern.Match(strings.Split(rel, "/"), false) == gitignore.Exclude
}

// Processor is the schema-compliance collection pass.
type Processor struct {
	bindings []Binding
	log      *slog.Logger
}

// New builds the processor from the configured schema bindings.
func New(env processor.Env) *Processor {
	var bs []config.SchemaBinding
	if env.Config != nil {
		bs = env.Config.SchemaBindings()
	}
	return NewWithBindings(env.Log(), bs...)
}

// NewWithBindings builds the processor from explicit bindings.
func NewWithBindings(log *slog.Logger, bindings ...config.SchemaBinding) *Processor {
	p := &Processor{log: log}
	for _, b := range bindings {
		p.bindings = append(p.bindings, Binding{
			Glob:    b.Glob,
			Schema:  b.Schema,
			pattern: gitignore.ParsePattern(b.Glob, nil),
		})
	}
	return p
}

func (p *Processor) Name() string { return Name }

// Artifacts is empty: the pass only appends diagnostics.
func (p *Processor) Artifacts() []string { return nil }

func (p *Processor) Collect(ctx context.Context, req processor.CollectionRequest) error {
	if len(p.bindings) == 0 {
		return nil
	}
	// Schemas are compiled once per pass so edits are picked up next cycle.
	cache := newSchemaCache()
	checked := 0
	for _, rel := range req.Records.Paths() {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, _ := req.Records.Get(rel)
		if rec.Has(diag.KindParseInvalid) {
			continue
		}
		for _, b := range p.bindings {
			if !b.Matches(rel) {
				continue
			}
			outRel, ok := req.Outputs.OutputPath(rel)
			if !ok {
				continue
			}
			if p.validate(req, cache, b, rel, outRel) {
				checked++
			}
		}
	}
	p.log.Debug("Schema pass complete", logfields.Processor(Name), logfields.Count(checked))
	return nil
}

// validate checks one output against one binding and reports whether it ran.
func (p *Processor) validate(req processor.CollectionRequest, cache *schemaCache, b Binding, rel, outRel string) bool {
	f, err := os.Open(filepath.Join(req.OutputRoot, filepath.FromSlash(outRel)))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			req.Records.Append(rel, diag.KindIOError, fmt.Sprintf("read %s: %v", outRel, err))
		}
		return false
	}
	defer f.Close()

	sch, err := cache.get(b.Schema)
	if err != nil {
		req.Records.Append(rel, diag.KindSchemaUnavailable, fmt.Sprintf("schema %s: %s", b.Schema, flatten(err)))
		return false
	}
	inst, err := jsonschema.UnmarshalJSON(f)
	if err != nil {
		req.Records.Append(rel, diag.KindSchemaViolation, fmt.Sprintf("%s is not valid JSON: %v", outRel, err))
		return true
	}
	if err := sch.Validate(inst); err != nil {
		req.Records.Append(rel, diag.KindSchemaViolation, flatten(err))
	}
	return true
}

type schemaCache struct {
	compiler *jsonschema.Compiler
	schemas  map[string]*jsonschema.Schema
	errs     map[string]error
}

func newSchemaCache() *schemaCache {
	return &schemaCache{
		compiler: jsonschema.NewCompiler(),
		schemas:  make(map[string]*jsonschema.Schema),
		errs:     make(map[string]error),
	}
}

func (c *schemaCache) get(file string) (*jsonschema.Schema, error) {
	if s, ok := c.schemas[file]; ok {
		return s, nil
	}
	if err, ok := c.errs[file]; ok {
		return nil, err
	}
	s, err := c.compiler.Compile(file)
	if err != nil {
		c.errs[file] = err
		return nil, err
	}
	c.schemas[file] = s
	return s, nil
}

// flatten folds multi-line validator output into one diagnostic line.
func flatten(err error) string {
	lines := strings.Split(strings.TrimSpace(err.Error()), "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return strings.Join(lines, "; ")
}
