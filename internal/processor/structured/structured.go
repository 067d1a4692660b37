// Package structured compiles TOML and YAML data files into normalized JSON.
package structured

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/corpusbuild/internal/diag"
	"git.home.luguber.info/inful/corpusbuild/internal/processor"
)

// Name identifies the processor in logs and metrics.
const Name = "structured"

// Processor parses structured data and re-serializes it as indented JSON with sorted keys.
type Processor struct{}

// New returns the structured-data processor.
func New() *Processor { return &Processor{} }

func (p *Processor) Name() string { return Name }

func (p *Processor) Handles(rel string) bool {
	return processor.HasExt(rel, ".toml", ".yaml", ".yml")
}

func (p *Processor) OutputPath(rel string) string {
	return processor.ReplaceExt(rel, ".json")
}

func (p *Processor) Process(ctx context.Context, req processor.Request) (*diag.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := os.ReadFile(req.InputPath())
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", req.Path, err)
	}

	rec := diag.NewRecord(req.Path)
	value, perr := decode(req.Path, src)
	if perr != nil {
		return rec.Add(diag.KindParseInvalid, perr.Error()), nil
	}

	out, err := Encode(value)
	if err != nil {
		return rec.Add(diag.KindParseInvalid, err.Error()), nil
	}
	if err := processor.WriteFile(req.OutputFile(p.OutputPath(req.Path)), out); err != nil {
		return nil, fmt.Errorf("write %s: %w", p.OutputPath(req.Path), err)
	}
	return rec, nil
}

func decode(rel string, src []byte) (any, error) {
	if processor.HasExt(rel, ".toml") {
		var v map[string]any
		if _, err := toml.Decode(string(src), &v); err != nil {
			return nil, err
		}
		return v, nil
	}
	var v any
	if err := yaml.Unmarshal(src, &v); err != nil {
		return nil, err
	}
	return stringKeys(v), nil
}

// stringKeys rewrites YAML maps with non-string keys so they can be encoded as JSON objects.
func stringKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = stringKeys(e)
		}
		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[fmt.Sprint(k)] = stringKeys(e)
		}
		return m
	case []any:
		for i, e := range t {
			t[i] = stringKeys(e)
		}
		return t
	default:
		return v
	}
}

// Encode renders v as two-space indented JSON with a trailing newline.
// Map keys are sorted, so output is stable across runs.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
