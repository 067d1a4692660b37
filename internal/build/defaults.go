package build

import (
	"git.home.luguber.info/inful/corpusbuild/internal/collection/catalog"
	"git.home.luguber.info/inful/corpusbuild/internal/collection/schema"
	"git.home.luguber.info/inful/corpusbuild/internal/collection/xref"
	"git.home.luguber.info/inful/corpusbuild/internal/normalize"
	"git.home.luguber.info/inful/corpusbuild/internal/normalize/markup"
	"git.home.luguber.info/inful/corpusbuild/internal/normalize/svg"
	"git.home.luguber.info/inful/corpusbuild/internal/processor"
	"git.home.luguber.info/inful/corpusbuild/internal/processor/document"
	"git.home.luguber.info/inful/corpusbuild/internal/processor/passthrough"
	"git.home.luguber.info/inful/corpusbuild/internal/processor/structured"
	"git.home.luguber.info/inful/corpusbuild/internal/processor/template"
	"git.home.luguber.info/inful/corpusbuild/internal/processor/typeset"
)

// DefaultProcessors returns the file processors in dispatch order. The
// catch-all copy comes last so every more specific processor wins.
func DefaultProcessors(env processor.Env) *processor.Registry {
	return processor.NewRegistry(
		structured.New(),
		template.New(env),
		typeset.NewFromEnv(env),
		document.New(),
		passthrough.New(),
	)
}

// DefaultCollections returns the collection passes in registration order.
// Schema checking runs first since it only reads per-file outputs.
func DefaultCollections(env processor.Env) (*processor.CollectionRegistry, error) {
	reg := processor.NewCollectionRegistry()
	for _, p := range []processor.CollectionProcessor{
		schema.New(env),
		xref.New(env),
		catalog.New(env),
	} {
		if err := reg.Register(p); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// DefaultNormalizers returns the normalizers enabled by the configuration.
func DefaultNormalizers(env processor.Env) []normalize.Normalizer {
	var out []normalize.Normalizer
	if env.Config == nil {
		return []normalize.Normalizer{markup.New(), svg.New(svg.DefaultPrecision)}
	}
	if env.Config.Normalize.Markup {
		out = append(out, markup.New())
	}
	if env.Config.Normalize.SVG {
		out = append(out, svg.New(env.Config.Normalize.SVGPrecision))
	}
	return out
}
