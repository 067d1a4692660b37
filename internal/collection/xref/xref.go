// Package xref builds the corpus cross-reference graph and backlink index
// from the references compiled documents declare.
package xref

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"git.home.luguber.info/inful/corpusbuild/internal/collection"
	"git.home.luguber.info/inful/corpusbuild/internal/collection/docmeta"
	"git.home.luguber.info/inful/corpusbuild/internal/diag"
	"git.home.luguber.info/inful/corpusbuild/internal/docid"
	"git.home.luguber.info/inful/corpusbuild/internal/logfields"
	"git.home.luguber.info/inful/corpusbuild/internal/processor"
)

// Name identifies the processor in logs and metrics.
const Name = "xref"

const (
	GraphFile     = "graph.json"
	BacklinksFile = "backlinks.json"
)

// Node is one compiled document in the graph.
type Node struct {
	ID      string `json:"id"`
	Href    string `json:"href"`
	Title   string `json:"title"`
	IsIndex bool   `json:"isIndex"`
}

// Link is an undirected edge; Source sorts before Target.
type Link struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Graph is the serialized form of graph.json.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

// Backlinks maps an id to the sorted ids that reference it.
type Backlinks map[string][]string

// Processor is the cross-reference collection pass.
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

func (p *Processor) Artifacts() []string {
	return []string{path.Join(p.artifactsDir, GraphFile), path.Join(p.artifactsDir, BacklinksFile)}
}

type document struct {
	node   Node
	refs   []string
	source string
}

func (p *Processor) Collect(ctx context.Context, req processor.CollectionRequest) error {
	sources := collection.SourceIndex(req)
	docs := make(map[string]*document)
	var order []string

	err := collection.WalkOutputs(req.OutputRoot, []string{p.artifactsDir}, func(rel string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !docid.IsDocument(rel) {
			return nil
		}
		meta, err := docmeta.ReadFile(filepath.Join(req.OutputRoot, filepath.FromSlash(rel)))
		if err != nil {
			return fmt.Errorf("read %s: %w", rel, err)
		}
		id, isIndex := docid.FromOutputPath(rel)
		if prev, dup := docs[id]; dup {
			p.log.Warn("Duplicate document id; keeping first",
				logfields.Path(rel), slog.String("id", id), slog.String("kept", prev.node.Href))
			return nil
		}
		docs[id] = &document{
			node:   Node{ID: id, Href: docid.Href(rel), Title: meta.Title, IsIndex: isIndex},
			refs:   meta.Refs,
			source: sources[rel],
		}
		order = append(order, id)
		return nil
	})
	if err != nil {
		return err
	}

	graph, backlinks := p.link(req, docs, order)
	for _, art := range []struct {
		name string
		v    any
	}{{GraphFile, graph}, {BacklinksFile, backlinks}} {
		rel := path.Join(p.artifactsDir, art.name)
		if err := collection.WriteJSON(req.OutputRoot, rel, art.v); err != nil {
			return fmt.Errorf("write %s: %w", rel, err)
		}
	}
	p.log.Debug("Link graph written",
		logfields.Processor(Name), slog.Int("nodes", len(graph.Nodes)), slog.Int("links", len(graph.Links)))
	return nil
}

func (p *Processor) link(req processor.CollectionRequest, docs map[string]*document, order []string) (Graph, Backlinks) {
	slices.Sort(order)
	graph := Graph{Nodes: make([]Node, 0, len(order)), Links: []Link{}}
	backlinks := make(Backlinks, len(order))
	edges := make(map[Link]struct{})

	for _, id := range order {
		graph.Nodes = append(graph.Nodes, docs[id].node)
		backlinks[id] = []string{}
	}
	for _, id := range order {
		d := docs[id]
		for _, target := range d.refs {
			if target == id {
				continue
			}
			if _, ok := docs[target]; !ok {
				if d.source != "" && req.Records != nil {
					req.Records.Append(d.source, diag.KindBrokenReference,
						fmt.Sprintf("reference to %s does not resolve to a document", docid.RefHref(target)))
				}
				continue
			}
			backlinks[target] = append(backlinks[target], id)
			edge := Link{Source: min(id, target), Target: max(id, target)}
			if _, seen := edges[edge]; !seen {
				edges[edge] = struct{}{}
				graph.Links = append(graph.Links, edge)
			}
		}
	}
	for id, refs := range backlinks {
		slices.Sort(refs)
		backlinks[id] = slices.Compact(refs)
	}
	slices.SortFunc(graph.Links, func(a, b Link) int {
		return cmp.Or(strings.Compare(a.Source, b.Source), strings.Compare(a.Target, b.Target))
	})
	return graph, backlinks
}
