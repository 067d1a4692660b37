// Package document compiles Markdown sources with YAML frontmatter into
// standalone HTML documents carrying their metadata in the head.
package document

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"net/url"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"

	"git.home.luguber.info/inful/corpusbuild/internal/diag"
	"git.home.luguber.info/inful/corpusbuild/internal/docid"
	"git.home.luguber.info/inful/corpusbuild/internal/frontmatter"
	"git.home.luguber.info/inful/corpusbuild/internal/processor"
)

// Name identifies the processor in logs and metrics.
const Name = "document"

// Processor renders Markdown documents.
type Processor struct {
	md goldmark.Markdown
}

// New returns a document processor.
func New() *Processor {
	return &Processor{md: goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)}
}

func (p *Processor) Name() string { return Name }

func (p *Processor) Handles(rel string) bool { return processor.HasExt(rel, ".md") }

func (p *Processor) OutputPath(rel string) string { return processor.ReplaceExt(rel, docid.DocumentExt) }

func (p *Processor) Process(ctx context.Context, req processor.Request) (*diag.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := os.ReadFile(req.InputPath())
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", req.Path, err)
	}

	rec := diag.NewRecord(req.Path)
	meta, body, err := frontmatter.Parse(src)
	if err != nil {
		return rec.Add(diag.KindParseInvalid, err.Error()), nil
	}

	outRel := p.OutputPath(req.Path)
	page, err := p.Render(meta, body, path.Dir(outRel))
	if err != nil {
		return rec.Add(diag.KindCompileFailed, err.Error()), nil
	}
	if err := processor.WriteFile(req.OutputFile(outRel), page); err != nil {
		return nil, fmt.Errorf("write %s: %w", outRel, err)
	}
	return rec, nil
}

// Render produces the HTML page for a parsed document. dir is the output
// directory of the page and anchors relative references.
func (p *Processor) Render(meta frontmatter.Meta, body []byte, dir string) ([]byte, error) {
	if dir == "." {
		dir = ""
	}
	doc := p.md.Parser().Parse(text.NewReader(body))

	refs := make([]string, 0, len(meta.Links))
	for _, l := range meta.Links {
		refs = append(refs, docid.Resolve(l, ""))
	}
	title := meta.Title
	err := gmast.Walk(doc, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *gmast.Heading:
			if title == "" && node.Level == 1 {
				title = plainText(node, body)
			}
		case *gmast.Link:
			if dest, ok := localDocument(string(node.Destination)); ok {
				refs = append(refs, docid.Resolve(dest, dir))
				node.Destination = []byte(rewriteExt(string(node.Destination)))
			}
		}
		return gmast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}

	var content bytes.Buffer
	if err := p.md.Renderer().Render(&content, body, doc); err != nil {
		return nil, err
	}

	slices.Sort(refs)
	refs = slices.Compact(refs)

	var out bytes.Buffer
	out.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&out, "<title>%s</title>\n", html.EscapeString(title))
	for _, a := range meta.Authors {
		fmt.Fprintf(&out, "<meta name=\"author\" content=\"%s\">\n", html.EscapeString(a))
	}
	if len(meta.Tags) > 0 {
		fmt.Fprintf(&out, "<meta name=\"keywords\" content=\"%s\">\n", html.EscapeString(strings.Join(meta.Tags, ",")))
	}
	if meta.Fingerprint != "" {
		fmt.Fprintf(&out, "<meta name=\"fingerprint\" content=\"%s\">\n", html.EscapeString(meta.Fingerprint))
	}
	for _, r := range refs {
		fmt.Fprintf(&out, "<link rel=\"x-ref\" href=\"%s\">\n", html.EscapeString(docid.RefHref(r)))
	}
	out.WriteString("</head>\n<body>\n")
	out.Write(content.Bytes())
	out.WriteString("</body>\n</html>\n")
	return out.Bytes(), nil
}

// localDocument reports whether dest links to another Markdown source in the corpus.
func localDocument(dest string) (string, bool) {
	u, err := url.Parse(dest)
	if err != nil || u.Scheme != "" || u.Host != "" || u.Path == "" {
		return "", false
	}
	if !strings.EqualFold(path.Ext(u.Path), ".md") {
		return "", false
	}
	return u.Path, true
}

func rewriteExt(dest string) string {
	cut := len(dest)
	if i := strings.IndexAny(dest, "#?"); i >= 0 {
		cut = i
	}
	return processor.ReplaceExt(dest[:cut], docid.DocumentExt) + dest[cut:]
}

func plainText(n gmast.Node, source []byte) string {
	var b strings.Builder
	_ = gmast.Walk(n, func(c gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *gmast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *gmast.String:
			b.Write(t.Value)
		}
		return gmast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}
