// Package markup minifies compiled HTML without changing how it renders.
package markup

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"git.home.luguber.info/inful/corpusbuild/internal/processor"
)

// Name identifies the normalizer in logs and metrics.
const Name = "markup"

// Normalizer drops comments, collapses insignificant whitespace and removes
// duplicate or empty attributes. The parser tolerates malformed input.
type Normalizer struct{}

// New returns the markup normalizer.
func New() *Normalizer { return &Normalizer{} }

func (n *Normalizer) Name() string { return Name }

func (n *Normalizer) Handles(outRel string) bool { return processor.HasExt(outRel, ".html", ".htm") }

var documentMarker = regexp.MustCompile(`(?i)^\s*(<!--.*?-->\s*)*<(!doctype|html)`)

func (n *Normalizer) Normalize(in []byte) ([]byte, error) {
	var out bytes.Buffer
	if documentMarker.Match(in) {
		doc, err := html.Parse(bytes.NewReader(in))
		if err != nil {
			return nil, err
		}
		clean(doc, false)
		if err := html.Render(&out, doc); err != nil {
			return nil, err
		}
		out.WriteByte('\n')
		return out.Bytes(), nil
	}

	// Fragments are parsed in a body context so no html/head/body wrapper is added.
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(bytes.NewReader(in), body)
	if err != nil {
		return nil, err
	}
	for _, node := range nodes {
		body.AppendChild(node)
	}
	clean(body, false)
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&out, c); err != nil {
			return nil, err
		}
	}
	return out.Bytes(), nil
}

// preserved elements keep their text verbatim.
var preserved = map[atom.Atom]bool{
	atom.Pre: true, atom.Textarea: true, atom.Script: true, atom.Style: true,
}

// structural elements never render whitespace-only children.
var structural = map[atom.Atom]bool{
	atom.Html: true, atom.Head: true, atom.Table: true, atom.Thead: true, atom.Tbody: true,
	atom.Tfoot: true, atom.Tr: true, atom.Ul: true, atom.Ol: true, atom.Dl: true,
	atom.Select: true, atom.Colgroup: true,
}

// block elements make adjacent whitespace insignificant.
var block = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true, atom.Body: true,
	atom.Dd: true, atom.Div: true, atom.Dt: true, atom.Figcaption: true, atom.Figure: true,
	atom.Footer: true, atom.Form: true, atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true,
	atom.H5: true, atom.H6: true, atom.Head: true, atom.Header: true, atom.Hr: true, atom.Li: true,
	atom.Link: true, atom.Main: true, atom.Meta: true, atom.Nav: true, atom.Ol: true, atom.P: true,
	atom.Pre: true, atom.Section: true, atom.Table: true, atom.Td: true, atom.Th: true,
	atom.Title: true, atom.Tr: true, atom.Ul: true, atom.Script: true, atom.Style: true,
}

// droppableWhenEmpty lists attributes whose empty value carries no meaning.
var droppableWhenEmpty = map[string]bool{
	"class": true, "id": true, "style": true, "title": true, "lang": true, "dir": true,
}

var whitespaceRun = regexp.MustCompile(`[ \t\n\r\f]+`)

func clean(n *html.Node, inPreserved bool) {
	if n.Type == html.ElementNode {
		n.Attr = cleanAttrs(n.Attr)
		if preserved[n.DataAtom] {
			inPreserved = true
		}
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		switch c.Type {
		case html.CommentNode:
			n.RemoveChild(c)
		case html.TextNode:
			if !inPreserved {
				collapseText(n, c)
			}
		case html.ElementNode, html.DocumentNode:
			clean(c, inPreserved)
		}
		c = next
	}
}

func collapseText(parent, t *html.Node) {
	if strings.TrimLeft(t.Data, " \t\n\r\f") != "" {
		t.Data = whitespaceRun.ReplaceAllString(t.Data, " ")
		if isBlock(t.PrevSibling) || (t.PrevSibling == nil && isBlock(parent)) {
			t.Data = strings.TrimLeft(t.Data, " ")
		}
		if isBlock(t.NextSibling) || (t.NextSibling == nil && isBlock(parent)) {
			t.Data = strings.TrimRight(t.Data, " ")
		}
		return
	}
	if parent.Type == html.DocumentNode || structural[parent.DataAtom] ||
		isBlock(t.PrevSibling) || isBlock(t.NextSibling) ||
		(isBlock(parent) && (t.PrevSibling == nil || t.NextSibling == nil)) {
		parent.RemoveChild(t)
		return
	}
	t.Data = " "
}

func isBlock(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode && block[n.DataAtom]
}

func cleanAttrs(attrs []html.Attribute) []html.Attribute {
	if len(attrs) == 0 {
		return attrs
	}
	seen := make(map[string]bool, len(attrs))
	out := attrs[:0]
	for _, a := range attrs {
		key := a.Namespace + ":" + strings.ToLower(a.Key)
		if seen[key] {
			continue
		}
		seen[key] = true
		if a.Namespace == "" && droppableWhenEmpty[strings.ToLower(a.Key)] && strings.TrimSpace(a.Val) == "" {
			continue
		}
		out = append(out, a)
	}
	return out
}
