// Package svg minifies vector images produced by the typesetting toolchain
// or copied from the source tree.
package svg

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/corpusbuild/internal/processor"
)

// Name identifies the normalizer in logs and metrics.
const Name = "svg"

// DefaultPrecision is the number of decimals kept in geometry values.
const DefaultPrecision = 3

// Normalizer rewrites SVG documents into a smaller equivalent form.
type Normalizer struct {
	precision int
}

// New returns an SVG normalizer rounding geometry to precision decimals.
// A negative precision selects DefaultPrecision.
func New(precision int) *Normalizer {
	if precision < 0 {
		precision = DefaultPrecision
	}
	return &Normalizer{precision: precision}
}

func (n *Normalizer) Name() string { return Name }

func (n *Normalizer) Handles(outRel string) bool { return processor.HasExt(outRel, ".svg") }

func (n *Normalizer) Normalize(in []byte) ([]byte, error) {
	doc, err := parse(in)
	if err != nil {
		return nil, err
	}
	doc.children = n.prune(doc.children, false)

	var out bytes.Buffer
	for _, c := range doc.children {
		write(&out, c)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

type kind int

const (
	kindElement kind = iota
	kindText
	kindProcInst
	kindDirective
)

type node struct {
	kind     kind
	name     xml.Name
	attrs    []xml.Attr
	children []*node
	data     string
}

func parse(in []byte) (*node, error) {
	dec := xml.NewDecoder(bytes.NewReader(in))
	root := &node{kind: kindElement}
	stack := []*node{root}
	for {
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		top := stack[len(stack)-1]
		switch t := tok.(type) {
		case xml.StartElement:
			el := &node{kind: kindElement, name: t.Name, attrs: append([]xml.Attr(nil), t.Attr...)}
			top.children = append(top.children, el)
			stack = append(stack, el)
		case xml.EndElement:
			if len(stack) == 1 || top.name != t.Name {
				return nil, fmt.Errorf("unexpected end element </%s>", qname(t.Name))
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			top.children = append(top.children, &node{kind: kindText, data: string(t)})
		case xml.ProcInst:
			top.children = append(top.children, &node{kind: kindProcInst, name: xml.Name{Local: t.Target}, data: string(t.Inst)})
		case xml.Directive:
			top.children = append(top.children, &node{kind: kindDirective, data: string(t)})
		case xml.Comment:
			// dropped
		}
	}
	if len(stack) != 1 {
		return nil, fmt.Errorf("unclosed element <%s>", qname(stack[len(stack)-1].name))
	}
	return root, nil
}

// editorNamespaces are authoring-tool extensions with no rendering effect.
var editorNamespaces = map[string]bool{"inkscape": true, "sodipodi": true}

// textual elements keep their whitespace.
var textual = map[string]bool{
	"text": true, "tspan": true, "textPath": true, "style": true, "script": true, "title": true, "desc": true,
}

func isEditor(name xml.Name) bool { return editorNamespaces[name.Space] }

func (n *Normalizer) prune(children []*node, inText bool) []*node {
	out := children[:0]
	for _, c := range children {
		switch c.kind {
		case kindText:
			if !inText && strings.TrimSpace(c.data) == "" {
				continue
			}
		case kindElement:
			if isEditor(c.name) || c.name.Local == "metadata" {
				continue
			}
			c.attrs = n.cleanAttrs(c.name, c.attrs)
			c.children = n.prune(c.children, inText || textual[c.name.Local])
			if c.name.Local == "g" && len(c.children) == 0 && !hasAttr(c.attrs, "id") {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

// geometry lists attributes holding plain numbers or number lists.
var geometry = map[string]bool{
	"x": true, "y": true, "width": true, "height": true, "cx": true, "cy": true, "r": true,
	"rx": true, "ry": true, "x1": true, "y1": true, "x2": true, "y2": true, "dx": true, "dy": true,
	"stroke-width": true, "viewBox": true, "points": true, "transform": true,
}

func (n *Normalizer) cleanAttrs(el xml.Name, attrs []xml.Attr) []xml.Attr {
	out := attrs[:0]
	for _, a := range attrs {
		if isEditor(a.Name) || (a.Name.Space == "xmlns" && editorNamespaces[a.Name.Local]) {
			continue
		}
		if a.Name.Space == "" {
			switch {
			case a.Name.Local == "d" && el.Local == "path":
				a.Value = n.compactPath(a.Value)
			case geometry[a.Name.Local]:
				a.Value = n.roundAll(a.Value)
			}
		}
		out = append(out, a)
	}
	return out
}

func hasAttr(attrs []xml.Attr, local string) bool {
	for _, a := range attrs {
		if a.Name.Space == "" && a.Name.Local == local {
			return true
		}
	}
	return false
}

var number = regexp.MustCompile(`[-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?`)

func (n *Normalizer) roundAll(v string) string {
	return number.ReplaceAllStringFunc(v, func(s string) string { return n.format(s, false) })
}

func (n *Normalizer) format(s string, short bool) string {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	scale := math.Pow(10, float64(n.precision))
	f = math.Round(f*scale) / scale
	if f == 0 {
		return "0"
	}
	out := strconv.FormatFloat(f, 'f', -1, 64)
	if short {
		if strings.HasPrefix(out, "0.") {
			out = out[1:]
		} else if strings.HasPrefix(out, "-0.") {
			out = "-" + out[2:]
		}
	}
	return out
}

var pathToken = regexp.MustCompile(`[MmLlHhVvCcSsQqTtZz]|[-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?`)

// compactPath rounds coordinates and drops redundant separators. Arc
// commands pack flags without separators and are left untouched.
func (n *Normalizer) compactPath(d string) string {
	if strings.ContainsAny(d, "Aa") {
		return d
	}
	var b strings.Builder
	prevNumber := false
	for _, tok := range pathToken.FindAllString(d, -1) {
		if len(tok) == 1 && strings.ContainsAny(tok, "MmLlHhVvCcSsQqTtZz") {
			b.WriteString(tok)
			prevNumber = false
			continue
		}
		num := n.format(tok, true)
		if prevNumber && !strings.HasPrefix(num, "-") {
			b.WriteByte(' ')
		}
		b.WriteString(num)
		prevNumber = true
	}
	return b.String()
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", `"`, "&quot;", "\n", "&#xA;", "\t", "&#x9;", "\r", "&#xD;")
)

func qname(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

func write(b *bytes.Buffer, n *node) {
	switch n.kind {
	case kindText:
		b.WriteString(textEscaper.Replace(n.data))
	case kindProcInst:
		b.WriteString("<?" + n.name.Local)
		if n.data != "" {
			b.WriteString(" " + n.data)
		}
		b.WriteString("?>")
	case kindDirective:
		b.WriteString("<!" + n.data + ">")
	case kindElement:
		b.WriteString("<" + qname(n.name))
		for _, a := range n.attrs {
			b.WriteString(" " + qname(a.Name) + `="` + attrEscaper.Replace(a.Value) + `"`)
		}
		if len(n.children) == 0 {
			b.WriteString("/>")
			return
		}
		b.WriteByte('>')
		for _, c := range n.children {
			write(b, c)
		}
		b.WriteString("</" + qname(n.name) + ">")
	}
}
