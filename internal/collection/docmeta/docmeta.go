// Package docmeta reads the metadata a compiled document carries in its head.
package docmeta

import (
	"io"
	"os"
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"git.home.luguber.info/inful/corpusbuild/internal/docid"
)

// RefRel is the link relation naming a declared outbound reference.
const RefRel = "x-ref"

// Meta is the metadata of one compiled document.
type Meta struct {
	Title   string
	Authors []string
	Tags    []string
	// Refs holds the target ids of declared references, sorted and unique.
	Refs        []string
	Fingerprint string
}

// ReadFile extracts metadata from the document at path.
func ReadFile(path string) (Meta, error) {
	f, err := os.Open(path)
	if err != nil {
		return Meta{}, err
	}
	defer f.Close()
	return Extract(f)
}

// Extract parses an HTML document and collects its metadata. Elements are
// read wherever they appear since hand-written templates do not always keep
// them in the head.
func Extract(r io.Reader) (Meta, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return Meta{}, err
	}
	var m Meta
	titleSeen := false
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Title:
				if !titleSeen {
					titleSeen = true
					m.Title = strings.TrimSpace(textOf(n))
				}
			case atom.Meta:
				content := strings.TrimSpace(attr(n, "content"))
				switch strings.ToLower(attr(n, "name")) {
				case "author":
					if content != "" {
						m.Authors = append(m.Authors, content)
					}
				case "keywords":
					for _, t := range strings.Split(content, ",") {
						if t = strings.TrimSpace(t); t != "" {
							m.Tags = append(m.Tags, t)
						}
					}
				case "fingerprint":
					m.Fingerprint = content
				}
			case atom.Link:
				if hasRel(attr(n, "rel"), RefRel) {
					if href := strings.TrimSpace(attr(n, "href")); href != "" {
						m.Refs = append(m.Refs, docid.Resolve(href, ""))
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	slices.Sort(m.Refs)
	m.Refs = slices.Compact(m.Refs)
	return m, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func hasRel(rel, want string) bool {
	for _, r := range strings.Fields(rel) {
		if strings.EqualFold(r, want) {
			return true
		}
	}
	return false
}

func textOf(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}
