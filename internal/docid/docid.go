// Package docid derives stable document ids and hrefs from compiled output paths.
//
// The id of a compiled document is its output path without the .html
// extension. Index documents, named SUMMARY, collapse to the id of their
// directory; the root index has the empty id. Ids are NFC normalized so
// that differently composed file names resolve to the same node.
package docid

import (
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// IndexName is the base name of a directory's index document.
const IndexName = "SUMMARY"

// DocumentExt is the extension of compiled documents.
const DocumentExt = ".html"

// IsDocument reports whether an output path is a compiled document.
func IsDocument(outRel string) bool {
	return strings.EqualFold(path.Ext(outRel), DocumentExt)
}

// FromOutputPath returns the id and index flag for a compiled document path.
func FromOutputPath(outRel string) (id string, isIndex bool) {
	p := strings.TrimPrefix(path.Clean("/"+outRel), "/")
	p = strings.TrimSuffix(p, path.Ext(p))
	return collapse(p)
}

// Href returns the display href of a compiled document.
func Href(outRel string) string {
	id, isIndex := FromOutputPath(outRel)
	if isIndex {
		return IndexHref(id)
	}
	return "/" + norm.NFC.String(strings.TrimPrefix(path.Clean("/"+outRel), "/"))
}

// IndexHref returns the href of a directory index by its id.
func IndexHref(id string) string {
	if id == "" {
		return "/"
	}
	return "/" + id + "/"
}

// RefHref renders an id in the form written into declared reference links.
func RefHref(id string) string {
	return "/" + id
}

// Resolve turns a reference as written in a document into a target id.
// Absolute references start at the corpus root; others are resolved against
// fromDir, the referencing document's output directory. Known source and
// output extensions are dropped and a trailing slash names a directory index.
func Resolve(ref, fromDir string) string {
	ref = strings.TrimSpace(ref)
	if i := strings.IndexAny(ref, "#?"); i >= 0 {
		ref = ref[:i]
	}
	var p string
	if strings.HasPrefix(ref, "/") {
		p = path.Clean(ref)
	} else {
		p = path.Clean(path.Join("/", fromDir, ref))
	}
	p = strings.TrimPrefix(p, "/")
	for _, ext := range []string{".md", DocumentExt, ".njk"} {
		if strings.HasSuffix(strings.ToLower(p), ext) {
			p = p[:len(p)-len(ext)]
			break
		}
	}
	id, _ := collapse(p)
	return id
}

func collapse(p string) (string, bool) {
	if p == "." {
		p = ""
	}
	p = norm.NFC.String(p)
	base := path.Base(p)
	if base == IndexName {
		dir := path.Dir(p)
		if dir == "." {
			dir = ""
		}
		return dir, true
	}
	return p, false
}
