// Package frontmatter splits YAML frontmatter from Markdown sources and
// decodes the metadata fields the compiled documents carry.
package frontmatter

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/inful/mdfp"
	"gopkg.in/yaml.v3"
)

// ErrMissingClosingDelimiter indicates the document started with a YAML
// frontmatter delimiter but did not contain a closing delimiter.
var ErrMissingClosingDelimiter = errors.New("yaml frontmatter start delimiter found but closing delimiter is missing")

// Split separates YAML frontmatter (`---` delimited) from the Markdown body.
// LF and CRLF documents are both recognized. If the document does not start
// with a delimiter, had is false and body is the full input.
func Split(content []byte) (fm []byte, body []byte, had bool, err error) {
	nl := detectNewline(content)
	open := []byte("---" + nl)
	if !bytes.HasPrefix(content, open) {
		return nil, content, false, nil
	}

	start := len(open)
	if bytes.HasPrefix(content[start:], open) {
		return []byte{}, content[start+len(open):], true, nil
	}

	closeSeq := []byte(nl + "---" + nl)
	idx := bytes.Index(content[start:], closeSeq)
	if idx < 0 {
		// A closing delimiter on the final line without a trailing newline.
		if tail := []byte(nl + "---"); bytes.HasSuffix(content, tail) {
			end := len(content) - len(tail)
			return content[start : end+len(nl)], []byte{}, true, nil
		}
		return nil, nil, false, ErrMissingClosingDelimiter
	}
	return content[start : start+idx+len(nl)], content[start+idx+len(closeSeq):], true, nil
}

// Meta holds the recognized frontmatter fields.
type Meta struct {
	Title   string
	Authors []string
	Tags    []string
	// Links lists declared outbound references as written in the source.
	Links []string
	// Fingerprint is the content hash over frontmatter and body.
	Fingerprint string
	Fields      map[string]any
}

// Parse splits content and decodes its frontmatter into Meta.
func Parse(content []byte) (Meta, []byte, error) {
	fm, body, _, err := Split(content)
	if err != nil {
		return Meta{}, nil, err
	}
	fields, err := ParseYAML(fm)
	if err != nil {
		return Meta{}, nil, fmt.Errorf("frontmatter: %w", err)
	}

	meta := Meta{Fields: fields}
	meta.Title, _ = fields["title"].(string)
	if meta.Authors, err = stringList(fields, "authors", "author"); err != nil {
		return Meta{}, nil, err
	}
	if meta.Tags, err = stringList(fields, "tags"); err != nil {
		return Meta{}, nil, err
	}
	if meta.Links, err = stringList(fields, "links"); err != nil {
		return Meta{}, nil, err
	}
	meta.Fingerprint = mdfp.CalculateFingerprintFromParts(strings.TrimSuffix(string(fm), "\n"), string(body))
	return meta, body, nil
}

// ParseYAML parses raw YAML frontmatter (without --- delimiters) into a map.
func ParseYAML(fm []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(fm)) == 0 {
		return map[string]any{}, nil
	}
	var fields map[string]any
	if err := yaml.Unmarshal(fm, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, nil
}

// stringList reads the first present key as a string or list of strings.
func stringList(fields map[string]any, keys ...string) ([]string, error) {
	for _, k := range keys {
		raw, ok := fields[k]
		if !ok || raw == nil {
			continue
		}
		switch v := raw.(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return []string{s}, nil
			}
			return nil, nil
		case []any:
			out := make([]string, 0, len(v))
			for _, e := range v {
				s, ok := e.(string)
				if !ok {
					return nil, fmt.Errorf("frontmatter: %s entries must be strings, got %T", k, e)
				}
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
			return out, nil
		default:
			return nil, fmt.Errorf("frontmatter: %s must be a string or list, got %T", k, raw)
		}
	}
	return nil, nil
}

func detectNewline(content []byte) string {
	if i := bytes.IndexByte(content, '\n'); i > 0 && content[i-1] == '\r' {
		return "\r\n"
	}
	return "\n"
}
