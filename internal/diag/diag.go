// Package diag holds the per-file diagnostics model shared by the build
// pipeline and its consumers.
package diag

import (
	"slices"
	"sort"
	"sync"
)

// Kind identifies the class of a diagnostic message.
type Kind string

const (
	KindParseInvalid          Kind = "parse-invalid"
	KindCompileFailed         Kind = "compile-failed"
	KindImageConversionFailed Kind = "image-conversion-failed"
	KindSchemaViolation       Kind = "schema-violation"
	KindSchemaUnavailable     Kind = "schema-unavailable"
	KindIOError               Kind = "io-error"
	KindBrokenReference       Kind = "broken-reference"
	KindNormalizeSkipped      Kind = "normalize-skipped"
)

// Kinds lists every known kind in a stable order.
func Kinds() []Kind {
	return []Kind{
		KindParseInvalid, KindCompileFailed, KindImageConversionFailed,
		KindSchemaViolation, KindSchemaUnavailable, KindIOError,
		KindBrokenReference, KindNormalizeSkipped,
	}
}

// Informational reports whether messages of this kind describe no defect in the source.
func (k Kind) Informational() bool {
	return k == KindNormalizeSkipped
}

// Message is one typed diagnostic.
type Message struct {
	Kind Kind   `json:"kind"`
	Text string `json:"text"`
}

// Record is the ordered message list for one source file.
type Record struct {
	Path     string    `json:"path"`
	Messages []Message `json:"messages"`
}

// NewRecord returns an empty record for path.
func NewRecord(path string) *Record {
	return &Record{Path: path, Messages: []Message{}}
}

// Add appends a message.
func (r *Record) Add(kind Kind, text string) *Record {
	r.Messages = append(r.Messages, Message{Kind: kind, Text: text})
	return r
}

// Has reports whether the record carries a message of kind.
func (r *Record) Has(kind Kind) bool {
	return r.Count(kind) > 0
}

// Count returns the number of messages of kind.
func (r *Record) Count(kind Kind) int {
	n := 0
	for _, m := range r.Messages {
		if m.Kind == kind {
			n++
		}
	}
	return n
}

// Problems counts messages that are not informational.
func (r *Record) Problems() int {
	n := 0
	for _, m := range r.Messages {
		if !m.Kind.Informational() {
			n++
		}
	}
	return n
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	return &Record{Path: r.Path, Messages: slices.Clone(r.Messages)}
}

// Set maps source paths to records. All methods are safe for concurrent use.
// Appends are additive: a message once added is never dropped from its record.
type Set struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{records: make(map[string]*Record)}
}

// Put stores rec, replacing any prior record for the same path.
func (s *Set) Put(rec *Record) {
	if rec == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Path] = rec
}

// Append adds a message to the record for path, creating it when absent.
func (s *Set) Append(path string, kind Kind, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[path]
	if !ok {
		rec = NewRecord(path)
		s.records[path] = rec
	}
	rec.Add(kind, text)
}

// Delete removes the record for path.
func (s *Set) Delete(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, path)
}

// Get returns a copy of the record for path.
func (s *Set) Get(path string) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[path]
	return rec.Clone(), ok
}

// Contains reports whether a record exists for path.
func (s *Set) Contains(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[path]
	return ok
}

// Paths returns every path in sorted order.
func (s *Set) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths := make([]string, 0, len(s.records))
	for p := range s.records {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Records returns copies of all records sorted by path.
func (s *Set) Records() []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Clone returns a deep copy of the set.
func (s *Set) Clone() *Set {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := &Set{records: make(map[string]*Record, len(s.records))}
	for p, r := range s.records {
		c.records[p] = r.Clone()
	}
	return c
}

// Subset returns a deep copy restricted to paths. Unknown paths are ignored.
func (s *Set) Subset(paths []string) *Set {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := NewSet()
	for _, p := range paths {
		if r, ok := s.records[p]; ok {
			c.records[p] = r.Clone()
		}
	}
	return c
}

// Len returns the number of records.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// CountByKind tallies messages across all records.
func (s *Set) CountByKind() map[Kind]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[Kind]int)
	for _, r := range s.records {
		for _, m := range r.Messages {
			counts[m.Kind]++
		}
	}
	return counts
}
