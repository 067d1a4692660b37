// Package normalization maps loosely written enum strings onto typed values.
package normalization

import (
	"fmt"
	"slices"
	"strings"
)

// Normalizer provides type-safe string-to-enum normalization.
type Normalizer[T comparable] struct {
	validValues  map[string]T
	defaultValue T
	validKeys    []string
}

// NewNormalizer creates a normalizer with a map of valid string->value pairs.
// Keys are trimmed and lower-cased before lookup.
func NewNormalizer[T comparable](values map[string]T, defaultValue T) *Normalizer[T] {
	normalized := make(map[string]T, len(values))
	keys := make([]string, 0, len(values))
	for k, v := range values {
		nk := clean(k)
		normalized[nk] = v
		keys = append(keys, nk)
	}
	slices.Sort(keys)
	return &Normalizer[T]{validValues: normalized, defaultValue: defaultValue, validKeys: keys}
}

// Normalize returns the value for raw, or the default when raw is not recognized.
func (n *Normalizer[T]) Normalize(raw string) T {
	if v, ok := n.Lookup(raw); ok {
		return v
	}
	return n.defaultValue
}

// Lookup reports the value for raw and whether it was recognized.
func (n *Normalizer[T]) Lookup(raw string) (T, bool) {
	v, ok := n.validValues[clean(raw)]
	return v, ok
}

// NormalizeWithError returns an error listing valid options when raw is not recognized.
func (n *Normalizer[T]) NormalizeWithError(raw string) (T, error) {
	if v, ok := n.Lookup(raw); ok {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid value %q, valid options: %v", raw, n.validKeys)
}

// Default returns the fallback value.
func (n *Normalizer[T]) Default() T { return n.defaultValue }

// ValidKeys returns all valid normalized keys, sorted.
func (n *Normalizer[T]) ValidKeys() []string {
	return slices.Clone(n.validKeys)
}

func clean(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
