// Package normalization maps loosely formatted user input onto typed values.
package normalization

import (
	"fmt"
	"sort"
	"strings"
)

// Enum parses case- and whitespace-insensitive names into values of T.
type Enum[T comparable] struct {
	name   string
	values map[string]T
	keys   []string
}

// NewEnum creates an Enum named name (used in error messages) from the
// accepted spellings in values. Several spellings may map to the same value.
func NewEnum[T comparable](name string, values map[string]T) *Enum[T] {
	e := &Enum[T]{
		name:   name,
		values: make(map[string]T, len(values)),
		keys:   make([]string, 0, len(values)),
	}
	for k, v := range values {
		key := Clean(k)
		e.values[key] = v
		e.keys = append(e.keys, key)
	}
	sort.Strings(e.keys)
	return e
}

// Parse returns the value for raw or an error listing the accepted names.
func (e *Enum[T]) Parse(raw string) (T, error) {
	if v, ok := e.values[Clean(raw)]; ok {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q, valid options: %s", e.name, raw, strings.Join(e.keys, ", "))
}

// Lookup is Parse without the error.
func (e *Enum[T]) Lookup(raw string) (T, bool) {
	v, ok := e.values[Clean(raw)]
	return v, ok
}

// Keys returns the accepted names in sorted order.
func (e *Enum[T]) Keys() []string {
	out := make([]string, len(e.keys))
	copy(out, e.keys)
	return out
}

// Clean lowercases and trims s.
func Clean(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
