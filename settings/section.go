package settings

import (
	"github.com/YuminosukeSato/simplify/pkg/errors"
)

// Section is an ordered set of typed key/value pairs.
type Section struct {
	name   string
	keys   []string
	values map[string]Value
}

// NewSection creates an empty section.
func NewSection(name string) *Section {
	return &Section{name: name, values: make(map[string]Value)}
}

// Name returns the section name.
func (s *Section) Name() string { return s.name }

// Keys returns the keys in file order.
func (s *Section) Keys() []string { return append([]string(nil), s.keys...) }

// Len returns the number of keys.
func (s *Section) Len() int { return len(s.keys) }

// Has reports whether key is set.
func (s *Section) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Get returns the typed value for key.
func (s *Section) Get(key string) (Value, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Set parses raw and stores it under key. Setting an existing key keeps
// its position.
func (s *Section) Set(key, raw string) {
	s.put(key, Parse(raw))
}

func (s *Section) put(key string, v Value) {
	if _, ok := s.values[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.values[key] = v
}

// Delete removes key and reports whether it was present.
func (s *Section) Delete(key string) bool {
	if _, ok := s.values[key]; !ok {
		return false
	}
	delete(s.values, key)
	for i, k := range s.keys {
		if k == key {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
	return true
}

// String returns the raw text of key, or def when the key is missing or none.
func (s *Section) String(key, def string) string {
	v, ok := s.values[key]
	if !ok || v.IsNone() {
		return def
	}
	return v.Raw()
}

// Int returns key as an int. A range resolves to its midpoint.
func (s *Section) Int(key string, def int) (int, error) {
	v, ok := s.values[key]
	if !ok || v.IsNone() {
		return def, nil
	}
	if r, ok := v.Range(); ok {
		return int(r.Mid()), nil
	}
	n, ok := v.Int()
	if !ok {
		return def, s.typeError(key, "an integer", v)
	}
	return n, nil
}

// Float returns key as a float64. A range resolves to its midpoint.
func (s *Section) Float(key string, def float64) (float64, error) {
	v, ok := s.values[key]
	if !ok || v.IsNone() {
		return def, nil
	}
	if r, ok := v.Range(); ok {
		return r.Mid(), nil
	}
	f, ok := v.Float()
	if !ok {
		return def, s.typeError(key, "a number", v)
	}
	return f, nil
}

// Bool returns key as a bool.
func (s *Section) Bool(key string, def bool) (bool, error) {
	v, ok := s.values[key]
	if !ok || v.IsNone() {
		return def, nil
	}
	b, ok := v.Bool()
	if !ok {
		return def, s.typeError(key, "a boolean", v)
	}
	return b, nil
}

// Strings returns key as a list of names, or nil when missing.
func (s *Section) Strings(key string) []string {
	v, ok := s.values[key]
	if !ok {
		return nil
	}
	return v.Strings()
}

// Ranges returns every key holding a search range, in file order.
func (s *Section) Ranges() map[string]Range {
	out := make(map[string]Range)
	for _, k := range s.keys {
		if r, ok := s.values[k].Range(); ok {
			out[k] = r
		}
	}
	return out
}

// Params returns the section as native values (see Value.Native).
func (s *Section) Params() map[string]any {
	out := make(map[string]any, len(s.keys))
	for _, k := range s.keys {
		out[k] = s.values[k].Native()
	}
	return out
}

// Merge returns a new section holding s overlaid by each of others; later
// sections win. nil sections are skipped.
func (s *Section) Merge(others ...*Section) *Section {
	out := NewSection(s.name)
	for _, src := range append([]*Section{s}, others...) {
		if src == nil {
			continue
		}
		for _, k := range src.keys {
			out.put(k, src.values[k])
		}
	}
	return out
}

func (s *Section) typeError(key, want string, v Value) error {
	return errors.NewConfigurationError(s.name, key, "expected "+want+", got "+v.Kind().String()+" "+quote(v.Raw()))
}

func quote(s string) string {
	return `"` + s + `"`
}
