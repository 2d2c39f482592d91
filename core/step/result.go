package step

import (
	"slices"
)

// Entry is one named output of a technique, or a tolerated failure when
// Err is set.
type Entry struct {
	Technique string
	Name      string
	Value     any
	Err       error
}

// ResultSet is an ordered collection of technique outputs.
type ResultSet struct {
	entries []Entry
}

// NewResultSet creates an empty result set.
func NewResultSet() *ResultSet {
	return &ResultSet{}
}

// Add appends an output.
func (r *ResultSet) Add(technique, name string, value any) {
	r.entries = append(r.entries, Entry{Technique: technique, Name: name, Value: value})
}

// AddFailure records that a technique failed.
func (r *ResultSet) AddFailure(technique string, err error) {
	r.entries = append(r.entries, Entry{Technique: technique, Err: err})
}

// Get returns the latest output called name.
func (r *ResultSet) Get(name string) (any, bool) {
	for i := len(r.entries) - 1; i >= 0; i-- {
		if e := r.entries[i]; e.Err == nil && e.Name == name {
			return e.Value, true
		}
	}
	return nil, false
}

// Value returns the latest output name of technique.
func (r *ResultSet) Value(technique, name string) (any, bool) {
	for i := len(r.entries) - 1; i >= 0; i-- {
		if e := r.entries[i]; e.Err == nil && e.Technique == technique && e.Name == name {
			return e.Value, true
		}
	}
	return nil, false
}

// Float returns output name of technique as a float64.
func (r *ResultSet) Float(technique, name string) (float64, bool) {
	v, ok := r.Value(technique, name)
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// Keys returns the distinct output names in first-seen order.
func (r *ResultSet) Keys() []string {
	var keys []string
	for _, e := range r.entries {
		if e.Err == nil && !slices.Contains(keys, e.Name) {
			keys = append(keys, e.Name)
		}
	}
	return keys
}

// Techniques returns the distinct technique names in first-seen order,
// failed ones included.
func (r *ResultSet) Techniques() []string {
	var names []string
	for _, e := range r.entries {
		if !slices.Contains(names, e.Technique) {
			names = append(names, e.Technique)
		}
	}
	return names
}

// Entries returns a copy of every entry in order.
func (r *ResultSet) Entries() []Entry {
	return slices.Clone(r.entries)
}

// Failures returns the failure entries.
func (r *ResultSet) Failures() []Entry {
	var out []Entry
	for _, e := range r.entries {
		if e.Err != nil {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of entries.
func (r *ResultSet) Len() int { return len(r.entries) }

// Merge appends the entries of other.
func (r *ResultSet) Merge(other *ResultSet) {
	if other == nil {
		return
	}
	r.entries = append(r.entries, other.entries...)
}
