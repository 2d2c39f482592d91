// Package registry maps technique names to implementation references and
// resolves them lazily.
//
// A Reference is either direct, holding an implementation linked into the
// binary, or deferred, naming a library and symbol that are looked up in
// the process-wide catalog only when the technique is dispatched. A step
// can therefore list techniques whose backends are optional; drafting the
// step never touches them.
package registry

import (
	"github.com/YuminosukeSato/simplify/pkg/errors"
	"github.com/YuminosukeSato/simplify/pkg/log"
)

// Reference points at the implementation of one technique.
type Reference[T any] struct {
	// Library names the library the technique wraps ("gonum", "skopt").
	Library string
	// Symbol is the catalog symbol of a deferred reference.
	Symbol string

	deferred bool
	impl     T
}

// Direct returns a reference to an implementation linked into the binary.
func Direct[T any](library string, impl T) Reference[T] {
	return Reference[T]{Library: library, impl: impl}
}

// Deferred returns a reference resolved from the catalog at load time.
func Deferred[T any](library, symbol string) Reference[T] {
	return Reference[T]{Library: library, Symbol: symbol, deferred: true}
}

// IsDeferred reports whether the reference is resolved at load time.
func (r Reference[T]) IsDeferred() bool { return r.deferred }

// Load returns the implementation. Deferred references consult the
// catalog; a missing entry is a DependencyUnavailableError.
func (r Reference[T]) Load(technique string) (T, error) {
	if !r.deferred {
		return r.impl, nil
	}
	var zero T
	v, ok := Lookup(r.Library, r.Symbol)
	if !ok {
		return zero, errors.NewDependencyUnavailableError(technique, r.Library, r.Symbol)
	}
	impl, ok := v.(T)
	if !ok {
		return zero, errors.Newf("registry: %s.%s provides %T, not the implementation %q expects", r.Library, r.Symbol, v, technique)
	}
	return impl, nil
}

// Registry maps technique names to references for one step. It is not
// safe for concurrent mutation; every pipeline run drafts its own.
type Registry[T any] struct {
	step  string
	names []string
	refs  map[string]Reference[T]
}

// New creates an empty registry for the named step.
func New[T any](step string) *Registry[T] {
	return &Registry[T]{step: step, refs: make(map[string]Reference[T])}
}

// Step returns the name of the owning step.
func (r *Registry[T]) Step() string { return r.step }

// Register adds or replaces the reference for name. The last registration
// wins and keeps the position of the first.
func (r *Registry[T]) Register(name string, ref Reference[T]) {
	if _, ok := r.refs[name]; ok {
		log.GetLoggerWithName("registry").Debug("technique replaced",
			log.StepKey, r.step,
			log.TechniqueKey, name,
			log.LibraryKey, ref.Library,
		)
	} else {
		r.names = append(r.names, name)
	}
	r.refs[name] = ref
}

// Resolve returns the reference registered under name.
func (r *Registry[T]) Resolve(name string) (Reference[T], error) {
	ref, ok := r.refs[name]
	if !ok {
		return Reference[T]{}, errors.NewUnknownTechniqueError(r.step, name, r.Names())
	}
	return ref, nil
}

// Load resolves name and loads its implementation.
func (r *Registry[T]) Load(name string) (T, error) {
	ref, err := r.Resolve(name)
	if err != nil {
		var zero T
		return zero, err
	}
	return ref.Load(name)
}

// Has reports whether name is registered.
func (r *Registry[T]) Has(name string) bool {
	_, ok := r.refs[name]
	return ok
}

// Names returns the registered names in registration order.
func (r *Registry[T]) Names() []string {
	return append([]string(nil), r.names...)
}

// Remove deletes name.
func (r *Registry[T]) Remove(name string) error {
	if _, ok := r.refs[name]; !ok {
		return errors.NewUnknownTechniqueError(r.step, name, r.Names())
	}
	delete(r.refs, name)
	for i, n := range r.names {
		if n == name {
			r.names = append(r.names[:i], r.names[i+1:]...)
			break
		}
	}
	return nil
}

// Len returns the number of registered techniques.
func (r *Registry[T]) Len() int { return len(r.names) }
