package registry

import (
	"fmt"
	"sort"
	"sync"
)

// The catalog maps "library.symbol" to implementations linked into the
// binary. Optional backends fill it from their package init, the way
// database/sql drivers register themselves.
var (
	catalogMu sync.RWMutex
	catalog   = make(map[string]any)
)

func catalogKey(library, symbol string) string {
	return library + "." + symbol
}

// Provide makes impl available to deferred references naming library and
// symbol. It panics if impl is nil or the pair is already provided.
func Provide(library, symbol string, impl any) {
	catalogMu.Lock()
	defer catalogMu.Unlock()
	if impl == nil {
		panic("registry: Provide implementation is nil")
	}
	key := catalogKey(library, symbol)
	if _, dup := catalog[key]; dup {
		panic(fmt.Sprintf("registry: Provide called twice for %s", key))
	}
	catalog[key] = impl
}

// Lookup returns the implementation provided for library and symbol.
func Lookup(library, symbol string) (any, bool) {
	catalogMu.RLock()
	defer catalogMu.RUnlock()
	impl, ok := catalog[catalogKey(library, symbol)]
	return impl, ok
}

// Provided returns the sorted "library.symbol" keys in the catalog.
func Provided() []string {
	catalogMu.RLock()
	defer catalogMu.RUnlock()
	keys := make([]string, 0, len(catalog))
	for k := range catalog {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Withdraw removes a catalog entry. Intended for tests.
func Withdraw(library, symbol string) {
	catalogMu.Lock()
	defer catalogMu.Unlock()
	delete(catalog, catalogKey(library, symbol))
}
