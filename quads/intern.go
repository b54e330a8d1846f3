package quads

import (
	"strings"
	"sync"
	"sync/atomic"
)

// symbolIntern caches normalized symbol spellings to avoid repeated
// lowercase/collapse passes on hot names
// Uses sync.Map for lock-free concurrent reads
type symbolIntern struct {
	cache sync.Map // map[string]string, raw spelling -> normalized name
}

// Global symbol intern instance. Held behind an atomic pointer so that
// ClearSymbolCache can swap the whole cache out from under concurrent
// readers; sync.Map has no clear of its own
var symbols atomic.Pointer[symbolIntern]

func init() {
	symbols.Store(&symbolIntern{})
}

// normalizeSymbol returns the canonical form of a symbol name
func normalizeSymbol(name string) string {
	in := symbols.Load()

	// Fast path: load existing (lock-free)
	if val, ok := in.cache.Load(name); ok {
		return val.(string)
	}

	// Slow path: normalize and store under the original spelling
	norm := strings.ToLower(strings.Join(strings.Fields(name), " "))
	actual, _ := in.cache.LoadOrStore(name, norm)
	return actual.(string)
}

// ClearSymbolCache drops the normalization cache
// Useful for testing or when memory needs to be reclaimed
func ClearSymbolCache() {
	symbols.Store(&symbolIntern{})
}
