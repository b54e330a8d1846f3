package pattern

import (
	"sort"
	"strings"

	"github.com/quadmill/quadmill/quads"
)

// Bindings maps variable names to the values they were unified with.
// Bindings are monotonic over the life of a match: a bound name is never
// rebound, only confirmed
type Bindings map[string]quads.Value

// Clone returns an independent copy
func (b Bindings) Clone() Bindings {
	out := make(Bindings, len(b)+1)
	for k, v := range b {
		out[k] = v
	}
	return out
}

// String renders the bindings as "?a=1 ?b=x" with names sorted
func (b Bindings) String() string {
	names := make([]string, 0, len(b))
	for k := range b {
		names = append(names, k)
	}
	sort.Strings(names)

	var sb strings.Builder
	for i, k := range names {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteByte('?')
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(b[k].String())
	}
	return sb.String()
}
