package quads

import (
	"strings"
)

// Compare orders two values. Different kinds order by kind (symbol < number
// < text); same kinds order by payload. The total order exists for
// deterministic rendering, not for domain meaning
func Compare(a, b Value) int {
	if a.kind != b.kind {
		if a.kind < b.kind {
			return -1
		}
		return 1
	}
	switch a.kind {
	case KindNumber:
		switch {
		case a.num < b.num:
			return -1
		case a.num > b.num:
			return 1
		}
		return 0
	default:
		return strings.Compare(a.str, b.str)
	}
}

// Equal reports whether two values are the same member of the union
func Equal(a, b Value) bool {
	return a == b
}
