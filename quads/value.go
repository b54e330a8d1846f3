// Package quads defines the core fact model: a closed value union and the
// four-slot tuple built from it.
package quads

import (
	"errors"
	"strconv"
)

// ErrInvalidValue is returned when a tuple slot is built from the invalid
// zero Value
var ErrInvalidValue = errors.New("invalid value")

// Kind discriminates the closed set of value types a tuple slot can hold
type Kind uint8

const (
	// KindInvalid is the zero Kind; tuple construction rejects it
	KindInvalid Kind = iota
	// KindSymbol is a normalized identifier (entity and attribute names)
	KindSymbol
	// KindNumber is a float64 payload
	KindNumber
	// KindText is verbatim string data
	KindText
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindSymbol:
		return "symbol"
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	default:
		return "invalid"
	}
}

// Value is one slot of a tuple: a symbol, a number, or a piece of text.
// Values are immutable and comparable; two values are the same value exactly
// when kind and payload are equal, so Value works directly as a map key and
// tuples made of values inherit structural identity for free.
// The zero Value is invalid.
type Value struct {
	kind Kind
	num  float64
	str  string // symbol name or text payload
}

// Sym creates a symbol value. Symbol identity is normalized: the name is
// lower-cased and runs of whitespace collapse to single spaces, so
// Sym("Person") and Sym(" person ") are the same value
func Sym(name string) Value {
	return Value{kind: KindSymbol, str: normalizeSymbol(name)}
}

// Num creates a number value
func Num(f float64) Value {
	return Value{kind: KindNumber, num: f}
}

// Text creates a text value. Text compares verbatim, unlike symbols
func Text(s string) Value {
	return Value{kind: KindText, str: s}
}

// Kind reports which member of the union this value is
func (v Value) Kind() Kind { return v.kind }

// IsZero reports whether v is the invalid zero Value
func (v Value) IsZero() bool { return v.kind == KindInvalid }

// Symbol returns the normalized symbol name; ok is false for non-symbols
func (v Value) Symbol() (string, bool) {
	return v.str, v.kind == KindSymbol
}

// Number returns the numeric payload; ok is false for non-numbers
func (v Value) Number() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// Text returns the text payload; ok is false for non-text
func (v Value) Text() (string, bool) {
	return v.str, v.kind == KindText
}

// String renders the value as a parseable token: bare name for symbols,
// decimal for numbers, double-quoted for text
func (v Value) String() string {
	switch v.kind {
	case KindSymbol:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindText:
		return strconv.Quote(v.str)
	default:
		return "<invalid>"
	}
}

// Display renders the value for human output: like String, but text appears
// without quotes
func (v Value) Display() string {
	if v.kind == KindText {
		return v.str
	}
	return v.String()
}
